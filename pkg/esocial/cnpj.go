package esocial

import (
	"fmt"
	"unicode"
)

// CNPJLength longitud de un CNPJ normalizado.
const CNPJLength = 14

// pesos del módulo 11 para los dos dígitos verificadores del CNPJ (Receita Federal).
var (
	cnpjWeights1 = [12]int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = [13]int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// SanitizeCNPJ elimina todo carácter que no sea dígito.
// "03.731.608/0001-84" -> "03731608000184".
func SanitizeCNPJ(cnpj string) string {
	out := make([]byte, 0, len(cnpj))
	for _, r := range cnpj {
		if r < 0x80 && unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return string(out)
}

// ValidateCNPJ exige exactamente 14 dígitos ya normalizados. No verifica los dígitos de control.
func ValidateCNPJ(cnpj string) error {
	if len(cnpj) != CNPJLength {
		return fmt.Errorf("esocial: CNPJ debe tener %d dígitos, se recibieron %d", CNPJLength, len(cnpj))
	}
	for i := 0; i < len(cnpj); i++ {
		if cnpj[i] < '0' || cnpj[i] > '9' {
			return fmt.Errorf("esocial: CNPJ contiene caracteres no numéricos")
		}
	}
	return nil
}

// HasValidCheckDigits verifica los dos dígitos de control (módulo 11) de un CNPJ normalizado.
func HasValidCheckDigits(cnpj string) bool {
	if ValidateCNPJ(cnpj) != nil {
		return false
	}
	d1 := checkDigit(cnpj[:12], cnpjWeights1[:])
	d2 := checkDigit(cnpj[:12]+string(d1), cnpjWeights2[:])
	return cnpj[12] == d1 && cnpj[13] == d2
}

func checkDigit(base string, weights []int) byte {
	var sum int
	for i := 0; i < len(base); i++ {
		sum += int(base[i]-'0') * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + (11 - r))
}
