package entity

// Company empresa del directorio (tabla empresas). CNPJ puede venir con máscara.
type Company struct {
	ID   string
	Nome string
	CNPJ string
}

// SyntheticCompany representa un CNPJ consultado que no existe en el directorio.
func SyntheticCompany(cnpj string) Company {
	return Company{ID: "cnpj:" + cnpj, Nome: "CNPJ " + cnpj, CNPJ: cnpj}
}
