package esocial

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	domesocial "github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
	"github.com/jhoicas/esocial-sst-api/pkg/esocial"
)

// Estados del informe de validación.
const (
	ReportValid   = "valid"
	ReportWarning = "warning"
	ReportInvalid = "invalid"
)

// Nombres de los checks (estables, viajan al cliente).
const (
	CheckSenha      = "senha_pkcs12"
	CheckParChave   = "par_chave_certificado"
	CheckValidade   = "validade_temporal"
	CheckExpiracao  = "aviso_expiracao"
	CheckForca      = "forca_chave"
	CheckAlgoritmo  = "algoritmo_assinatura"
	CheckTitular    = "titularidade"
	CheckCadeia     = "cadeia_certificacao"
	minRSABits      = 2048
	expiryWarnDays  = 30
	oidSHA1WithRSA  = "1.2.840.113549.1.1.5"
	ptBRDateLayout  = "02/01/2006"
	summaryValid    = "Certificado válido e seguro! Pronto para uso no eSocial."
	summaryNoOpen   = "Não foi possível abrir o arquivo. Verifique a senha do .pfx."
	msgSenhaOK      = "Arquivo aberto com sucesso"
	msgSenhaFail    = "Senha incorreta ou arquivo inválido"
	msgParChaveOK   = "Chave privada e certificado presentes"
	msgParChaveFail = "Chave privada ou certificado ausente"
)

type algorithmInfo struct {
	name   string
	secure bool
}

var signatureAlgorithms = map[string]algorithmInfo{
	oidSHA1WithRSA:          {"SHA-1 with RSA", false},
	"1.2.840.113549.1.1.11": {"SHA-256 with RSA", true},
	"1.2.840.113549.1.1.12": {"SHA-384 with RSA", true},
	"1.2.840.113549.1.1.13": {"SHA-512 with RSA", true},
	"1.2.840.10045.4.3.2":   {"SHA-256 with ECDSA", true},
	"1.2.840.10045.4.3.3":   {"SHA-384 with ECDSA", true},
	"1.2.840.10045.4.3.4":   {"SHA-512 with ECDSA", true},
}

// CertificateCheck un punto verificado. Extra se aplana en el JSON junto a name/ok/message.
type CertificateCheck struct {
	Name    string
	OK      bool
	Message string
	Extra   map[string]any
}

// MarshalJSON aplana Extra al nivel del check.
func (c CertificateCheck) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+3)
	for k, v := range c.Extra {
		out[k] = v
	}
	out["name"] = c.Name
	out["ok"] = c.OK
	out["message"] = c.Message
	return json.Marshal(out)
}

func (c CertificateCheck) legacy() bool {
	v, _ := c.Extra["is_legacy"].(bool)
	return v
}

// CertificateReport resultado de validar un A1 antes de guardarlo.
type CertificateReport struct {
	Status      string             `json:"status"`
	Checks      []CertificateCheck `json:"checks"`
	Meta        map[string]any     `json:"meta"`
	Summary     string             `json:"summary"`
	GeneratedAt time.Time          `json:"-"`
}

// InspectInput contenido del .pfx, contraseña y CNPJ opcional de la empresa titular.
type InspectInput struct {
	PFX         []byte
	Password    string
	CNPJEmpresa string
}

// CertificateInspector genera el informe de validación de un certificado subido.
type CertificateInspector struct {
	certs    CertificateDecoder
	renderer ReportRenderer
	now      func() time.Time
}

// NewCertificateInspector renderer puede ser nil si no se exporta a PDF.
func NewCertificateInspector(certs CertificateDecoder, renderer ReportRenderer) *CertificateInspector {
	return &CertificateInspector{certs: certs, renderer: renderer, now: time.Now}
}

// WithClock fija el reloj (tests).
func (i *CertificateInspector) WithClock(now func() time.Time) *CertificateInspector {
	i.now = now
	return i
}

// Inspect nunca falla: cualquier problema del certificado queda en los checks.
func (i *CertificateInspector) Inspect(_ context.Context, in InspectInput) *CertificateReport {
	now := i.now()
	r := &CertificateReport{
		Status:      ReportInvalid,
		Checks:      []CertificateCheck{},
		Meta:        map[string]any{},
		GeneratedAt: now,
	}

	dc, err := i.certs.Open(in.PFX, in.Password)
	switch {
	case err == nil:
	case domesocial.KindOf(err) == domesocial.KindIncompleteCertificate:
		r.add(CheckSenha, true, msgSenhaOK, nil)
		r.add(CheckParChave, false, msgParChaveFail, nil)
		r.finalize()
		return r
	default:
		r.add(CheckSenha, false, msgSenhaFail, nil)
		r.Summary = summaryNoOpen
		return r
	}
	r.add(CheckSenha, true, msgSenhaOK, nil)
	r.add(CheckParChave, true, msgParChaveOK, nil)

	cert := dc.Certificate
	inPeriod := !now.Before(cert.NotBefore) && !now.After(cert.NotAfter)
	r.add(CheckValidade, inPeriod,
		fmt.Sprintf("Válido de %s até %s", cert.NotBefore.Format(ptBRDateLayout), cert.NotAfter.Format(ptBRDateLayout)),
		map[string]any{
			"not_before": cert.NotBefore.UTC().Format(time.RFC3339),
			"not_after":  cert.NotAfter.UTC().Format(time.RFC3339),
		})

	days := int(math.Ceil(cert.NotAfter.Sub(now).Hours() / 24))
	if days > 0 && days <= expiryWarnDays {
		r.add(CheckExpiracao, false, fmt.Sprintf("Certificado expira em %d dia(s)", days),
			map[string]any{"days_remaining": days})
	}

	bits := keySize(dc.PrivateKey)
	strength := "adequada"
	if bits < minRSABits {
		strength = "fraca - mínimo 2048 bits"
	}
	r.add(CheckForca, bits >= minRSABits, fmt.Sprintf("Chave %d bits (%s)", bits, strength),
		map[string]any{"key_size": bits})

	oid := signatureOID(cert)
	info, known := signatureAlgorithms[oid]
	if !known {
		info = algorithmInfo{name: fmt.Sprintf("Desconhecido (%s)", oid)}
	}
	if oid == oidSHA1WithRSA {
		r.add(CheckAlgoritmo, false, info.name+" (algoritmo legado - recomenda-se SHA-256 ou superior)",
			map[string]any{"algorithm": oid, "algorithm_name": info.name, "is_legacy": true})
	} else {
		verdict := "inseguro"
		if info.secure {
			verdict = "seguro"
		}
		r.add(CheckAlgoritmo, info.secure, fmt.Sprintf("%s (%s)", info.name, verdict),
			map[string]any{"algorithm": oid, "algorithm_name": info.name})
	}

	var cnpjCert, cpfCert any
	switch sn := cert.Subject.SerialNumber; len(sn) {
	case esocial.CNPJLength:
		cnpjCert = sn
	case 11:
		cpfCert = sn
	}
	r.Meta["cnpj"] = cnpjCert
	if c, ok := cnpjCert.(string); ok {
		r.Meta["cnpj_digitos_validos"] = esocial.HasValidCheckDigits(c)
	}
	r.Meta["cpf"] = cpfCert
	r.Meta["subject"] = dc.SubjectDN
	r.Meta["issuer"] = dc.IssuerDN
	r.Meta["not_before"] = cert.NotBefore.UTC().Format(time.RFC3339)
	r.Meta["not_after"] = cert.NotAfter.UTC().Format(time.RFC3339)
	sum := sha256.Sum256(cert.Raw)
	r.Meta["fingerprint_sha256"] = hex.EncodeToString(sum[:])

	if c, ok := cnpjCert.(string); ok && in.CNPJEmpresa != "" {
		owner := esocial.SanitizeCNPJ(in.CNPJEmpresa) == esocial.SanitizeCNPJ(c)
		verdict := "não confere"
		if owner {
			verdict = "confere"
		}
		r.add(CheckTitular, owner, fmt.Sprintf("CNPJ do certificado %s com a empresa", verdict),
			map[string]any{"cnpj_certificado": c, "cnpj_empresa": in.CNPJEmpresa})
	}

	issuerCN, subjectCN := cert.Issuer.CommonName, cert.Subject.CommonName
	selfSigned := issuerCN == subjectCN
	chain := "emitido por AC"
	if selfSigned {
		chain = "auto-assinado (inválido)"
	}
	r.add(CheckCadeia, !selfSigned, "Certificado "+chain,
		map[string]any{"issuer": issuerCN, "subject": subjectCN})

	r.finalize()
	return r
}

// RenderPDF inspecciona y renderiza el informe.
func (i *CertificateInspector) RenderPDF(ctx context.Context, in InspectInput) (*CertificateReport, []byte, error) {
	if i.renderer == nil {
		return nil, nil, fmt.Errorf("esocial: report: renderer PDF no configurado")
	}
	r := i.Inspect(ctx, in)
	pdf, err := i.renderer.RenderCertificateReport(ctx, r)
	if err != nil {
		return r, nil, fmt.Errorf("esocial: report: %w", err)
	}
	return r, pdf, nil
}

func (r *CertificateReport) add(name string, ok bool, msg string, extra map[string]any) {
	r.Checks = append(r.Checks, CertificateCheck{Name: name, OK: ok, Message: msg, Extra: extra})
}

// finalize aviso_expiracao y SHA-1 son avisos; el resto de checks fallidos son críticos.
func (r *CertificateReport) finalize() {
	var critical, warnings []string
	for _, c := range r.Checks {
		if c.OK {
			continue
		}
		switch {
		case c.Name == CheckExpiracao, c.Name == CheckAlgoritmo && c.legacy():
			warnings = append(warnings, c.Message)
		case c.Name == CheckAlgoritmo:
			// algoritmo desconocido no legado: solo informativo
		default:
			critical = append(critical, c.Message)
		}
	}
	switch {
	case len(critical) > 0:
		r.Status = ReportInvalid
		r.Summary = "Certificado inválido: " + critical[0]
	case len(warnings) > 0:
		r.Status = ReportWarning
		r.Summary = "Certificado válido com avisos: " + strings.Join(warnings, ", ")
	default:
		r.Status = ReportValid
		r.Summary = summaryValid
	}
}

func keySize(key any) int {
	if k, ok := key.(*rsa.PrivateKey); ok && k.N != nil {
		return k.N.BitLen()
	}
	return 0
}

// signatureOID OID de signatureAlgorithm del certificado (x509 solo expone el enum).
func signatureOID(cert *x509.Certificate) string {
	var outer struct {
		TBS       asn1.RawValue
		Algorithm pkix.AlgorithmIdentifier
		Signature asn1.BitString
	}
	if _, err := asn1.Unmarshal(cert.Raw, &outer); err != nil {
		return "desconhecido"
	}
	return outer.Algorithm.Algorithm.String()
}
