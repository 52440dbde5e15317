package dto

import (
	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
	domesocial "github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
)

// CompanyResponse empresa vinculada al certificado.
type CompanyResponse struct {
	ID   string `json:"id"`
	Nome string `json:"nome"`
	CNPJ string `json:"cnpj"`
}

// LinkedCompaniesResponse salida de GET /api/esocial/empresas-vinculadas.
// Autorizado solo viaja en la consulta filtrada por CNPJ.
type LinkedCompaniesResponse struct {
	Sucesso    bool              `json:"sucesso"`
	Autorizado *bool             `json:"autorizado,omitempty"`
	Empresas   []CompanyResponse `json:"empresas"`
}

// ProbeFailureResponse 500 de la consulta filtrada con el diagnóstico del canal.
type ProbeFailureResponse struct {
	Sucesso     bool                 `json:"sucesso"`
	Autorizado  bool                 `json:"autorizado"`
	Empresas    []CompanyResponse    `json:"empresas"`
	Error       string               `json:"error"`
	Diagnostics ProbeDiagnosticsBody `json:"diagnostics"`
}

// ProbeDiagnosticsBody diagnóstico de resolución más descripción del canal y del fallo.
type ProbeDiagnosticsBody struct {
	entity.ResolutionDiagnostics
	Ambiente string                          `json:"ambiente"`
	Endpoint string                          `json:"endpoint"`
	TLS      TLSDiagnostics                  `json:"tls"`
	Error    domesocial.TransportErrorDetail `json:"error"`
}

// TLSDiagnostics parámetros TLS usados en la sonda.
type TLSDiagnostics struct {
	RejectUnauthorized bool   `json:"rejectUnauthorized"`
	HTTPVersion        string `json:"httpVersion"`
}

// CertificateNotFoundResponse 404 cuando la cuenta no tiene certificado localizable.
type CertificateNotFoundResponse struct {
	Error       string                       `json:"error"`
	Diagnostics entity.ResolutionDiagnostics `json:"diagnostics"`
}

// SignXMLRequest entrada de POST /api/esocial/assinar-xml.
type SignXMLRequest struct {
	EmpresaID    string `json:"empresaId"`
	CertPassword string `json:"certPassword"`
	RawXML       string `json:"rawXml"`
}

// SignXMLResponse salida de la firma. Error solo cuando Success es false.
type SignXMLResponse struct {
	Success   bool   `json:"success"`
	SignedXML string `json:"signedXml,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
}

// VerifyXMLRequest entrada de POST /api/esocial/validar-assinatura.
type VerifyXMLRequest struct {
	XML string `json:"xml"`
}

// VerifyXMLResponse resultado de la verificación.
type VerifyXMLResponse struct {
	Success bool   `json:"success"`
	Valido  bool   `json:"valido"`
	Error   string `json:"error,omitempty"`
}

// CertificateReportError 400 del validador de certificados.
type CertificateReportError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TestConnectionRequest entrada de POST /api/esocial/testar-conexao.
type TestConnectionRequest struct {
	EmpresaID string `json:"empresa_id"`
}

// TestConnectionResponse resultado de la prueba de conectividad.
type TestConnectionResponse struct {
	Success  bool   `json:"success"`
	Ambiente string `json:"ambiente"`
	Erro     string `json:"erro,omitempty"`
}

// ToCompanyResponses mapea entidades a DTO. Nunca devuelve nil.
func ToCompanyResponses(companies []entity.Company) []CompanyResponse {
	out := make([]CompanyResponse, 0, len(companies))
	for _, c := range companies {
		out = append(out, CompanyResponse{ID: c.ID, Nome: c.Nome, CNPJ: c.CNPJ})
	}
	return out
}
