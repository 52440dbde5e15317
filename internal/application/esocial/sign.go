package esocial

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/esocial-sst-api/internal/domain"
	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
	domesocial "github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
	"github.com/jhoicas/esocial-sst-api/internal/infrastructure/metrics"
	"github.com/jhoicas/esocial-sst-api/pkg/esocial"
	"github.com/jhoicas/esocial-sst-api/pkg/logger"
)

// SignInput petición de firma de un evento con el certificado de la empresa.
type SignInput struct {
	EmpresaID    string
	CertPassword string
	RawXML       string
}

// SignEventUseCase firma eventos con el certificado A1 de la empresa.
type SignEventUseCase struct {
	resolver *CertificateResolver
	certs    CertificateDecoder
	signer   esocial.Signer
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewSignEventUseCase crea el caso de uso.
func NewSignEventUseCase(resolver *CertificateResolver, certs CertificateDecoder, signer esocial.Signer, m *metrics.Metrics, log *logger.Logger) *SignEventUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &SignEventUseCase{resolver: resolver, certs: certs, signer: signer, metrics: m, log: log.Component("esocial.sign")}
}

// Execute la contraseña informada por el usuario prevalece sobre la almacenada.
func (uc *SignEventUseCase) Execute(ctx context.Context, in SignInput) (string, error) {
	if strings.TrimSpace(in.EmpresaID) == "" || in.CertPassword == "" || strings.TrimSpace(in.RawXML) == "" {
		return "", fmt.Errorf("%w: parâmetros obrigatórios: empresaId, certPassword, rawXml", domain.ErrInvalidInput)
	}

	resolved, err := uc.resolver.Resolve(ctx, entity.CertificateOwner{Kind: entity.OwnerEmpresa, ID: in.EmpresaID})
	if err != nil {
		return "", err
	}

	dc, err := uc.certs.Decode(resolved.PFX, in.CertPassword)
	uc.metrics.IncDecode(decodeResult(err))
	if err != nil {
		return "", err
	}

	signed, err := uc.signer.Sign([]byte(in.RawXML), dc.TLS())
	if err != nil {
		uc.metrics.IncSignature(string(domesocial.KindOf(err)))
		uc.log.Warn().Err(err).Str("empresa_id", in.EmpresaID).Msg("firma rechazada")
		return "", err
	}
	uc.metrics.IncSignature("ok")
	uc.log.Info().
		Str("empresa_id", in.EmpresaID).
		Str("pfx_source", string(resolved.Source)).
		Time("valid_to", dc.ValidTo).
		Msg("evento firmado")
	return string(signed), nil
}

// VerifyUseCase valida un XML firmado. Sin firma devuelve false sin error.
type VerifyUseCase struct {
	verifier esocial.Verifier
}

// NewVerifyUseCase crea el caso de uso.
func NewVerifyUseCase(verifier esocial.Verifier) *VerifyUseCase {
	return &VerifyUseCase{verifier: verifier}
}

// Execute valida la firma.
func (uc *VerifyUseCase) Execute(_ context.Context, xml string) (bool, error) {
	if strings.TrimSpace(xml) == "" {
		return false, fmt.Errorf("%w: xml obrigatório", domain.ErrInvalidInput)
	}
	return uc.verifier.Verify([]byte(xml))
}
