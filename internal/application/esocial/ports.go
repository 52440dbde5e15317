// Package esocial contiene los casos de uso del canal seguro eSocial: resolución del certificado
// A1, sonda de empresas vinculadas, firma de eventos, validación de certificados y prueba de conexión.
package esocial

import (
	"context"

	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
	domesocial "github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
)

// BlobStore descarga objetos del bucket de certificados.
type BlobStore interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

// CertificateDecoder decodifica contenedores PKCS#12.
// Decode exige vigencia; Open no (la usa el informe de validación).
type CertificateDecoder interface {
	Decode(raw []byte, passphrase string) (*entity.DigitalCertificate, error)
	Open(raw []byte, passphrase string) (*entity.DigitalCertificate, error)
}

// ProbeClient abre sesiones mTLS contra el web service de consulta de eventos.
type ProbeClient interface {
	Session(cert *entity.DigitalCertificate) domesocial.ProbeSession
	Describe() domesocial.ChannelDescription
}

// ConnectivityChecker comprueba que el servicio de recepción responde (sin certificado de cliente).
type ConnectivityChecker interface {
	Ping(ctx context.Context) (bool, error)
	Ambiente() domesocial.Ambiente
}

// ReportRenderer genera la representación PDF del informe de certificado.
type ReportRenderer interface {
	RenderCertificateReport(ctx context.Context, report *CertificateReport) ([]byte, error)
}
