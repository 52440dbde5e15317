package entity

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"time"
)

// CertificateSource indica de dónde se obtuvo el PKCS#12. Los valores viajan en los diagnósticos.
type CertificateSource string

const (
	SourceBase64     CertificateSource = "base64"
	SourceArquivoURL CertificateSource = "arquivo_url"
	SourceMeta       CertificateSource = "meta"
	SourceDirect     CertificateSource = "direct"
)

// OwnerKind titular del certificado: cuenta de usuario o empresa.
type OwnerKind string

const (
	OwnerUsuario OwnerKind = "usuario"
	OwnerEmpresa OwnerKind = "empresa"
)

// CertificateOwner identifica al titular y deriva las rutas deterministas en el blob store.
type CertificateOwner struct {
	Kind OwnerKind
	ID   string
}

// Prefix "usuario-<id>" o "empresa-<id>".
func (o CertificateOwner) Prefix() string {
	return string(o.Kind) + "-" + o.ID
}

// DefaultPFXPath ruta por defecto del .pfx.
func (o CertificateOwner) DefaultPFXPath() string {
	return o.Prefix() + "/certificado-a1.pfx"
}

// MetaPath ruta del JSON de metadatos que apunta al .pfx real.
func (o CertificateOwner) MetaPath() string {
	return o.Prefix() + "/certificado-a1.json"
}

// CertificateRecord fila de certificados_conta / certificados_empresa.
// Todos los campos son opcionales; SenhaCertificado puede estar en base64 o en texto plano.
type CertificateRecord struct {
	ArquivoBase64    string
	ArquivoURL       string
	SenhaCertificado string
}

// DigitalCertificate material derivado de un PKCS#12. Vive solo durante una petición.
type DigitalCertificate struct {
	Raw         []byte
	Passphrase  string
	PrivateKey  crypto.Signer
	Certificate *x509.Certificate
	ValidFrom   time.Time
	ValidTo     time.Time
	SubjectDN   string
	IssuerDN    string
	Source      CertificateSource
}

// TLS devuelve el par listo para tls.Config.Certificates y para el firmador.
func (c *DigitalCertificate) TLS() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{c.Certificate.Raw},
		PrivateKey:  c.PrivateKey,
		Leaf:        c.Certificate,
	}
}

// ResolutionAttempt un intento de la cadena de resolución.
type ResolutionAttempt struct {
	Source CertificateSource `json:"source"`
	Path   string            `json:"path,omitempty"`
	Found  bool              `json:"found"`
	Error  string            `json:"error,omitempty"`
}

// ResolutionDiagnostics registro de todo lo intentado para localizar el certificado.
type ResolutionDiagnostics struct {
	HasRecord        bool                `json:"hasRecord"`
	HasArquivoURL    bool                `json:"hasArquivoUrl"`
	HasArquivoBase64 bool                `json:"hasArquivoBase64"`
	StorageTried     bool                `json:"storageTried"`
	StorageError     string              `json:"storageError,omitempty"`
	MetaChecked      bool                `json:"metaChecked"`
	MetaFound        bool                `json:"metaFound"`
	MetaArquivoURL   string              `json:"metaArquivoUrl,omitempty"`
	DirectPathTried  bool                `json:"directPathTried"`
	DirectPathError  string              `json:"directPathError,omitempty"`
	PFXSource        CertificateSource   `json:"pfxSource,omitempty"`
	PFXBytesLength   int                 `json:"pfxBytesLength,omitempty"`
	SenhaPresent     bool                `json:"senhaPresent"`
	Attempts         []ResolutionAttempt `json:"attempts"`
}

// ResolvedCertificate bytes crudos y contraseña localizados por el resolver (aún sin decodificar).
type ResolvedCertificate struct {
	PFX         []byte
	Passphrase  string
	Source      CertificateSource
	Diagnostics ResolutionDiagnostics
}
