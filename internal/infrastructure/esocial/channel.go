package esocial

import (
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
	domesocial "github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
)

const opChannel = "channel"

// DefaultHeaders cabeceras que acompañan toda petición al eSocial. Los extras del llamador las sobrescriben.
var DefaultHeaders = map[string]string{
	"Content-Type":  "text/xml; charset=utf-8",
	"User-Agent":    "SST-System/1.0",
	"Accept":        "text/xml, application/soap+xml",
	"Cache-Control": "no-cache",
	"Connection":    "keep-alive",
}

// CertificateDecoder decodifica el PKCS#12 del canal (implementado por signer.CertificateStore).
type CertificateDecoder interface {
	Decode(raw []byte, passphrase string) (*entity.DigitalCertificate, error)
}

// ChannelRequest entrada del factory.
type ChannelRequest struct {
	Method     string
	URL        string
	Body       []byte
	Headers    map[string]string
	PFX        []byte
	Passphrase string
	Ambiente   domesocial.Ambiente
	Timeout    time.Duration
}

// ChannelConfig descripción completa de la petición mTLS. Construirla no hace I/O.
type ChannelConfig struct {
	Method  string
	URL     string
	Body    []byte
	Header  http.Header
	TLS     *tls.Config
	Strict  bool
	Timeout time.Duration
}

// SecureChannelFactory arma configuraciones de canal mTLS para los web services del eSocial.
type SecureChannelFactory struct {
	certs CertificateDecoder
}

// NewSecureChannelFactory crea el factory.
func NewSecureChannelFactory(certs CertificateDecoder) *SecureChannelFactory {
	return &SecureChannelFactory{certs: certs}
}

// Build decodifica el certificado de la petición y arma el canal.
func (f *SecureChannelFactory) Build(req ChannelRequest) (*ChannelConfig, error) {
	dc, err := f.certs.Decode(req.PFX, req.Passphrase)
	if err != nil {
		return nil, err
	}
	return f.BuildWith(req, dc), nil
}

// BuildWith arma el canal con un certificado ya decodificado (PFX y Passphrase de req se ignoran).
func (f *SecureChannelFactory) BuildWith(req ChannelRequest, dc *entity.DigitalCertificate) *ChannelConfig {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	h := make(http.Header, len(DefaultHeaders)+len(req.Headers))
	for k, v := range DefaultHeaders {
		h.Set(k, v)
	}
	for k, v := range req.Headers {
		h.Set(k, v)
	}

	strict := req.Ambiente.StrictTLS()
	return &ChannelConfig{
		Method: method,
		URL:    req.URL,
		Body:   req.Body,
		Header: h,
		TLS: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			Certificates:       []tls.Certificate{dc.TLS()},
			InsecureSkipVerify: !strict, //nolint:gosec // solo homologacao
		},
		Strict:  strict,
		Timeout: req.Timeout,
	}
}

// WithBody copia la configuración con otro cuerpo. El TLS se comparte.
func (c *ChannelConfig) WithBody(body []byte) *ChannelConfig {
	cp := *c
	cp.Body = body
	cp.Header = c.Header.Clone()
	return &cp
}

// Describe datos del canal para diagnósticos.
func (c *ChannelConfig) Describe(a domesocial.Ambiente) domesocial.ChannelDescription {
	return domesocial.ChannelDescription{
		Ambiente:           a,
		Endpoint:           c.URL,
		RejectUnauthorized: c.Strict,
		HTTPVersion:        domesocial.HTTPVersion,
	}
}

// Transport HTTP/1.1 fijo: TLSNextProto no nil y vacío desactiva HTTP/2.
func (c *ChannelConfig) Transport() *http.Transport {
	dialer := &net.Dialer{Timeout: 15 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSClientConfig:     c.TLS.Clone(),
		TLSHandshakeTimeout: 15 * time.Second,
		ForceAttemptHTTP2:   false,
		TLSNextProto:        map[string]func(string, *tls.Conn) http.RoundTripper{},
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}
}

// Client materializa el *http.Client del canal.
func (c *ChannelConfig) Client() *http.Client {
	return &http.Client{Transport: c.Transport(), Timeout: c.Timeout}
}

// NewRequest materializa la petición ligada a ctx.
func (c *ChannelConfig) NewRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, c.Method, c.URL, bytes.NewReader(c.Body))
	if err != nil {
		return nil, domesocial.E(domesocial.KindChannelError, opChannel, "petición inválida", err)
	}
	req.Header = c.Header.Clone()
	return req, nil
}
