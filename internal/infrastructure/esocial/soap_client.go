package esocial

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"time"

	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
	domesocial "github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
	"github.com/jhoicas/esocial-sst-api/internal/infrastructure/esocial/signer"
	"github.com/jhoicas/esocial-sst-api/pkg/logger"
)

const (
	opProbe = "probe"

	// DefaultProbeTimeout tiempo máximo de una sonda cuando no se configura otro.
	DefaultProbeTimeout = 30 * time.Second

	maxResponseBytes = 1 << 20
)

// SOAPClient abre sesiones de consulta contra el web service de eventos del eSocial.
type SOAPClient struct {
	channels *SecureChannelFactory
	ambiente domesocial.Ambiente
	endpoint string
	pingURL  string
	timeout  time.Duration
	log      *logger.Logger
}

// NewSOAPClient construye el cliente. endpointOverride reemplaza la URL del catálogo (tests, proxies).
func NewSOAPClient(channels *SecureChannelFactory, ambiente domesocial.Ambiente, endpointOverride string, timeout time.Duration, log *logger.Logger) *SOAPClient {
	endpoint, pingURL := endpointOverride, endpointOverride
	if endpoint == "" {
		catalog := EndpointsFor(ambiente)
		endpoint, pingURL = catalog.ConsultaEventos, catalog.RecepcaoLote
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SOAPClient{
		channels: channels,
		ambiente: ambiente,
		endpoint: endpoint,
		pingURL:  pingURL,
		timeout:  timeout,
		log:      log.Component("esocial.soap"),
	}
}

// Ambiente configurado.
func (c *SOAPClient) Ambiente() domesocial.Ambiente { return c.ambiente }

// Endpoint URL de la consulta de eventos.
func (c *SOAPClient) Endpoint() string { return c.endpoint }

// Describe canal que usarán las sesiones, sin abrir ninguna.
func (c *SOAPClient) Describe() domesocial.ChannelDescription {
	return domesocial.ChannelDescription{
		Ambiente:           c.ambiente,
		Endpoint:           c.endpoint,
		RejectUnauthorized: c.ambiente.StrictTLS(),
		HTTPVersion:        domesocial.HTTPVersion,
	}
}

// Ping envía un HEAD al servicio de recepción de lotes sin certificado de cliente.
// Cualquier respuesta por debajo de 500 cuenta como servicio alcanzable.
func (c *SOAPClient) Ping(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cfg := &ChannelConfig{
		Method: http.MethodHead,
		URL:    c.pingURL,
		Header: http.Header{"User-Agent": []string{DefaultHeaders["User-Agent"]}},
		TLS: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: !c.ambiente.StrictTLS(), //nolint:gosec // solo homologacao
		},
		Strict: c.ambiente.StrictTLS(),
	}
	req, err := cfg.NewRequest(ctx)
	if err != nil {
		return false, err
	}
	client := cfg.Client()
	defer client.CloseIdleConnections()

	resp, err := client.Do(req)
	if err != nil {
		return false, domesocial.E(domesocial.KindChannelError, "ping", "", err)
	}
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError, nil
}

// Session arma el canal mTLS una vez; las sondas de la sesión comparten conexiones keep-alive.
func (c *SOAPClient) Session(dc *entity.DigitalCertificate) domesocial.ProbeSession {
	cfg := c.channels.BuildWith(ChannelRequest{
		Method:   http.MethodPost,
		URL:      c.endpoint,
		Headers:  map[string]string{"SOAPAction": SOAPActionConsultarEventos},
		Ambiente: c.ambiente,
	}, dc)
	return &soapSession{
		cfg:      cfg,
		client:   cfg.Client(),
		ambiente: c.ambiente,
		timeout:  c.timeout,
		log:      c.log,
	}
}

type soapSession struct {
	cfg      *ChannelConfig
	client   *http.Client
	ambiente domesocial.Ambiente
	timeout  time.Duration
	log      *logger.Logger
}

// ConsultarEventos envía la consulta S-1000 de la ventana indicada.
// Un error de red/TLS es ChannelError; cualquier respuesta HTTP, aun no-2xx, se devuelve sin error.
func (s *soapSession) ConsultarEventos(ctx context.Context, cnpj string, w domesocial.QueryWindow) (*domesocial.ProbeResponse, error) {
	envelope := BuildConsultaEnvelope(cnpj, w.Start, w.End, domesocial.TipoEventoS1000)
	digest, err := signer.CanonicalDigest([]byte(envelope))
	if err != nil {
		return nil, domesocial.E(domesocial.KindChannelError, opProbe, "sobre SOAP inválido", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := s.cfg.WithBody([]byte(envelope)).NewRequest(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, domesocial.E(domesocial.KindChannelError, opProbe, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domesocial.E(domesocial.KindChannelError, opProbe, "leer respuesta", err)
	}

	out := &domesocial.ProbeResponse{
		StatusCode:     resp.StatusCode,
		Body:           body,
		Fault:          FaultString(body),
		EnvelopeDigest: digest,
	}
	s.log.Debug().
		Str("cnpj", cnpj).
		Int("status", resp.StatusCode).
		Str("fault", out.Fault).
		Str("envelope_digest", digest).
		Dur("duration", time.Since(start)).
		Msg("consulta de eventos")
	return out, nil
}

func (s *soapSession) Describe() domesocial.ChannelDescription {
	return s.cfg.Describe(s.ambiente)
}

func (s *soapSession) Close() {
	s.client.CloseIdleConnections()
}
