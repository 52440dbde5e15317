package esocial_test

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	appesocial "github.com/jhoicas/esocial-sst-api/internal/application/esocial"
	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
	domesocial "github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
	infraesocial "github.com/jhoicas/esocial-sst-api/internal/infrastructure/esocial"
	"github.com/jhoicas/esocial-sst-api/internal/infrastructure/esocial/signer"
	"github.com/jhoicas/esocial-sst-api/internal/infrastructure/storage"
)

const (
	userID   = "8a1f4c3e-5b2d-4e6f-9a7b-1c2d3e4f5a6b"
	senha    = "senha-teste"
	cnpjTest = "03731608000184"
)

// fakeRecords repositorio de certificados en memoria.
type fakeRecords struct {
	records map[string]*entity.CertificateRecord
	err     error
}

func (f *fakeRecords) FindCertificate(_ context.Context, owner entity.CertificateOwner) (*entity.CertificateRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records[owner.Prefix()], nil
}

// fakeBlobs blob store en memoria; registra las rutas pedidas.
type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	errs    map[string]error
	asked   []string
}

func (f *fakeBlobs) Download(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, path)
	if err, ok := f.errs[path]; ok {
		return nil, err
	}
	if b, ok := f.objects[path]; ok {
		return b, nil
	}
	return nil, storage.ErrObjectNotFound
}

type fakeDirectory struct {
	companies []entity.Company
	err       error
}

func (f *fakeDirectory) ListCompanies(context.Context) ([]entity.Company, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]entity.Company, len(f.companies))
	copy(out, f.companies)
	return out, nil
}

func (f *fakeDirectory) GetCompany(_ context.Context, id string) (*entity.Company, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.companies {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []*entity.AuditLog
	err     error
}

func (f *fakeAudit) Insert(_ context.Context, e *entity.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return f.err
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

// mtlsServer servidor TLS que exige certificado de cliente.
func mtlsServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewUnstartedServer(h)
	srv.TLS = &tls.Config{ClientAuth: tls.RequireAnyClientCert, MinVersion: tls.VersionTLS12}
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv
}

func soapClient(url string, timeout time.Duration) *infraesocial.SOAPClient {
	factory := infraesocial.NewSecureChannelFactory(signer.NewCertificateStore())
	return infraesocial.NewSOAPClient(factory, domesocial.AmbienteHomologacao, url, timeout, nil)
}

var errRede = errors.New("connection reset by peer")

// newLinked arma el caso de uso con la cuenta userID resolviendo por base64.
func newLinked(pfx []byte, companies []entity.Company, url string, concurrency int) *appesocial.LinkedCompaniesUseCase {
	return newLinkedWithTimeout(pfx, companies, url, concurrency, 5*time.Second)
}

// newLinkedWithTimeout igual que newLinked con timeout por sonda explícito.
func newLinkedWithTimeout(pfx []byte, companies []entity.Company, url string, concurrency int, timeout time.Duration) *appesocial.LinkedCompaniesUseCase {
	records := &fakeRecords{records: map[string]*entity.CertificateRecord{
		"usuario-" + userID: {ArquivoBase64: base64.StdEncoding.EncodeToString(pfx), SenhaCertificado: b64(senha)},
	}}
	resolver := appesocial.NewCertificateResolver(records, &fakeBlobs{}, nil, nil)
	return appesocial.NewLinkedCompaniesUseCase(
		resolver,
		&fakeDirectory{companies: companies},
		signer.NewCertificateStore(),
		soapClient(url, timeout),
		concurrency,
		nil, nil,
	).WithClock(func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) })
}
