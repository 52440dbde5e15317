package esocial

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
	domesocial "github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
	"github.com/jhoicas/esocial-sst-api/internal/domain/repository"
	"github.com/jhoicas/esocial-sst-api/internal/infrastructure/metrics"
	"github.com/jhoicas/esocial-sst-api/pkg/logger"
)

const opResolve = "resolve"

// ResolutionError el certificado no se encontró en ningún origen. Lleva el diagnóstico completo.
type ResolutionError struct {
	Owner       entity.CertificateOwner
	Diagnostics entity.ResolutionDiagnostics
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("esocial: %s: certificado de %s no encontrado", opResolve, e.Owner.Prefix())
}

// Unwrap permite errors.Is(err, domesocial.ErrCertificateNotFound).
func (e *ResolutionError) Unwrap() error {
	return domesocial.ErrCertificateNotFound
}

// resolution estado compartido por las estrategias de una resolución.
type resolution struct {
	owner  entity.CertificateOwner
	record *entity.CertificateRecord
	diag   *entity.ResolutionDiagnostics
}

// strategy un eslabón de la cadena. Devuelve nil para ceder al siguiente.
type strategy interface {
	source() entity.CertificateSource
	resolve(ctx context.Context, r *resolution) []byte
}

// CertificateResolver localiza el PKCS#12 de un titular recorriendo, en orden:
// base64 en la fila, arquivo_url en el bucket, JSON de metadatos y ruta por defecto.
type CertificateResolver struct {
	records    repository.CertificateRecordRepository
	strategies []strategy
	metrics    *metrics.Metrics
	log        *logger.Logger
}

// NewCertificateResolver construye la cadena estándar.
func NewCertificateResolver(records repository.CertificateRecordRepository, blobs BlobStore, m *metrics.Metrics, log *logger.Logger) *CertificateResolver {
	if log == nil {
		log = logger.Nop()
	}
	return &CertificateResolver{
		records: records,
		strategies: []strategy{
			inlineBase64{},
			blobURL{blobs: blobs},
			metaPointer{blobs: blobs},
			defaultPath{blobs: blobs},
		},
		metrics: m,
		log:     log.Component("esocial.resolver"),
	}
}

// Resolve devuelve bytes y contraseña del certificado. Solo lee.
// Un fallo del repositorio se devuelve tal cual; la ausencia en todos los orígenes es *ResolutionError.
func (r *CertificateResolver) Resolve(ctx context.Context, owner entity.CertificateOwner) (*entity.ResolvedCertificate, error) {
	record, err := r.records.FindCertificate(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("esocial: %s: %w", opResolve, err)
	}

	diag := entity.ResolutionDiagnostics{
		HasRecord: record != nil,
		Attempts:  []entity.ResolutionAttempt{},
	}
	var passphrase string
	if record != nil {
		diag.HasArquivoURL = record.ArquivoURL != ""
		diag.HasArquivoBase64 = record.ArquivoBase64 != ""
		passphrase = DecodePassphrase(record.SenhaCertificado)
	}
	diag.SenhaPresent = passphrase != ""

	state := &resolution{owner: owner, record: record, diag: &diag}
	for _, s := range r.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pfx := s.resolve(ctx, state)
		if len(pfx) == 0 {
			continue
		}
		diag.PFXSource = s.source()
		diag.PFXBytesLength = len(pfx)
		r.metrics.IncResolution(string(owner.Kind), string(s.source()))
		r.log.Debug().
			Str("owner", owner.Prefix()).
			Str("pfx_source", string(s.source())).
			Int("pfx_bytes", len(pfx)).
			Msg("certificado resuelto")
		return &entity.ResolvedCertificate{
			PFX:         pfx,
			Passphrase:  passphrase,
			Source:      s.source(),
			Diagnostics: diag,
		}, nil
	}

	r.metrics.IncResolution(string(owner.Kind), "")
	r.log.Warn().
		Str("owner", owner.Prefix()).
		Bool("has_record", diag.HasRecord).
		Str("storage_error", diag.StorageError).
		Str("direct_path_error", diag.DirectPathError).
		Msg("certificado no encontrado")
	return nil, &ResolutionError{Owner: owner, Diagnostics: diag}
}

// DecodePassphrase acepta la contraseña en base64 o en texto plano: si el valor decodifica
// a UTF-8 válido e imprimible se usa el decodificado, si no el valor tal cual.
func DecodePassphrase(stored string) string {
	if stored == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(stored))
	if err != nil || len(raw) == 0 || !utf8.Valid(raw) {
		return stored
	}
	decoded := string(raw)
	for _, r := range decoded {
		if !unicode.IsPrint(r) {
			return stored
		}
	}
	return decoded
}

// ── Estrategias ───────────────────────────────────────────────────────────────

func (r *resolution) attempt(src entity.CertificateSource, path string, found bool, err error) {
	a := entity.ResolutionAttempt{Source: src, Path: path, Found: found}
	if err != nil {
		a.Error = err.Error()
	}
	r.diag.Attempts = append(r.diag.Attempts, a)
}

type inlineBase64 struct{}

func (inlineBase64) source() entity.CertificateSource { return entity.SourceBase64 }

func (inlineBase64) resolve(_ context.Context, r *resolution) []byte {
	if r.record == nil || r.record.ArquivoBase64 == "" {
		return nil
	}
	pfx, err := decodeBase64Blob(r.record.ArquivoBase64)
	r.attempt(entity.SourceBase64, "", err == nil && len(pfx) > 0, err)
	if err != nil {
		return nil
	}
	return pfx
}

// decodeBase64Blob tolera saltos de línea, prefijos data: y ausencia de padding.
func decodeBase64Blob(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); i >= 0 {
		s = s[i+len(";base64,"):]
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("arquivo_base64 inválido: %w", err)
	}
	return b, nil
}

type blobURL struct{ blobs BlobStore }

func (blobURL) source() entity.CertificateSource { return entity.SourceArquivoURL }

func (s blobURL) resolve(ctx context.Context, r *resolution) []byte {
	if r.record == nil || r.record.ArquivoURL == "" {
		return nil
	}
	r.diag.StorageTried = true
	pfx, err := s.blobs.Download(ctx, r.record.ArquivoURL)
	r.attempt(entity.SourceArquivoURL, r.record.ArquivoURL, err == nil && len(pfx) > 0, err)
	if err != nil {
		r.diag.StorageError = err.Error()
		return nil
	}
	return pfx
}

// metaPointer cubre instalaciones sin tabla de certificados: el bucket guarda un JSON
// con el arquivo_url real. Solo corre si la fila no trae arquivo_url.
type metaPointer struct{ blobs BlobStore }

type certificateMeta struct {
	ArquivoURL string `json:"arquivo_url"`
}

func (metaPointer) source() entity.CertificateSource { return entity.SourceMeta }

func (s metaPointer) resolve(ctx context.Context, r *resolution) []byte {
	if r.record != nil && r.record.ArquivoURL != "" {
		return nil
	}
	r.diag.MetaChecked = true
	metaPath := r.owner.MetaPath()

	raw, err := s.blobs.Download(ctx, metaPath)
	if err != nil {
		r.diag.StorageError = err.Error()
		r.attempt(entity.SourceMeta, metaPath, false, err)
		return nil
	}
	var meta certificateMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		r.diag.StorageError = err.Error()
		r.attempt(entity.SourceMeta, metaPath, false, err)
		return nil
	}
	if meta.ArquivoURL == "" {
		r.attempt(entity.SourceMeta, metaPath, false, nil)
		return nil
	}
	r.diag.MetaFound = true
	r.diag.MetaArquivoURL = meta.ArquivoURL

	pfx, err := s.blobs.Download(ctx, meta.ArquivoURL)
	r.attempt(entity.SourceMeta, meta.ArquivoURL, err == nil && len(pfx) > 0, err)
	if err != nil {
		r.diag.StorageError = err.Error()
		return nil
	}
	return pfx
}

type defaultPath struct{ blobs BlobStore }

func (defaultPath) source() entity.CertificateSource { return entity.SourceDirect }

func (s defaultPath) resolve(ctx context.Context, r *resolution) []byte {
	r.diag.DirectPathTried = true
	p := r.owner.DefaultPFXPath()
	pfx, err := s.blobs.Download(ctx, p)
	r.attempt(entity.SourceDirect, p, err == nil && len(pfx) > 0, err)
	if err != nil {
		r.diag.DirectPathError = err.Error()
		return nil
	}
	return pfx
}
