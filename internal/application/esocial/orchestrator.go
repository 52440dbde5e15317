package esocial

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
	domesocial "github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
	"github.com/jhoicas/esocial-sst-api/internal/domain/repository"
	"github.com/jhoicas/esocial-sst-api/internal/infrastructure/metrics"
	"github.com/jhoicas/esocial-sst-api/pkg/esocial"
	"github.com/jhoicas/esocial-sst-api/pkg/logger"
)

// LinkedCompaniesInput CNPJ vacío o con longitud distinta de 14 tras sanear = barrido completo.
type LinkedCompaniesInput struct {
	UserID string
	CNPJ   string
}

// LinkedCompaniesResult Authorized es nil en el barrido (no aplica). Denial solo se informa en la
// consulta filtrada cuando el gobierno responde con <erro>; envuelve domesocial.ErrUnauthorized.
type LinkedCompaniesResult struct {
	Authorized *bool
	Companies  []entity.Company
	Denial     error
}

// ProbeDiagnostics lo que se devuelve al cliente cuando la sonda filtrada falla.
type ProbeDiagnostics struct {
	entity.ResolutionDiagnostics
	domesocial.ChannelDescription
	Error domesocial.TransportErrorDetail
}

// ProbeFailure fallo de la consulta filtrada. Nunca se produce en el barrido.
type ProbeFailure struct {
	Err         error
	Diagnostics ProbeDiagnostics
}

func (e *ProbeFailure) Error() string { return e.Err.Error() }
func (e *ProbeFailure) Unwrap() error { return e.Err }

// LinkedCompaniesUseCase determina para qué empresas está autorizado el certificado de una cuenta.
type LinkedCompaniesUseCase struct {
	resolver    *CertificateResolver
	directory   repository.CompanyDirectory
	certs       CertificateDecoder
	probes      ProbeClient
	metrics     *metrics.Metrics
	log         *logger.Logger
	tracer      trace.Tracer
	now         func() time.Time
	concurrency int
}

// NewLinkedCompaniesUseCase concurrency < 1 se trata como 1 (secuencial).
func NewLinkedCompaniesUseCase(
	resolver *CertificateResolver,
	directory repository.CompanyDirectory,
	certs CertificateDecoder,
	probes ProbeClient,
	concurrency int,
	m *metrics.Metrics,
	log *logger.Logger,
) *LinkedCompaniesUseCase {
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LinkedCompaniesUseCase{
		resolver:    resolver,
		directory:   directory,
		certs:       certs,
		probes:      probes,
		metrics:     m,
		log:         log.Component("esocial.linked_companies"),
		tracer:      otel.Tracer("github.com/jhoicas/esocial-sst-api/internal/application/esocial"),
		now:         time.Now,
		concurrency: concurrency,
	}
}

// WithClock fija el reloj usado para la ventana de consulta (tests).
func (uc *LinkedCompaniesUseCase) WithClock(now func() time.Time) *LinkedCompaniesUseCase {
	uc.now = now
	return uc
}

// Execute resuelve el certificado de la cuenta y ejecuta la sonda filtrada o el barrido.
// Errores: *ResolutionError (sin certificado), *ProbeFailure (solo modo filtrado) o fallo del directorio.
func (uc *LinkedCompaniesUseCase) Execute(ctx context.Context, in LinkedCompaniesInput) (*LinkedCompaniesResult, error) {
	ctx, span := uc.tracer.Start(ctx, "esocial.LinkedCompanies")
	defer span.End()

	resolved, err := uc.resolver.Resolve(ctx, entity.CertificateOwner{Kind: entity.OwnerUsuario, ID: in.UserID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve")
		return nil, err
	}
	span.SetAttributes(attribute.String("esocial.pfx_source", string(resolved.Source)))

	companies, err := uc.directory.ListCompanies(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "directory")
		return nil, err
	}
	sortByName(companies)

	filter := esocial.SanitizeCNPJ(in.CNPJ)
	filtered := esocial.ValidateCNPJ(filter) == nil
	span.SetAttributes(attribute.Bool("esocial.filtered", filtered))

	dc, err := uc.certs.Decode(resolved.PFX, resolved.Passphrase)
	uc.metrics.IncDecode(decodeResult(err))
	if err != nil {
		if !filtered {
			uc.log.Warn().Err(err).Str("pfx_source", string(resolved.Source)).Msg("certificado no decodifica; barrido vacío")
			return &LinkedCompaniesResult{Companies: []entity.Company{}}, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		return nil, uc.failure(err, resolved.Diagnostics, uc.probes.Describe())
	}
	dc.Source = resolved.Source

	session := uc.probes.Session(dc)
	defer session.Close()
	window := domesocial.DefaultWindow(uc.now())

	if filtered {
		return uc.probeOne(ctx, session, window, filter, companies, resolved.Diagnostics)
	}
	return uc.scan(ctx, session, window, companies)
}

func (uc *LinkedCompaniesUseCase) probeOne(
	ctx context.Context,
	session domesocial.ProbeSession,
	window domesocial.QueryWindow,
	cnpj string,
	companies []entity.Company,
	diag entity.ResolutionDiagnostics,
) (*LinkedCompaniesResult, error) {
	status, err := uc.probe(ctx, session, window, cnpj)
	if err != nil {
		uc.log.Error().Err(err).Str("cnpj", cnpj).Msg("fallo la consulta del CNPJ representado")
		return nil, uc.failure(err, diag, session.Describe())
	}

	authorized := status == domesocial.ProbeAuthorized
	res := &LinkedCompaniesResult{Authorized: &authorized, Companies: []entity.Company{}}
	if !authorized {
		res.Denial = domesocial.E(domesocial.KindUnauthorized, "consultar", "CNPJ "+cnpj+" recusado pelo eSocial", nil)
		uc.log.Info().Str("cnpj", cnpj).Str("kind", string(domesocial.KindUnauthorized)).Msg("certificado sin procuración para el CNPJ")
		return res, nil
	}
	company := entity.SyntheticCompany(cnpj)
	for _, c := range companies {
		if esocial.SanitizeCNPJ(c.CNPJ) == cnpj {
			company = c
			break
		}
	}
	res.Companies = append(res.Companies, company)
	return res, nil
}

// scan sondea cada empresa con CNPJ de 14 dígitos. Los errores por empresa se descartan
// y el resultado conserva el orden del directorio. Si ctx se cancela no se lanzan más sondas
// y se devuelven las empresas ya autorizadas.
func (uc *LinkedCompaniesUseCase) scan(
	ctx context.Context,
	session domesocial.ProbeSession,
	window domesocial.QueryWindow,
	companies []entity.Company,
) (*LinkedCompaniesResult, error) {
	authorized := make([]bool, len(companies))

	var g errgroup.Group
	g.SetLimit(uc.concurrency)
	for i, c := range companies {
		cnpj := esocial.SanitizeCNPJ(c.CNPJ)
		if esocial.ValidateCNPJ(cnpj) != nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			status, err := uc.probe(ctx, session, window, cnpj)
			if err != nil {
				uc.log.Debug().Err(err).Str("cnpj", cnpj).Msg("sonda ignorada en el barrido")
				return nil
			}
			authorized[i] = status == domesocial.ProbeAuthorized
			return nil
		})
	}
	_ = g.Wait()

	linked := []entity.Company{}
	for i, ok := range authorized {
		if ok {
			linked = append(linked, companies[i])
		}
	}
	if err := ctx.Err(); err != nil {
		uc.log.Warn().Err(err).Int("empresas", len(companies)).Int("vinculadas", len(linked)).Msg("barrido interrumpido; resultado parcial")
		return &LinkedCompaniesResult{Companies: linked}, nil
	}
	uc.log.Info().Int("empresas", len(companies)).Int("vinculadas", len(linked)).Msg("barrido completado")
	return &LinkedCompaniesResult{Companies: linked}, nil
}

func (uc *LinkedCompaniesUseCase) probe(ctx context.Context, session domesocial.ProbeSession, window domesocial.QueryWindow, cnpj string) (domesocial.ProbeStatus, error) {
	desc := session.Describe()
	ctx, span := uc.tracer.Start(ctx, "esocial.Probe", trace.WithAttributes(
		attribute.String("esocial.cnpj", cnpj),
		attribute.String("esocial.ambiente", string(desc.Ambiente)),
	))
	defer span.End()

	start := time.Now()
	resp, err := session.ConsultarEventos(ctx, cnpj, window)
	if err != nil {
		uc.metrics.ObserveProbe(string(desc.Ambiente), string(domesocial.ProbeError), start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return domesocial.ProbeError, err
	}
	status := resp.Status()
	uc.metrics.ObserveProbe(string(desc.Ambiente), string(status), start)
	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.String("esocial.probe_status", string(status)),
	)
	uc.log.Debug().
		Str("cnpj", cnpj).
		Int("http_status", resp.StatusCode).
		Str("status", string(status)).
		Dur("duration", time.Since(start)).
		Msg("sonda completada")
	return status, nil
}

func (uc *LinkedCompaniesUseCase) failure(err error, diag entity.ResolutionDiagnostics, desc domesocial.ChannelDescription) *ProbeFailure {
	return &ProbeFailure{
		Err: err,
		Diagnostics: ProbeDiagnostics{
			ResolutionDiagnostics: diag,
			ChannelDescription:    desc,
			Error:                 domesocial.DescribeTransportError(err),
		},
	}
}

// sortByName ordena por nome con colación pt-BR (acentos y mayúsculas no alteran el orden alfabético).
func sortByName(companies []entity.Company) {
	c := collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
	sort.SliceStable(companies, func(i, j int) bool {
		return c.CompareString(companies[i].Nome, companies[j].Nome) < 0
	})
}

func decodeResult(err error) string {
	if err == nil {
		return "ok"
	}
	if k := domesocial.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

// IsProbeFailure atajo para los handlers.
func IsProbeFailure(err error) (*ProbeFailure, bool) {
	var pf *ProbeFailure
	ok := errors.As(err, &pf)
	return pf, ok
}
