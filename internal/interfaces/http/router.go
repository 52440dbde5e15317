package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appesocial "github.com/jhoicas/esocial-sst-api/internal/application/esocial"
	"github.com/jhoicas/esocial-sst-api/pkg/jwt"
	"github.com/jhoicas/esocial-sst-api/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	LinkedCompanies    *appesocial.LinkedCompaniesUseCase
	SignEvent          *appesocial.SignEventUseCase
	VerifySignature    *appesocial.VerifyUseCase
	Inspector          *appesocial.CertificateInspector
	AccountDiagnostics *appesocial.AccountDiagnosticsUseCase
	ConnectionTest     *appesocial.ConnectionTestUseCase
	Metrics            prometheus.Gatherer // nil = sin /metrics
	JWTSecret          string
	JWTIssuer          string        // vacío = no se comprueba
	JWTLeeway          time.Duration
	Logger             *logger.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(jwt.NewVerifier(deps.JWTSecret, deps.JWTIssuer, deps.JWTLeeway)))

	esocialHandler := NewESocialHandler(
		deps.LinkedCompanies,
		deps.SignEvent,
		deps.VerifySignature,
		deps.Inspector,
		deps.AccountDiagnostics,
		deps.ConnectionTest,
	).WithLogger(deps.Logger)
	esocialHandler.Register(protected.Group("/esocial"))
}

// Register monta las rutas del canal eSocial sobre un grupo ya autenticado.
// Firmar y probar la conexión exigen rol admin o tecnico_sst.
func (h *ESocialHandler) Register(r fiber.Router) {
	operators := RequireRole(RoleAdmin, RoleTecnico)

	r.Get("/empresas-vinculadas", h.LinkedCompanies)
	r.Post("/assinar-xml", operators, h.SignXML)
	r.Post("/validar-assinatura", h.VerifyXML)
	r.Post("/validar-certificado", h.ValidateCertificate)
	r.Post("/validar-certificado/pdf", h.ValidateCertificatePDF)
	r.Get("/diagnosticos/certificado-conta", h.AccountDiagnostics)
	r.Post("/testar-conexao", operators, h.TestConnection)
}
