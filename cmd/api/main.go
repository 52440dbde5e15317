package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/jhoicas/esocial-sst-api/docs"
	"github.com/jhoicas/esocial-sst-api/internal/application/dto"
	appesocial "github.com/jhoicas/esocial-sst-api/internal/application/esocial"
	domesocial "github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
	infraesocial "github.com/jhoicas/esocial-sst-api/internal/infrastructure/esocial"
	"github.com/jhoicas/esocial-sst-api/internal/infrastructure/esocial/signer"
	"github.com/jhoicas/esocial-sst-api/internal/infrastructure/metrics"
	infrapdf "github.com/jhoicas/esocial-sst-api/internal/infrastructure/pdf"
	"github.com/jhoicas/esocial-sst-api/internal/infrastructure/postgres"
	"github.com/jhoicas/esocial-sst-api/internal/infrastructure/storage"
	httpRouter "github.com/jhoicas/esocial-sst-api/internal/interfaces/http"
	"github.com/jhoicas/esocial-sst-api/pkg/config"
	"github.com/jhoicas/esocial-sst-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	ambiente, err := domesocial.ParseAmbiente(cfg.ESocial.Ambiente)
	if err != nil {
		log.Fatal().Err(err).Msg("ambiente eSocial")
	}
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("ambiente", string(ambiente)).
		Bool("tls_estricto", ambiente.StrictTLS()).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	blobs, err := storage.New(storage.Options{
		Driver:             cfg.Storage.Driver,
		Bucket:             cfg.ESocial.Bucket,
		SupabaseURL:        cfg.Storage.SupabaseURL,
		SupabaseServiceKey: cfg.Storage.SupabaseServiceKey,
		FSRoot:             cfg.Storage.FSRoot,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("blob store de certificados")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	certRepo := postgres.NewCertificateRepository(pool)
	companyRepo := postgres.NewCompanyRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)

	certStore := signer.NewCertificateStore()
	signerSvc := signer.NewDigitalSignatureService()
	validator := signer.NewSignatureValidator()

	// Canal mTLS: TLS relajado solo en homologacao.
	channels := infraesocial.NewSecureChannelFactory(certStore)
	soapClient := infraesocial.NewSOAPClient(channels, ambiente, cfg.ESocial.EndpointOverride, cfg.ESocial.ProbeTimeout, log)

	resolver := appesocial.NewCertificateResolver(certRepo, blobs, m, log)
	linkedUC := appesocial.NewLinkedCompaniesUseCase(
		resolver, companyRepo, certStore, soapClient, cfg.ESocial.ScanConcurrency, m, log,
	)
	signUC := appesocial.NewSignEventUseCase(resolver, certStore, signerSvc, m, log)
	verifyUC := appesocial.NewVerifyUseCase(validator)

	// PDF: informe de validación del certificado A1
	inspector := appesocial.NewCertificateInspector(certStore, infrapdf.NewMarotoReportRenderer())
	diagnosticsUC := appesocial.NewAccountDiagnosticsUseCase(certRepo, blobs, cfg.ESocial.Bucket)
	connectionUC := appesocial.NewConnectionTestUseCase(companyRepo, soapClient, auditRepo, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.ESocial.ProbeTimeout + 10*time.Second,
		IdleTimeout:  time.Second * 60,
		BodyLimit:    httpRouter.MaxCertificateUpload + 1024*1024,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "eSocial SST API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(dto.HealthResponse{Status: "ok", Service: cfg.App.Name, Ambiente: string(ambiente)})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		LinkedCompanies:    linkedUC,
		SignEvent:          signUC,
		VerifySignature:    verifyUC,
		Inspector:          inspector,
		AccountDiagnostics: diagnosticsUC,
		ConnectionTest:     connectionUC,
		Metrics:            registry,
		JWTSecret:          cfg.JWT.Secret,
		JWTIssuer:          cfg.JWT.Issuer,
		JWTLeeway:          cfg.JWT.Leeway,
		Logger:             log,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
