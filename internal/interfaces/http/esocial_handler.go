package http

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/esocial-sst-api/internal/application/dto"
	appesocial "github.com/jhoicas/esocial-sst-api/internal/application/esocial"
	"github.com/jhoicas/esocial-sst-api/internal/domain"
	domesocial "github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
	"github.com/jhoicas/esocial-sst-api/pkg/logger"
)

// MaxCertificateUpload tamaño máximo del .pfx aceptado por el validador.
const MaxCertificateUpload = 10 * 1024 * 1024

const (
	msgCertificadoContaNaoEncontrado    = "Certificado da conta não encontrado"
	msgCertificadoEmpresaNaoEncontrado  = "Certificado da empresa não encontrado"
	msgArquivoESenhaObrigatorios        = "Arquivo e senha são obrigatórios"
	msgExtensaoInvalida                 = "Apenas arquivos .pfx ou .p12 são aceitos"
	msgArquivoMuitoGrande               = "Arquivo muito grande. Máximo 10MB permitido"
	msgFalhaConsultaESocial             = "Falha ao consultar o eSocial"
	msgParametrosObrigatoriosAssinatura = "Parâmetros obrigatórios: empresaId, certPassword, rawXml"
	msgErroInternoEmpresas              = "Erro interno ao consultar empresas vinculadas"
	msgXMLInvalido                      = "XML inválido ou ausente"
	msgErroInternoValidacao             = "Erro interno ao validar assinatura"
	msgErroPDF                          = "Não foi possível gerar o PDF"
	msgErroInternoConexao               = "Erro interno ao testar conexão"
	msgErroInternoAssinatura            = "Erro interno ao assinar o XML"
)

// signErrorMessages texto fijo por tipo de error; el detalle solo va al log.
var signErrorMessages = map[domesocial.Kind]string{
	domesocial.KindInvalidInputXML:       "XML inválido",
	domesocial.KindNoSignableElement:     "Elemento evento com atributo Id não encontrado",
	domesocial.KindWrongPassphrase:       "Senha do certificado incorreta",
	domesocial.KindMalformedContainer:    "Arquivo de certificado inválido",
	domesocial.KindIncompleteCertificate: "Certificado sem chave privada ou sem certificado",
	domesocial.KindExpiredCertificate:    "Certificado expirado",
	domesocial.KindSigningFailed:         "Falha ao assinar o XML",
}

// Contratos mínimos de los casos de uso; los implementan los tipos de application/esocial.
type (
	linkedCompaniesExecutor interface {
		Execute(ctx context.Context, in appesocial.LinkedCompaniesInput) (*appesocial.LinkedCompaniesResult, error)
	}
	eventSigner interface {
		Execute(ctx context.Context, in appesocial.SignInput) (string, error)
	}
	signatureVerifier interface {
		Execute(ctx context.Context, xml string) (bool, error)
	}
	certificateInspector interface {
		Inspect(ctx context.Context, in appesocial.InspectInput) *appesocial.CertificateReport
		RenderPDF(ctx context.Context, in appesocial.InspectInput) (*appesocial.CertificateReport, []byte, error)
	}
	accountDiagnoser interface {
		Execute(ctx context.Context, userID string) *appesocial.AccountDiagnostics
	}
	connectionTester interface {
		Execute(ctx context.Context, empresaID, usuarioID string) (*appesocial.ConnectionResult, error)
	}
)

// ESocialHandler expone el canal seguro eSocial (protegido).
type ESocialHandler struct {
	linked      linkedCompaniesExecutor
	sign        eventSigner
	verify      signatureVerifier
	inspector   certificateInspector
	diagnostics accountDiagnoser
	connection  connectionTester
	log         *logger.Logger
}

// NewESocialHandler construye el handler.
func NewESocialHandler(
	linked linkedCompaniesExecutor,
	sign eventSigner,
	verify signatureVerifier,
	inspector certificateInspector,
	diagnostics accountDiagnoser,
	connection connectionTester,
) *ESocialHandler {
	return &ESocialHandler{
		linked:      linked,
		sign:        sign,
		verify:      verify,
		inspector:   inspector,
		diagnostics: diagnostics,
		connection:  connection,
		log:         logger.Nop(),
	}
}

// WithLogger registra los errores internos que no viajan al cliente.
func (h *ESocialHandler) WithLogger(log *logger.Logger) *ESocialHandler {
	if log != nil {
		h.log = log.Component("http.esocial")
	}
	return h
}

// LinkedCompanies godoc
// @Summary      Empresas vinculadas al certificado de la cuenta
// @Description  Con cnpj (14 dígitos tras sanear) consulta solo ese CNPJ y devuelve autorizado.
//               Sin cnpj, o con longitud inválida, barre el directorio de empresas.
// @Tags         esocial
// @Security     Bearer
// @Produce      json
// @Param        cnpj  query     string  false  "CNPJ del empleador (con o sin máscara)"
// @Success      200   {object}  dto.LinkedCompaniesResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.CertificateNotFoundResponse
// @Failure      500   {object}  dto.ProbeFailureResponse
// @Router       /api/esocial/empresas-vinculadas [get]
func (h *ESocialHandler) LinkedCompanies(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}

	res, err := h.linked.Execute(c.Context(), appesocial.LinkedCompaniesInput{UserID: userID, CNPJ: c.Query("cnpj")})
	if err != nil {
		var notFound *appesocial.ResolutionError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.CertificateNotFoundResponse{
				Error:       msgCertificadoContaNaoEncontrado,
				Diagnostics: notFound.Diagnostics,
			})
		}
		if pf, ok := appesocial.IsProbeFailure(err); ok {
			h.log.Error().Err(pf.Err).Str("cnpj", c.Query("cnpj")).Msg("empresas vinculadas: fallo de la consulta")
			return c.Status(fiber.StatusInternalServerError).JSON(probeFailureResponse(pf))
		}
		if isContextError(err) {
			return c.Status(fiber.StatusRequestTimeout).JSON(dto.ErrorResponse{Code: "TIMEOUT", Message: "consulta cancelada"})
		}
		h.log.Error().Err(err).Str("usuario_id", userID).Msg("empresas vinculadas")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: msgErroInternoEmpresas})
	}
	if res.Denial != nil {
		h.log.Info().Err(res.Denial).Str("kind", string(domesocial.KindOf(res.Denial))).Str("usuario_id", userID).Msg("empresas vinculadas: acceso denegado")
	}

	return c.JSON(dto.LinkedCompaniesResponse{
		Sucesso:    true,
		Autorizado: res.Authorized,
		Empresas:   dto.ToCompanyResponses(res.Companies),
	})
}

// SignXML godoc
// @Summary      Firmar evento eSocial
// @Description  Firma (XMLDSig envelopado, RSA-SHA256) el elemento evento con el certificado A1
//               de la empresa. La contraseña informada prevalece sobre la almacenada.
// @Tags         esocial
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body      dto.SignXMLRequest  true  "empresaId, certPassword y rawXml"
// @Success      200   {object}  dto.SignXMLResponse
// @Failure      400   {object}  dto.SignXMLResponse
// @Failure      404   {object}  dto.SignXMLResponse
// @Failure      422   {object}  dto.SignXMLResponse
// @Failure      500   {object}  dto.SignXMLResponse
// @Router       /api/esocial/assinar-xml [post]
func (h *ESocialHandler) SignXML(c *fiber.Ctx) error {
	var req dto.SignXMLRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.SignXMLResponse{Error: "corpo da requisição inválido", Code: "INVALID_BODY"})
	}

	signed, err := h.sign.Execute(c.Context(), appesocial.SignInput{
		EmpresaID:    req.EmpresaID,
		CertPassword: req.CertPassword,
		RawXML:       req.RawXML,
	})
	if err != nil {
		status, body := signErrorResponse(err)
		h.log.Warn().Err(err).Str("empresa_id", req.EmpresaID).Int("status", status).Msg("assinar xml")
		return c.Status(status).JSON(body)
	}
	return c.JSON(dto.SignXMLResponse{Success: true, SignedXML: signed})
}

// VerifyXML godoc
// @Summary      Validar firma de un XML
// @Description  Sin elemento Signature devuelve valido=false.
// @Tags         esocial
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body      dto.VerifyXMLRequest  true  "XML firmado"
// @Success      200   {object}  dto.VerifyXMLResponse
// @Failure      400   {object}  dto.VerifyXMLResponse
// @Router       /api/esocial/validar-assinatura [post]
func (h *ESocialHandler) VerifyXML(c *fiber.Ctx) error {
	var req dto.VerifyXMLRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.VerifyXMLResponse{Error: "corpo da requisição inválido"})
	}
	ok, err := h.verify.Execute(c.Context(), req.XML)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domesocial.ErrInvalidInputXML) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.VerifyXMLResponse{Error: msgXMLInvalido})
		}
		h.log.Error().Err(err).Msg("validar assinatura")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.VerifyXMLResponse{Error: msgErroInternoValidacao})
	}
	return c.JSON(dto.VerifyXMLResponse{Success: true, Valido: ok})
}

// ValidateCertificate godoc
// @Summary      Validar certificado A1 antes de guardarlo
// @Description  Verifica contraseña, par de claves, vigencia, fuerza de la clave, algoritmo,
//               titularidad (opcional) y cadena. Máximo 10MB, extensiones .pfx y .p12.
// @Tags         esocial
// @Security     Bearer
// @Accept       multipart/form-data
// @Produce      json
// @Param        certificado  formData  file    true   "Archivo .pfx/.p12"
// @Param        senha        formData  string  true   "Contraseña del archivo"
// @Param        cnpjEmpresa  formData  string  false  "CNPJ de la empresa titular"
// @Success      200          {object}  esocial.CertificateReport
// @Failure      400          {object}  dto.CertificateReportError
// @Router       /api/esocial/validar-certificado [post]
func (h *ESocialHandler) ValidateCertificate(c *fiber.Ctx) error {
	in, fail := readCertificateUpload(c)
	if fail != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail)
	}
	return c.JSON(h.inspector.Inspect(c.Context(), in))
}

// ValidateCertificatePDF godoc
// @Summary      Informe PDF de validación del certificado A1
// @Tags         esocial
// @Security     Bearer
// @Accept       multipart/form-data
// @Produce      application/pdf
// @Param        certificado  formData  file    true   "Archivo .pfx/.p12"
// @Param        senha        formData  string  true   "Contraseña del archivo"
// @Param        cnpjEmpresa  formData  string  false  "CNPJ de la empresa titular"
// @Success      200          {file}    binary
// @Failure      400          {object}  dto.CertificateReportError
// @Failure      500          {object}  dto.ErrorResponse
// @Router       /api/esocial/validar-certificado/pdf [post]
func (h *ESocialHandler) ValidateCertificatePDF(c *fiber.Ctx) error {
	in, fail := readCertificateUpload(c)
	if fail != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail)
	}
	report, pdf, err := h.inspector.RenderPDF(c.Context(), in)
	if err != nil {
		h.log.Error().Err(err).Msg("informe PDF del certificado")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "PDF_ERROR", Message: msgErroPDF})
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="validacao-certificado.pdf"`)
	c.Set("X-Certificate-Status", report.Status)
	return c.Send(pdf)
}

// AccountDiagnostics godoc
// @Summary      Diagnóstico del certificado de la cuenta
// @Description  Revisa la tabla certificados_conta y todas las rutas del bucket sin decodificar nada.
// @Tags         esocial
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  esocial.AccountDiagnostics
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /api/esocial/diagnosticos/certificado-conta [get]
func (h *ESocialHandler) AccountDiagnostics(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	return c.JSON(h.diagnostics.Execute(c.Context(), userID))
}

// TestConnection godoc
// @Summary      Probar conexión con el eSocial
// @Description  Comprueba que el servicio de recepción responde y registra la prueba en logs_auditoria.
// @Description  Sin empresa_id en el cuerpo se usa la empresa del token.
// @Tags         esocial
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body      dto.TestConnectionRequest  true  "empresa_id"
// @Success      200   {object}  dto.TestConnectionResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/esocial/testar-conexao [post]
func (h *ESocialHandler) TestConnection(c *fiber.Ctx) error {
	var req dto.TestConnectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	empresaID := strings.TrimSpace(req.EmpresaID)
	if empresaID == "" {
		empresaID = GetCompanyID(c)
	}
	res, err := h.connection.Execute(c.Context(), empresaID, GetUserID(c))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "empresa_id inválido"})
		}
		h.log.Error().Err(err).Str("empresa_id", empresaID).Msg("testar conexao")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: msgErroInternoConexao})
	}
	return c.JSON(dto.TestConnectionResponse{Success: res.Conectado, Ambiente: res.Ambiente, Erro: res.Erro})
}

// ── helpers ───────────────────────────────────────────────────────────────────

func probeFailureResponse(pf *appesocial.ProbeFailure) dto.ProbeFailureResponse {
	d := pf.Diagnostics
	return dto.ProbeFailureResponse{
		Empresas: []dto.CompanyResponse{},
		Error:    msgFalhaConsultaESocial + ": " + d.Error.Name,
		Diagnostics: dto.ProbeDiagnosticsBody{
			ResolutionDiagnostics: d.ResolutionDiagnostics,
			Ambiente:              string(d.Ambiente),
			Endpoint:              d.Endpoint,
			TLS: dto.TLSDiagnostics{
				RejectUnauthorized: d.RejectUnauthorized,
				HTTPVersion:        d.HTTPVersion,
			},
			Error: d.Error,
		},
	}
}

// signErrorResponse traduce la taxonomía a código HTTP. Los fallos del certificado son 422.
func signErrorResponse(err error) (int, dto.SignXMLResponse) {
	kind := domesocial.KindOf(err)
	body := dto.SignXMLResponse{Error: msgErroInternoAssinatura, Code: string(kind)}
	if msg, ok := signErrorMessages[kind]; ok {
		body.Error = msg
	}

	var notFound *appesocial.ResolutionError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		body.Error, body.Code = msgParametrosObrigatoriosAssinatura, "VALIDATION"
		return fiber.StatusBadRequest, body
	case errors.As(err, &notFound):
		body.Error = msgCertificadoEmpresaNaoEncontrado
		return fiber.StatusNotFound, body
	}

	switch kind {
	case domesocial.KindInvalidInputXML, domesocial.KindNoSignableElement:
		return fiber.StatusBadRequest, body
	case domesocial.KindWrongPassphrase, domesocial.KindMalformedContainer,
		domesocial.KindIncompleteCertificate, domesocial.KindExpiredCertificate:
		return fiber.StatusUnprocessableEntity, body
	}
	if body.Code == "" {
		body.Code = "INTERNAL"
	}
	return fiber.StatusInternalServerError, body
}

// readCertificateUpload acepta el campo "certificado" o, por compatibilidad, "arquivo".
func readCertificateUpload(c *fiber.Ctx) (appesocial.InspectInput, *dto.CertificateReportError) {
	fail := func(msg string) *dto.CertificateReportError {
		return &dto.CertificateReportError{Status: "error", Message: msg}
	}

	senha := c.FormValue("senha")
	fh, err := c.FormFile("certificado")
	if err != nil {
		fh, err = c.FormFile("arquivo")
	}
	if err != nil || senha == "" {
		return appesocial.InspectInput{}, fail(msgArquivoESenhaObrigatorios)
	}

	switch strings.ToLower(filepath.Ext(fh.Filename)) {
	case ".pfx", ".p12":
	default:
		return appesocial.InspectInput{}, fail(msgExtensaoInvalida)
	}
	if fh.Size > MaxCertificateUpload {
		return appesocial.InspectInput{}, fail(msgArquivoMuitoGrande)
	}

	f, err := fh.Open()
	if err != nil {
		return appesocial.InspectInput{}, fail(msgArquivoESenhaObrigatorios)
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, MaxCertificateUpload+1))
	if err != nil {
		return appesocial.InspectInput{}, fail(msgArquivoESenhaObrigatorios)
	}
	if len(raw) > MaxCertificateUpload {
		return appesocial.InspectInput{}, fail(msgArquivoMuitoGrande)
	}

	return appesocial.InspectInput{PFX: raw, Password: senha, CNPJEmpresa: c.FormValue("cnpjEmpresa")}, nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
