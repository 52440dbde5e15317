package esocial

import (
	"strings"
	"time"

	"github.com/beevik/etree"
)

const (
	nsSOAP     = "http://schemas.xmlsoap.org/soap/envelope/"
	nsConsulta = "http://www.esocial.gov.br/servicos/empregador/consulta/eventos/v1_0_0"

	// SOAPActionConsultarEventos acción de la consulta de eventos usada como sonda.
	SOAPActionConsultarEventos = "http://www.esocial.gov.br/servicos/empregador/consulta/eventos/v1_0_0/ServicoConsultarEventos/ConsultarEventos"
	// SOAPActionEnviarLote recepción de lote de eventos.
	SOAPActionEnviarLote = "http://www.esocial.gov.br/servicos/empregador/lote/eventos/envio/v1_1_1/ServicoEnviarLoteEventos/EnviarLoteEventos"
	// SOAPActionConsultarLote consulta del procesamiento de un lote.
	SOAPActionConsultarLote = "http://www.esocial.gov.br/servicos/empregador/lote/eventos/envio/v1_1_1/ServicoConsultarLoteEventos/ConsultarLoteEventos"
	// SOAPActionSolicitarDownload descarga de eventos por recibo.
	SOAPActionSolicitarDownload = "http://www.esocial.gov.br/servicos/empregador/download/solicitacao/v1_0_0/ServicoSolicitarDownloadEventos/SolicitarDownloadEventos"

	dateLayout = "2006-01-02"
)

// BuildConsultaEnvelope arma el sobre SOAP 1.1 de ConsultarEventos.
// El CNPJ debe llegar ya saneado con 14 dígitos; las fechas se emiten como YYYY-MM-DD.
func BuildConsultaEnvelope(cnpj string, start, end time.Time, tipoEvento string) string {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", nsSOAP)
	env.CreateAttr("xmlns:esoc", nsConsulta)
	env.CreateElement("soap:Header")

	consulta := env.CreateElement("soap:Body").
		CreateElement("esoc:ConsultarEventos").
		CreateElement("esoc:consulta")

	ide := consulta.CreateElement("esoc:ideEmpregador")
	ide.CreateElement("esoc:tpInsc").SetText("1")
	ide.CreateElement("esoc:nrInsc").SetText(cnpj)

	ev := consulta.CreateElement("esoc:consultaEventos")
	ev.CreateElement("esoc:tipoEvento").SetText(tipoEvento)
	ev.CreateElement("esoc:perApur").SetText(start.Format(dateLayout))
	ev.CreateElement("esoc:perApurFim").SetText(end.Format(dateLayout))

	doc.Indent(2)
	var sb strings.Builder
	_, _ = doc.WriteTo(&sb)
	return sb.String()
}

// ── Respuesta ──────────────────────────────────────────────────────────────────

// FaultString devuelve el faultstring de un SOAP Fault, o "" si el cuerpo no lo trae o no es XML.
func FaultString(body []byte) string {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return ""
	}
	for _, f := range doc.FindElements("//Fault") {
		if fs := f.FindElement("./faultstring"); fs != nil {
			return strings.TrimSpace(fs.Text())
		}
	}
	return ""
}
