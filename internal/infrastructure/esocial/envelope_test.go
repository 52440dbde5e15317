package esocial_test

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domesocial "github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
	"github.com/jhoicas/esocial-sst-api/internal/infrastructure/esocial"
)

func TestBuildConsultaEnvelope(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

	env := esocial.BuildConsultaEnvelope("03731608000184", start, end, domesocial.TipoEventoS1000)
	assert.Contains(t, env, `<?xml version="1.0" encoding="UTF-8"?>`)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(env))

	root := doc.Root()
	assert.Equal(t, "Envelope", root.Tag)
	assert.Equal(t, "http://schemas.xmlsoap.org/soap/envelope/", root.NamespaceURI())
	require.NotNil(t, root.FindElement("./Header"))

	consulta := root.FindElement("./Body/ConsultarEventos/consulta")
	require.NotNil(t, consulta)
	assert.Equal(t, "http://www.esocial.gov.br/servicos/empregador/consulta/eventos/v1_0_0", consulta.NamespaceURI())

	assert.Equal(t, "1", consulta.FindElement("./ideEmpregador/tpInsc").Text())
	assert.Equal(t, "03731608000184", consulta.FindElement("./ideEmpregador/nrInsc").Text())
	assert.Equal(t, "S-1000", consulta.FindElement("./consultaEventos/tipoEvento").Text())
	assert.Equal(t, "2023-01-01", consulta.FindElement("./consultaEventos/perApur").Text())
	assert.Equal(t, "2026-10-18", consulta.FindElement("./consultaEventos/perApurFim").Text())
}

func TestFaultString(t *testing.T) {
	body := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><s:Fault>
<faultcode>s:Client</faultcode><faultstring> Certificado não autorizado </faultstring></s:Fault></s:Body></s:Envelope>`
	assert.Equal(t, "Certificado não autorizado", esocial.FaultString([]byte(body)))
	assert.Empty(t, esocial.FaultString([]byte("<ok/>")))
	assert.Empty(t, esocial.FaultString([]byte("no es xml")))
}

func TestEndpointsFor(t *testing.T) {
	prod := esocial.EndpointsFor(domesocial.AmbienteProducao)
	assert.Equal(t, "https://webservices.producaorestrita.esocial.gov.br/servicos/empregador/consultarloteeventos/ConsultarLoteEventos.svc", prod.ConsultaEventos)
	assert.Equal(t, "https://webservices.producaorestrita.esocial.gov.br/servicos/empregador/recepcaoevento/RecepcaoEvento.svc", prod.RecepcaoLote)

	hom := esocial.EndpointsFor(domesocial.AmbienteHomologacao)
	assert.Equal(t, "https://webservices.homologacao.esocial.gov.br/servicos/empregador/download/DownloadEvento.svc", hom.DownloadEvento)
	assert.Equal(t, hom.ConsultaLote, hom.ConsultaEventos)
}
