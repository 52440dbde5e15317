package esocial

import (
	domesocial "github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
)

// Endpoints URLs de los servicios del eSocial para un ambiente.
type Endpoints struct {
	RecepcaoLote    string
	ConsultaLote    string
	DownloadEvento  string
	ConsultaEventos string
}

const (
	baseProducao    = "https://webservices.producaorestrita.esocial.gov.br"
	baseHomologacao = "https://webservices.homologacao.esocial.gov.br"

	pathRecepcaoLote   = "/servicos/empregador/recepcaoevento/RecepcaoEvento.svc"
	pathConsultaLote   = "/servicos/empregador/consultarloteeventos/ConsultarLoteEventos.svc"
	pathDownloadEvento = "/servicos/empregador/download/DownloadEvento.svc"
)

// EndpointsFor devuelve el catálogo del ambiente. Un ambiente desconocido usa producao.
func EndpointsFor(a domesocial.Ambiente) Endpoints {
	base := baseProducao
	if a == domesocial.AmbienteHomologacao {
		base = baseHomologacao
	}
	return Endpoints{
		RecepcaoLote:   base + pathRecepcaoLote,
		ConsultaLote:   base + pathConsultaLote,
		DownloadEvento: base + pathDownloadEvento,
		// La consulta de eventos se publica en el mismo servicio que la consulta de lotes.
		ConsultaEventos: base + pathConsultaLote,
	}
}
