package esocial

import (
	"fmt"
	"regexp"
	"time"
)

// Ambiente identifica el entorno del eSocial.
type Ambiente string

const (
	AmbienteProducao    Ambiente = "producao"
	AmbienteHomologacao Ambiente = "homologacao"
)

// ParseAmbiente valida el valor de ESOCIAL_AMBIENTE. Vacío equivale a producao.
func ParseAmbiente(s string) (Ambiente, error) {
	switch Ambiente(s) {
	case "", AmbienteProducao:
		return AmbienteProducao, nil
	case AmbienteHomologacao:
		return AmbienteHomologacao, nil
	}
	return "", fmt.Errorf("esocial: ambiente desconocido %q", s)
}

// StrictTLS es true solo en producao. Cualquier otro valor relaja la verificación del servidor.
func (a Ambiente) StrictTLS() bool {
	return a == AmbienteProducao
}

// ProbeStatus estado de una sonda de autorización por empresa.
type ProbeStatus string

const (
	ProbePending      ProbeStatus = "pending"
	ProbeAuthorized   ProbeStatus = "authorized"
	ProbeUnauthorized ProbeStatus = "unauthorized"
	ProbeError        ProbeStatus = "error"
)

// TipoEventoS1000 evento usado en la sonda (informações do empregador).
const TipoEventoS1000 = "S-1000"

const dateLayout = "2006-01-02"

// QueryWindow período de apuración consultado por la sonda.
type QueryWindow struct {
	Start time.Time
	End   time.Time
}

// DefaultWindow abarca desde el 1 de enero de hace tres años hasta hoy.
func DefaultWindow(now time.Time) QueryWindow {
	y, m, d := now.Date()
	return QueryWindow{
		Start: time.Date(y-3, time.January, 1, 0, 0, 0, 0, now.Location()),
		End:   time.Date(y, m, d, 0, 0, 0, 0, now.Location()),
	}
}

// StartDate fecha inicial en formato YYYY-MM-DD.
func (w QueryWindow) StartDate() string { return w.Start.Format(dateLayout) }

// EndDate fecha final en formato YYYY-MM-DD.
func (w QueryWindow) EndDate() string { return w.End.Format(dateLayout) }

var erroTag = regexp.MustCompile(`(?i)<erro[\s>]`)

// ClassifyResponse aplica la regla de la sonda: autorizado si el HTTP fue exitoso
// y el cuerpo no contiene una etiqueta <erro>.
func ClassifyResponse(statusCode int, body []byte) ProbeStatus {
	if statusCode >= 200 && statusCode < 300 && !erroTag.Match(body) {
		return ProbeAuthorized
	}
	return ProbeUnauthorized
}
