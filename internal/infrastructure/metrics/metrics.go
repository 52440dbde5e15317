// Package metrics expone contadores e histogramas Prometheus del canal eSocial.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics agrupa las métricas del canal. Un *Metrics nil es válido y no registra nada.
type Metrics struct {
	ProbesTotal         *prometheus.CounterVec
	ProbeDuration       *prometheus.HistogramVec
	ResolutionsTotal    *prometheus.CounterVec
	SignaturesTotal     *prometheus.CounterVec
	CertificateDecoding *prometheus.CounterVec
}

// New registra las métricas en reg. En producción se usa prometheus.DefaultRegisterer;
// en tests un prometheus.NewRegistry() por caso.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProbesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "esocial_probes_total",
			Help: "Sondas de autorización enviadas al eSocial por resultado",
		}, []string{"ambiente", "status"}),
		ProbeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "esocial_probe_duration_seconds",
			Help:    "Duración de cada sonda (handshake mTLS + respuesta SOAP)",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"ambiente"}),
		ResolutionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "esocial_certificate_resolutions_total",
			Help: "Resoluciones de certificado por origen (base64, arquivo_url, meta, direct, none)",
		}, []string{"owner", "source"}),
		SignaturesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "esocial_signatures_total",
			Help: "Firmas XML por resultado",
		}, []string{"result"}),
		CertificateDecoding: f.NewCounterVec(prometheus.CounterOpts{
			Name: "esocial_certificate_decode_total",
			Help: "Decodificaciones PKCS#12 por resultado (ok o tipo de error)",
		}, []string{"result"}),
	}
}

// ObserveProbe registra una sonda terminada.
func (m *Metrics) ObserveProbe(ambiente, status string, start time.Time) {
	if m == nil {
		return
	}
	m.ProbesTotal.WithLabelValues(ambiente, status).Inc()
	m.ProbeDuration.WithLabelValues(ambiente).Observe(time.Since(start).Seconds())
}

// IncResolution registra el origen del certificado ("none" si no se encontró).
func (m *Metrics) IncResolution(owner, source string) {
	if m == nil {
		return
	}
	if source == "" {
		source = "none"
	}
	m.ResolutionsTotal.WithLabelValues(owner, source).Inc()
}

// IncSignature registra el resultado de una firma ("ok" o el Kind del error).
func (m *Metrics) IncSignature(result string) {
	if m == nil {
		return
	}
	m.SignaturesTotal.WithLabelValues(result).Inc()
}

// IncDecode registra el resultado de decodificar un PKCS#12.
func (m *Metrics) IncDecode(result string) {
	if m == nil {
		return
	}
	m.CertificateDecoding.WithLabelValues(result).Inc()
}
