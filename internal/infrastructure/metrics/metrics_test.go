package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/esocial-sst-api/internal/infrastructure/metrics"
)

func TestMetrics_Contadores(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveProbe("homologacao", "authorized", time.Now())
	m.ObserveProbe("homologacao", "authorized", time.Now())
	m.ObserveProbe("homologacao", "error", time.Now())
	m.IncResolution("usuario", "")
	m.IncResolution("usuario", "meta")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProbesTotal.WithLabelValues("homologacao", "authorized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProbesTotal.WithLabelValues("homologacao", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("usuario", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("usuario", "meta")))
}

func TestMetrics_NilNoPanica(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveProbe("producao", "authorized", time.Now())
		m.IncResolution("usuario", "base64")
		m.IncSignature("ok")
		m.IncDecode("WrongPassphrase")
	})
}
