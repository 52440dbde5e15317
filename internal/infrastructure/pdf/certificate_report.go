// Package pdf genera la versión imprimible del informe de validación de certificados A1.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: título + fecha         │  ESTADO (valid/warning/…) │
//	│  ─────────────────────────────────────────────────────────  │
//	│  RESUMEN                                                     │
//	│  TITULAR: subject / emisor / CNPJ / vigencia                 │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Verificación | Resultado | Detalle                   │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: huella SHA-256 + QR                                 │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	appesocial "github.com/jhoicas/esocial-sst-api/internal/application/esocial"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorOK      = &props.Color{Red: 20, Green: 120, Blue: 60}
	colorWarn    = &props.Color{Red: 190, Green: 120, Blue: 0}
	colorFail    = &props.Color{Red: 170, Green: 30, Blue: 30}
)

var statusLabels = map[string]string{
	appesocial.ReportValid:   "VÁLIDO",
	appesocial.ReportWarning: "VÁLIDO COM AVISOS",
	appesocial.ReportInvalid: "INVÁLIDO",
}

// ── Renderer ──────────────────────────────────────────────────────────────────

// MarotoReportRenderer implementa esocial.ReportRenderer usando Maroto v2.
type MarotoReportRenderer struct{}

// NewMarotoReportRenderer construye el renderer.
func NewMarotoReportRenderer() *MarotoReportRenderer { return &MarotoReportRenderer{} }

// RenderCertificateReport genera el PDF y devuelve sus bytes.
func (g *MarotoReportRenderer) RenderCertificateReport(_ context.Context, r *appesocial.CertificateReport) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("pdf: informe vacío")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Validação de Certificado A1 - eSocial", true).
		WithAuthor("SST-System", true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(r))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(summaryRow(r))
	m.AddRows(holderRows(r)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(checkRows(r.Checks)...)

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRows(r)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(r *appesocial.CertificateReport) core.Row {
	return row.New(16).Add(
		col.New(8).Add(
			text.New("VALIDAÇÃO DE CERTIFICADO DIGITAL A1", props.Text{
				Style: fontstyle.Bold, Size: 12, Color: colorPrimary, Top: 1,
			}),
			text.New("Gerado em "+r.GeneratedAt.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Top: 9, Color: colorGray,
			}),
		),
		col.New(4).Add(
			text.New(nonEmpty(statusLabels[r.Status], r.Status), props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right,
				Color: statusColor(r.Status), Top: 3,
			}),
		),
	)
}

func summaryRow(r *appesocial.CertificateReport) core.Row {
	return row.New(12).Add(
		col.New(12).Add(
			text.New("RESUMO", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(r.Summary, props.Text{Size: 9, Top: 6}),
		),
	)
}

func holderRows(r *appesocial.CertificateReport) []core.Row {
	field := func(label, key string) core.Row {
		return row.New(5).Add(
			col.New(3).Add(text.New(label, props.Text{Style: fontstyle.Bold, Size: 8, Top: 1})),
			col.New(9).Add(text.New(nonEmpty(metaString(r.Meta, key), "—"), props.Text{Size: 8, Top: 1, Color: colorGray})),
		)
	}
	return []core.Row{
		row.New(6).Add(col.New(12).Add(text.New("TITULAR", props.Text{
			Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
		}))),
		field("Titular:", "subject"),
		field("Emissor:", "issuer"),
		field("CNPJ:", "cnpj"),
		field("CPF:", "cpf"),
		field("Válido de:", "not_before"),
		field("Válido até:", "not_after"),
	}
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Verificação", 3, align.Left),
		h("Resultado", 2, align.Center),
		h("Detalhe", 7, align.Left),
	)
}

func checkRows(checks []appesocial.CertificateCheck) []core.Row {
	rows := make([]core.Row, 0, len(checks))
	for _, c := range checks {
		result, color := "OK", colorOK
		if !c.OK {
			result, color = "FALHA", colorFail
			if c.Name == appesocial.CheckExpiracao || c.Name == appesocial.CheckAlgoritmo {
				result, color = "AVISO", colorWarn
			}
		}
		rows = append(rows, row.New(7).Add(
			col.New(3).Add(text.New(c.Name, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(2).Add(text.New(result, props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Center, Top: 1, Color: color,
			})),
			col.New(7).Add(text.New(c.Message, props.Text{Size: 8, Top: 1, Left: 1})),
		))
	}
	return rows
}

func footerRows(r *appesocial.CertificateReport) []core.Row {
	fp := metaString(r.Meta, "fingerprint_sha256")
	if fp == "" {
		return []core.Row{row.New(8).Add(col.New(12).Add(
			text.New("Relatório gerado sem leitura do certificado.", props.Text{Size: 7, Color: colorGray, Top: 2}),
		))}
	}

	rows := []core.Row{
		row.New(5).Add(col.New(12).Add(
			text.New("Impressão digital SHA-256 do certificado:", props.Text{Style: fontstyle.Bold, Size: 7, Top: 1}),
		)),
	}
	for _, chunk := range splitEvery(fp, 32) {
		rows = append(rows, row.New(4).Add(col.New(12).Add(
			text.New(chunk, props.Text{Size: 6.5, Color: colorGray, Top: 0.5, Left: 2}),
		)))
	}
	rows = append(rows, row.New(40).Add(
		col.New(4).Add(code.NewQr(fp, props.Rect{Percent: 95, Center: true})),
		col.New(8).Add(
			text.New("Compare a impressão digital com a do certificado\ncadastrado antes de enviá-lo ao eSocial.", props.Text{
				Size: 8, Top: 4, Left: 3, Color: colorGray,
			}),
		),
	))
	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func statusColor(status string) *props.Color {
	switch status {
	case appesocial.ReportValid:
		return colorOK
	case appesocial.ReportWarning:
		return colorWarn
	}
	return colorFail
}

func metaString(meta map[string]any, key string) string {
	if s, ok := meta[key].(string); ok {
		return s
	}
	return ""
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// splitEvery divide s en trozos de max n caracteres.
func splitEvery(s string, n int) []string {
	var parts []string
	for len(s) > n {
		parts = append(parts, s[:n])
		s = s[n:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}
