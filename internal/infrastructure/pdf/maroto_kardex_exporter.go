// Package pdf exporta el Kardex valorizado a PDF con Maroto v2.
//
// Layout de la página A4 horizontal:
//
//	┌──────────────────────────────────────────────────────────────────────┐
//	│  HEADER: KARDEX VALORIZADO + empresa/bodega │ Periodo + generado     │
//	│  ──────────────────────────────────────────────────────────────────  │
//	│  Por producto:  SKU - Nombre                                         │
//	│    TABLA: Fecha | Ref. | Entrada | Salida | C.Unit | Valor | Saldos  │
//	│  ──────────────────────────────────────────────────────────────────  │
//	│  FOOTER: leyenda de costo promedio ponderado                         │
//	└──────────────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-movimientos/internal/application/kardex"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// ── Exporter ──────────────────────────────────────────────────────────────────

var _ kardex.Exporter = (*KardexExporter)(nil)

// KardexExporter implementa kardex.Exporter usando Maroto v2.
type KardexExporter struct{}

// NewKardexExporter construye el exportador.
func NewKardexExporter() *KardexExporter { return &KardexExporter{} }

// ContentType tipo MIME del documento.
func (e *KardexExporter) ContentType() string { return "application/pdf" }

// Export genera el PDF y devuelve sus bytes.
func (e *KardexExporter) Export(r *kardex.Report) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithOrientation(orientation.Horizontal).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 8}).
		WithTitle("Kardex valorizado", true).
		Build()

	m := maroto.New(cfg)
	m.AddRows(headerRow(r))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))

	byProduct := groupRows(r.Rows)
	for _, p := range r.Products {
		m.AddRows(productRow(p))
		m.AddRows(tableHeaderRow())
		m.AddRows(tableDetailRows(byProduct[p.ID])...)
		m.AddRows(line.NewRow(2, props.Line{Color: colorGray, Thickness: 0.2}))
	}
	if len(r.Products) == 0 {
		m.AddRows(row.New(10).Add(col.New(12).Add(
			text.New("Sin movimientos en el periodo.", props.Text{Size: 9, Align: align.Center, Top: 3, Color: colorGray}),
		)))
	}

	m.AddRows(row.New(8).Add(col.New(12).Add(
		text.New("Valorización por costo promedio ponderado. Saldos de apertura incluyen todo el historial anterior al periodo.",
			props.Text{Size: 6.5, Color: colorGray, Top: 3}),
	)))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar kardex: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(r *kardex.Report) core.Row {
	scope := "Todas las bodegas"
	if r.WarehouseID != "" {
		scope = "Bodega " + r.WarehouseID
	}
	period := fmt.Sprintf("Periodo: %s a %s", r.DateFrom.Format("02/01/2006"), r.DateTo.AddDate(0, 0, -1).Format("02/01/2006"))
	return row.New(16).Add(
		col.New(8).Add(
			text.New("KARDEX VALORIZADO", props.Text{Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1}),
			text.New("Empresa: "+r.CompanyID+"   |   "+scope, props.Text{Size: 9, Top: 9, Color: colorGray}),
		),
		col.New(4).Add(
			text.New(period, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Top: 2}),
			text.New("Generado: "+r.GeneratedAt.Format("02/01/2006 15:04")+" UTC", props.Text{Size: 8, Align: align.Right, Top: 9, Color: colorGray}),
		),
	)
}

func productRow(p kardex.ReportProduct) core.Row {
	label := p.ID
	if p.SKU != "" {
		label = p.SKU
	}
	if p.Name != "" {
		label += " - " + p.Name
	}
	return row.New(8).Add(col.New(12).Add(
		text.New(label, props.Text{Style: fontstyle.Bold, Size: 10, Color: colorPrimary, Top: 2}),
	))
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 7.5, Align: a, Top: 1.5, Left: 1, Right: 1,
		}))
	}
	return row.New(6).Add(
		h("Fecha", 1, align.Left),
		h("Referencia", 2, align.Left),
		h("Entrada", 1, align.Right),
		h("Salida", 1, align.Right),
		h("Costo unit.", 1, align.Right),
		h("Valor", 2, align.Right),
		h("Saldo cant.", 1, align.Right),
		h("Saldo valor", 2, align.Right),
		h("Costo prom.", 1, align.Right),
	)
}

func tableDetailRows(entries []entity.KardexEntry) []core.Row {
	result := make([]core.Row, 0, len(entries))
	cell := func(s string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(s, props.Text{Size: 7.5, Align: a, Top: 1, Left: 1, Right: 1}))
	}
	for _, e := range entries {
		ref := e.Reference
		if e.Kind == entity.KardexRowOpening {
			ref = "SALDO INICIAL"
		}
		result = append(result, row.New(5).Add(
			cell(e.Timestamp.Format("02/01/2006"), 1, align.Left),
			cell(ref, 2, align.Left),
			cell(formatQty(e.QtyIn), 1, align.Right),
			cell(formatQty(e.QtyOut), 1, align.Right),
			cell(formatMoney(e.UnitCost, 4), 1, align.Right),
			cell(formatMoney(e.Value, 2), 2, align.Right),
			cell(formatQty(e.RunningQty), 1, align.Right),
			cell(formatMoney(e.RunningValue, 2), 2, align.Right),
			cell(formatMoney(e.RunningCost, 4), 1, align.Right),
		))
	}
	return result
}

// ── helpers ───────────────────────────────────────────────────────────────────

func groupRows(rows []entity.KardexEntry) map[string][]entity.KardexEntry {
	out := make(map[string][]entity.KardexEntry)
	for _, r := range rows {
		out[r.ProductID] = append(out[r.ProductID], r)
	}
	return out
}

// formatQty muestra cantidades sin ceros sobrantes; cero como "-".
func formatQty(d decimal.Decimal) string {
	if d.IsZero() {
		return "-"
	}
	return formatNumber(d, 4, 0)
}

// formatMoney formato colombiano con al menos dos decimales. Ej: 1234567.5 → "1.234.567,50".
func formatMoney(d decimal.Decimal, places int32) string {
	return formatNumber(d, places, 2)
}

// formatNumber puntos de miles y coma decimal; recorta ceros finales hasta minFrac decimales.
func formatNumber(d decimal.Decimal, places int32, minFrac int) string {
	s := d.StringFixed(places)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")
	for len(frac) > minFrac && strings.HasSuffix(frac, "0") {
		frac = frac[:len(frac)-1]
	}

	n := len(intPart)
	buf := make([]byte, 0, n+n/3+len(frac)+2)
	if neg {
		buf = append(buf, '-')
	}
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	if frac != "" {
		buf = append(buf, ',')
		buf = append(buf, frac...)
	}
	return string(buf)
}
