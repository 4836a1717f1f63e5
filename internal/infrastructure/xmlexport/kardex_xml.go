// Package xmlexport serializa el Kardex a XML con etree.
package xmlexport

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-movimientos/internal/application/kardex"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
)

// Namespace del documento de Kardex.
const NsKardex = "urn:inventario-movimientos:kardex:1"

var _ kardex.Exporter = (*KardexExporter)(nil)

// KardexExporter implementa kardex.Exporter.
type KardexExporter struct{}

// NewKardexExporter construye el exportador.
func NewKardexExporter() *KardexExporter { return &KardexExporter{} }

// ContentType tipo MIME del documento.
func (e *KardexExporter) ContentType() string { return "application/xml" }

// Export arma el documento:
//
//	<Kardex company="" warehouse="" from="" to="" generatedAt="">
//	  <Product id="" sku="" name="">
//	    <Entry kind="OPENING|MOVE" ...>
func (e *KardexExporter) Export(r *kardex.Report) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("xmlexport: reporte vacío")
	}
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("Kardex")
	root.CreateAttr("xmlns", NsKardex)
	root.CreateAttr("company", r.CompanyID)
	if r.WarehouseID != "" {
		root.CreateAttr("warehouse", r.WarehouseID)
	}
	root.CreateAttr("from", r.DateFrom.UTC().Format(time.RFC3339))
	root.CreateAttr("to", r.DateTo.UTC().Format(time.RFC3339))
	root.CreateAttr("generatedAt", r.GeneratedAt.UTC().Format(time.RFC3339))

	byProduct := make(map[string]*etree.Element, len(r.Products))
	for _, p := range r.Products {
		el := root.CreateElement("Product")
		el.CreateAttr("id", p.ID)
		if p.SKU != "" {
			el.CreateAttr("sku", p.SKU)
		}
		if p.Name != "" {
			el.CreateAttr("name", p.Name)
		}
		byProduct[p.ID] = el
	}
	for _, row := range r.Rows {
		parent, ok := byProduct[row.ProductID]
		if !ok {
			return nil, fmt.Errorf("xmlexport: fila de producto %q sin encabezado", row.ProductID)
		}
		writeEntry(parent.CreateElement("Entry"), row)
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

func writeEntry(el *etree.Element, row entity.KardexEntry) {
	el.CreateAttr("kind", row.Kind)
	el.CreateAttr("timestamp", row.Timestamp.UTC().Format(time.RFC3339))
	if row.Kind == entity.KardexRowMove {
		el.CreateAttr("moveId", row.MoveID)
		el.CreateAttr("reference", row.Reference)
		el.CreateAttr("type", row.TypeCode)
		amount(el, "QtyIn", row.QtyIn)
		amount(el, "QtyOut", row.QtyOut)
		amount(el, "UnitCost", row.UnitCost)
		amount(el, "Value", row.Value)
	}
	bal := el.CreateElement("Balance")
	amount(bal, "Quantity", row.RunningQty)
	amount(bal, "UnitCost", row.RunningCost)
	amount(bal, "Value", row.RunningValue)
}

func amount(parent *etree.Element, tag string, v decimal.Decimal) {
	parent.CreateElement(tag).SetText(v.String())
}
