package inventory

import (
	"fmt"

	"github.com/jhoicas/Inventario-movimientos/internal/domain"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
)

// DefaultCuadrillaCategory categoría reservada de ubicaciones de cuadrilla (personal interno).
const DefaultCuadrillaCategory = "CUADRILLA"

// OperationRule describe lo que exige un tipo de operación con nombre.
// Listas vacías = cualquier categoría; RequiredOwnership vacío = cualquier propiedad.
type OperationRule struct {
	Name                  string   `mapstructure:"name" json:"name"`
	RequiredOwnership     string   `mapstructure:"required_ownership" json:"required_ownership"`
	AllowedSrcCategories  []string `mapstructure:"allowed_src_categories" json:"allowed_src_categories"`
	AllowedDestCategories []string `mapstructure:"allowed_dest_categories" json:"allowed_dest_categories"`
	PartnerCategory       string   `mapstructure:"partner_category" json:"partner_category"`
}

// DefaultOperationRules tabla de operaciones por defecto; puede reemplazarse desde configuración.
func DefaultOperationRules() []OperationRule {
	return []OperationRule{
		{Name: "Compra Nacional", RequiredOwnership: entity.OwnershipOwned, PartnerCategory: "PROVEEDOR"},
		{Name: "Compra Importación", RequiredOwnership: entity.OwnershipOwned, PartnerCategory: "PROVEEDOR"},
		{Name: "Consignación Proveedor", RequiredOwnership: entity.OwnershipConsigned, PartnerCategory: "PROVEEDOR"},
		{Name: "Devolución Consignación", RequiredOwnership: entity.OwnershipConsigned},
		{Name: "Venta", RequiredOwnership: entity.OwnershipOwned, PartnerCategory: "CLIENTE"},
		{Name: "Traslado Interno"},
		{Name: "Traslado Cuadrilla", RequiredOwnership: entity.OwnershipOwned, AllowedDestCategories: []string{DefaultCuadrillaCategory}},
		{Name: "Devolución Cuadrilla", AllowedSrcCategories: []string{DefaultCuadrillaCategory}},
	}
}

// RuleSet agrupa las reglas de validación de pickings: completitud de encabezado,
// compatibilidad de propiedad, categorías de ubicación y cuadrilla.
type RuleSet struct {
	operations        map[string]OperationRule
	cuadrillaCategory string
}

// NewRuleSet construye el conjunto de reglas. Si rules es nil usa DefaultOperationRules.
func NewRuleSet(rules []OperationRule, cuadrillaCategory string) *RuleSet {
	if rules == nil {
		rules = DefaultOperationRules()
	}
	if cuadrillaCategory == "" {
		cuadrillaCategory = DefaultCuadrillaCategory
	}
	ops := make(map[string]OperationRule, len(rules))
	for _, r := range rules {
		ops[r.Name] = r
	}
	return &RuleSet{operations: ops, cuadrillaCategory: cuadrillaCategory}
}

// Operation busca la regla de una operación por nombre.
func (rs *RuleSet) Operation(name string) (OperationRule, bool) {
	r, ok := rs.operations[name]
	return r, ok
}

// CheckHeader verifica los campos obligatorios del encabezado según el tipo de documento.
// Reporta todos los faltantes juntos.
func (rs *RuleSet) CheckHeader(p *entity.Picking) error {
	errs := domain.NewValidationError()
	require := func(ok bool, field string) {
		if !ok {
			errs.Add(field, "requerido para %s", p.TypeCode)
		}
	}
	switch p.TypeCode {
	case entity.PickingTypeIN:
		require(p.PartnerID != "", "partner_id")
		require(p.LocationDestID != "", "location_dest_id")
		require(p.ScheduledDate != nil, "scheduled_date")
		require(p.DateTransfer != nil, "date_transfer")
		require(p.PurchaseOrder != "", "purchase_order")
	case entity.PickingTypeOUT, entity.PickingTypeINT:
		require(p.LocationSrcID != "", "location_src_id")
		require(p.LocationDestID != "", "location_dest_id")
		require(p.DateTransfer != nil, "date_transfer")
	case entity.PickingTypeRET:
		require(p.LocationSrcID != "", "location_src_id")
		require(p.LocationDestID != "", "location_dest_id")
		require(p.DateTransfer != nil, "date_transfer")
		require(p.PartnerID != "", "partner_id")
	case entity.PickingTypeADJ:
		require(p.AffectedLocationID() != "", "location_id")
		require(p.AdjustmentReason != "", "adjustment_reason")
		require(p.AccountingDate != nil, "accounting_date")
	default:
		errs.Add("type_code", "tipo de documento %q no soportado", p.TypeCode)
	}
	if p.CustomOperationType != "" {
		if _, ok := rs.operations[p.CustomOperationType]; !ok {
			errs.Add("custom_operation_type", "operación %q desconocida", p.CustomOperationType)
		}
	}
	return errs.OrNil()
}

// CheckOwnership verifica que cada producto tenga la propiedad que exige la operación.
// El error nombra a todos los productos incompatibles.
func (rs *RuleSet) CheckOwnership(p *entity.Picking, moves []*entity.StockMove, products map[string]*entity.Product) error {
	rule, ok := rs.operations[p.CustomOperationType]
	if !ok || rule.RequiredOwnership == "" {
		return nil
	}
	var details []string
	seen := make(map[string]bool)
	for _, m := range moves {
		prod := products[m.ProductID]
		if prod == nil || seen[prod.ID] {
			continue
		}
		seen[prod.ID] = true
		if prod.Ownership != rule.RequiredOwnership {
			details = append(details, fmt.Sprintf("producto %s es %s, la operación %q exige %s",
				prod.Label(), prod.Ownership, rule.Name, rule.RequiredOwnership))
		}
	}
	if len(details) > 0 {
		return domain.NewBusinessRuleError(domain.CodeOwnershipMismatch, "ownership mismatch", details...)
	}
	return nil
}

// CheckLocationCategories verifica las categorías de ubicación permitidas por la operación.
func (rs *RuleSet) CheckLocationCategories(p *entity.Picking, moves []*entity.StockMove, locations map[string]*entity.Location) error {
	rule, ok := rs.operations[p.CustomOperationType]
	if !ok {
		return nil
	}
	var details []string
	check := func(locID string, allowed []string, side string) {
		if len(allowed) == 0 || locID == "" {
			return
		}
		loc := locations[locID]
		if loc == nil {
			return
		}
		if !contains(allowed, loc.Category) {
			d := fmt.Sprintf("ubicación %s (%s) con categoría %q no permitida como %s para %q",
				loc.Path, loc.ID, loc.Category, side, rule.Name)
			if !contains(details, d) {
				details = append(details, d)
			}
		}
	}
	check(p.LocationSrcID, rule.AllowedSrcCategories, "origen")
	check(p.LocationDestID, rule.AllowedDestCategories, "destino")
	for _, m := range moves {
		check(m.LocationSrcID, rule.AllowedSrcCategories, "origen")
		check(m.LocationDestID, rule.AllowedDestCategories, "destino")
	}
	if len(details) > 0 {
		return domain.NewBusinessRuleError(domain.CodeLocationCategory, "categoría de ubicación no permitida", details...)
	}
	return nil
}

// CheckPartner verifica la categoría del tercero exigida por la operación.
func (rs *RuleSet) CheckPartner(p *entity.Picking, partner *entity.Partner) error {
	rule, ok := rs.operations[p.CustomOperationType]
	if !ok || rule.PartnerCategory == "" || partner == nil {
		return nil
	}
	if !partner.HasCategory(rule.PartnerCategory) {
		return domain.NewBusinessRuleError(domain.CodePartnerCategory,
			"categoría de tercero no permitida",
			fmt.Sprintf("tercero %s no pertenece a %s, exigido por %q", partner.Name, rule.PartnerCategory, rule.Name))
	}
	return nil
}

// CheckCuadrilla exige employee_id cuando alguna ubicación involucrada es de cuadrilla.
func (rs *RuleSet) CheckCuadrilla(p *entity.Picking, moves []*entity.StockMove, locations map[string]*entity.Location) error {
	if p.EmployeeID != "" {
		return nil
	}
	ids := []string{p.LocationSrcID, p.LocationDestID}
	for _, m := range moves {
		ids = append(ids, m.LocationSrcID, m.LocationDestID)
	}
	for _, id := range ids {
		if loc := locations[id]; loc != nil && loc.Category == rs.cuadrillaCategory {
			return domain.NewValidationError(domain.FieldError{
				Field:   "employee_id",
				Message: fmt.Sprintf("requerido: la ubicación %s es de cuadrilla", loc.Path),
			})
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
