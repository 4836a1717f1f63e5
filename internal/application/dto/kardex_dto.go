package dto

// KardexQuery query de GET /api/kardex. Fechas YYYY-MM-DD; date_to incluido.
type KardexQuery struct {
	ProductIDs  string `query:"product_ids"` // separados por coma; vacío = todos
	DateFrom    string `query:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo      string `query:"date_to" validate:"required,datetime=2006-01-02"`
	WarehouseID string `query:"warehouse_id"`
	Format      string `query:"format" validate:"omitempty,oneof=json pdf xml"`
}
