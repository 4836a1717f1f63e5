package memstore

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
)

// SetQuant fija el saldo de un quant (sin pasar por un picking).
func (s *Store) SetQuant(companyID string, k entity.QuantKey, physical, reserved decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.quants[quantID{companyID, k}] = &entity.StockQuant{
		CompanyID: companyID, ProductID: k.ProductID, LocationID: k.LocationID, LotID: k.LotID,
		PhysicalQuantity: physical, ReservedQuantity: reserved,
	}
}

// Quant devuelve una copia del quant, o uno en cero si no existe.
func (s *Store) Quant(companyID string, k entity.QuantKey) entity.StockQuant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.st.quants[quantID{companyID, k}]; ok {
		return *q
	}
	return entity.StockQuant{
		CompanyID: companyID, ProductID: k.ProductID, LocationID: k.LocationID, LotID: k.LotID,
		PhysicalQuantity: decimal.Zero, ReservedQuantity: decimal.Zero,
	}
}

// SetValuation fija el costo promedio de un producto en una ubicación.
func (s *Store) SetValuation(v entity.StockValuation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := entity.QuantKey{ProductID: v.ProductID, LocationID: v.LocationID}
	s.st.valuations[quantID{v.CompanyID, k}] = &v
}

// Valuation devuelve una copia de la valoración, o una en cero si no existe.
func (s *Store) Valuation(companyID, productID, locationID string) entity.StockValuation {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := entity.QuantKey{ProductID: productID, LocationID: locationID}
	if v, ok := s.st.valuations[quantID{companyID, k}]; ok {
		return *v
	}
	return entity.StockValuation{
		CompanyID: companyID, ProductID: productID, LocationID: locationID,
		Quantity: decimal.Zero, UnitCost: decimal.Zero, Value: decimal.Zero,
	}
}

// ReservationCount cantidad de reservas vigentes de todos los pickings.
func (s *Store) ReservationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.reservations)
}

// Snapshots copia de los saldos precalculados guardados.
func (s *Store) Snapshots() []entity.KardexSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.KardexSnapshot, 0, len(s.st.snapshots))
	for _, sn := range s.st.snapshots {
		out = append(out, *sn)
	}
	return out
}
