package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/repository"
)

// quantBook conjunto de trabajo de quants bloqueados dentro de una transacción.
// Los cambios se acumulan en memoria y se escriben al final con save.
type quantBook struct {
	companyID string
	quants    map[entity.QuantKey]*entity.StockQuant
	dirty     map[entity.QuantKey]bool
}

// lockQuants materializa las claves exactas y bloquea todos los quants de sus pares
// producto-ubicación, más los pares extra, en orden de clave.
func lockQuants(ctx context.Context, repo repository.StockQuantRepository, companyID string, keys []entity.QuantKey, extraPairs ...entity.QuantKey) (*quantBook, error) {
	keys = uniqueKeys(keys)
	if len(keys) > 0 {
		if err := repo.Ensure(ctx, companyID, keys); err != nil {
			return nil, err
		}
	}
	pairs := make([]entity.QuantKey, 0, len(keys)+len(extraPairs))
	pairs = append(pairs, extraPairs...)
	for _, k := range keys {
		pairs = append(pairs, entity.QuantKey{ProductID: k.ProductID, LocationID: k.LocationID})
	}
	for i := range pairs {
		pairs[i].LotID = ""
	}
	pairs = uniqueKeys(pairs)

	book := &quantBook{
		companyID: companyID,
		quants:    make(map[entity.QuantKey]*entity.StockQuant),
		dirty:     make(map[entity.QuantKey]bool),
	}
	if len(pairs) == 0 {
		return book, nil
	}
	locked, err := repo.LockByProductLocation(ctx, companyID, pairs)
	if err != nil {
		return nil, err
	}
	for _, q := range locked {
		book.quants[q.Key()] = q
	}
	return book, nil
}

// get devuelve el quant de la clave; si no existía se crea en cero.
func (b *quantBook) get(k entity.QuantKey) *entity.StockQuant {
	q, ok := b.quants[k]
	if !ok {
		q = &entity.StockQuant{
			CompanyID:        b.companyID,
			ProductID:        k.ProductID,
			LocationID:       k.LocationID,
			LotID:            k.LotID,
			PhysicalQuantity: decimal.Zero,
			ReservedQuantity: decimal.Zero,
		}
		b.quants[k] = q
	}
	return q
}

// lots quants con lote de un producto en una ubicación, ordenados por lote.
func (b *quantBook) lots(productID, locationID string) []*entity.StockQuant {
	var out []*entity.StockQuant
	for k, q := range b.quants {
		if k.ProductID == productID && k.LocationID == locationID && k.LotID != "" {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LotID < out[j].LotID })
	return out
}

// physical suma el físico de todos los lotes de un producto en una ubicación.
func (b *quantBook) physical(productID, locationID string) decimal.Decimal {
	sum := decimal.Zero
	for k, q := range b.quants {
		if k.ProductID == productID && k.LocationID == locationID {
			sum = sum.Add(q.PhysicalQuantity)
		}
	}
	return sum
}

func (b *quantBook) addReserved(k entity.QuantKey, qty decimal.Decimal) {
	q := b.get(k)
	q.ReservedQuantity = q.ReservedQuantity.Add(qty)
	b.dirty[k] = true
}

func (b *quantBook) addPhysical(k entity.QuantKey, qty decimal.Decimal) {
	q := b.get(k)
	q.PhysicalQuantity = q.PhysicalQuantity.Add(qty)
	b.dirty[k] = true
}

// negatives devuelve los quants modificados que quedaron con físico o disponible negativo.
func (b *quantBook) negatives() []*entity.StockQuant {
	var out []*entity.StockQuant
	for _, k := range b.dirtyKeys() {
		q := b.quants[k]
		if q.PhysicalQuantity.IsNegative() || q.Balance().IsNegative() {
			out = append(out, q)
		}
	}
	return out
}

func (b *quantBook) dirtyKeys() []entity.QuantKey {
	keys := make([]entity.QuantKey, 0, len(b.dirty))
	for k := range b.dirty {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

func (b *quantBook) save(ctx context.Context, repo repository.StockQuantRepository, now time.Time) error {
	keys := b.dirtyKeys()
	if len(keys) == 0 {
		return nil
	}
	out := make([]*entity.StockQuant, 0, len(keys))
	for _, k := range keys {
		q := b.quants[k]
		q.UpdatedAt = now
		out = append(out, q)
	}
	return repo.Save(ctx, out)
}

func uniqueKeys(keys []entity.QuantKey) []entity.QuantKey {
	seen := make(map[entity.QuantKey]bool, len(keys))
	out := make([]entity.QuantKey, 0, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
