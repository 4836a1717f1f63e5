// Package kardex reconstruye el libro valorizado (Kardex) a partir del historial de movimientos done.
// Es de solo lectura: nunca modifica stock ni valoraciones.
package kardex

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/Inventario-movimientos/internal/domain"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/inventory"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/repository"
)

const defaultConcurrency = 4

// ErrStaleSnapshot el historial del producto cambió mientras se reconstruía el saldo; no se guardó.
var ErrStaleSnapshot = errors.New("kardex: historial modificado durante el snapshot")

// Query filtros del Kardex. DateFrom incluido, DateTo excluido.
// ProductIDs vacío = todos los productos con movimientos en el alcance.
type Query struct {
	ProductIDs  []string
	DateFrom    time.Time
	DateTo      time.Time
	WarehouseID string
}

// ReportProduct datos del producto para encabezados de exportación.
type ReportProduct struct {
	ID   string `json:"id"`
	SKU  string `json:"sku"`
	Name string `json:"name"`
}

// Report resultado del Kardex: filas por producto, en orden de producto y luego cronológico.
type Report struct {
	CompanyID   string               `json:"company_id"`
	WarehouseID string               `json:"warehouse_id,omitempty"`
	DateFrom    time.Time            `json:"date_from"`
	DateTo      time.Time            `json:"date_to"`
	GeneratedAt time.Time            `json:"generated_at"`
	Products    []ReportProduct      `json:"products"`
	Rows        []entity.KardexEntry `json:"rows"`
}

// ReportCache guarda reportes por empresa. Las implementaciones invalidan todo lo de una
// empresa cuando se valida un picking (ver cache.KardexCache).
type ReportCache interface {
	// Get devuelve además la versión de la empresa que leyó, haya o no reporte.
	Get(ctx context.Context, companyID, key string) (*Report, int64, bool, error)
	// Set descarta la escritura si la versión de la empresa ya no es version.
	Set(ctx context.Context, companyID, key string, version int64, r *Report) error
}

// Exporter serializa un reporte a un formato descargable.
type Exporter interface {
	ContentType() string
	Export(r *Report) ([]byte, error)
}

// UseCase casos de uso del Kardex.
type UseCase struct {
	repo        repository.KardexRepository
	products    repository.ProductCatalog
	cache       ReportCache
	group       singleflight.Group
	concurrency int
	log         zerolog.Logger
	now         func() time.Time
}

// Option configura el caso de uso.
type Option func(*UseCase)

// WithCache activa la caché de reportes.
func WithCache(c ReportCache) Option { return func(uc *UseCase) { uc.cache = c } }

// WithConcurrency limita cuántos productos se reconstruyen en paralelo.
func WithConcurrency(n int) Option {
	return func(uc *UseCase) {
		if n > 0 {
			uc.concurrency = n
		}
	}
}

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) Option { return func(uc *UseCase) { uc.now = now } }

// NewUseCase construye el caso de uso. repo se usa fuera de transacción: solo lecturas.
func NewUseCase(repo repository.KardexRepository, products repository.ProductCatalog, log zerolog.Logger, opts ...Option) *UseCase {
	uc := &UseCase{
		repo:        repo,
		products:    products,
		concurrency: defaultConcurrency,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// GetKardex reconstruye el Kardex del alcance. Solicitudes idénticas concurrentes comparten
// una sola reconstrucción.
func (uc *UseCase) GetKardex(ctx context.Context, scope domain.Scope, q Query) (*Report, error) {
	if !scope.Valid() {
		return nil, domain.NewValidationError(domain.FieldError{Field: "scope", Message: "empresa y usuario requeridos"})
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	q.ProductIDs = uniqueSorted(q.ProductIDs)
	key := cacheKey(q)

	var version int64
	cacheable := false
	if uc.cache != nil {
		cached, ver, ok, err := uc.cache.Get(ctx, scope.CompanyID, key)
		switch {
		case err != nil:
			uc.log.Warn().Err(err).Str("company_id", scope.CompanyID).Msg("caché de kardex no disponible")
		case ok:
			return cached, nil
		default:
			version, cacheable = ver, true
		}
	}

	// La versión entra en la clave: quien leyó una versión nueva no se une a una
	// reconstrucción que empezó antes de la invalidación.
	flight := fmt.Sprintf("%s|v%d|%s", scope.CompanyID, version, key)
	ch := uc.group.DoChan(flight, func() (interface{}, error) {
		// La reconstrucción compartida no depende del ctx de un solo llamador.
		return uc.build(context.WithoutCancel(ctx), scope.CompanyID, q)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	report := res.Val.(*Report)

	if cacheable {
		if err := uc.cache.Set(ctx, scope.CompanyID, key, version, report); err != nil {
			uc.log.Warn().Err(err).Str("company_id", scope.CompanyID).Msg("no se pudo guardar el kardex en caché")
		}
	}
	return report, nil
}

func (uc *UseCase) build(ctx context.Context, companyID string, q Query) (*Report, error) {
	ids := q.ProductIDs
	if len(ids) == 0 {
		var err error
		ids, err = uc.repo.ProductsWithMoves(ctx, companyID, q.WarehouseID)
		if err != nil {
			return nil, fmt.Errorf("productos con movimientos: %w", err)
		}
	}
	products, err := uc.products.GetByIDs(ctx, companyID, ids)
	if err != nil {
		return nil, err
	}
	if len(q.ProductIDs) > 0 {
		for _, id := range ids {
			if products[id] == nil {
				return nil, domain.NewNotFoundError("product", id)
			}
		}
	}

	perProduct := make([][]entity.KardexEntry, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			rows, err := uc.replayProduct(gctx, companyID, id, q)
			if err != nil {
				return fmt.Errorf("kardex de %s: %w", id, err)
			}
			perProduct[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		CompanyID:   companyID,
		WarehouseID: q.WarehouseID,
		DateFrom:    q.DateFrom,
		DateTo:      q.DateTo,
		GeneratedAt: uc.now(),
		Products:    make([]ReportProduct, 0, len(ids)),
		Rows:        make([]entity.KardexEntry, 0),
	}
	for i, id := range ids {
		rp := ReportProduct{ID: id}
		if p := products[id]; p != nil {
			rp.SKU, rp.Name = p.SKU, p.Name
		}
		report.Products = append(report.Products, rp)
		report.Rows = append(report.Rows, perProduct[i]...)
	}
	uc.log.Info().
		Str("company_id", companyID).
		Str("warehouse_id", q.WarehouseID).
		Int("products", len(ids)).
		Int("rows", len(report.Rows)).
		Msg("kardex reconstruido")
	return report, nil
}

func (uc *UseCase) replayProduct(ctx context.Context, companyID, productID string, q Query) ([]entity.KardexEntry, error) {
	opening, err := uc.openingBalance(ctx, companyID, productID, q.WarehouseID, q.DateFrom)
	if err != nil {
		return nil, err
	}
	from, to := q.DateFrom, q.DateTo
	moves, err := uc.repo.ListDoneMoves(ctx, companyID, repository.KardexMoveFilter{
		ProductIDs:  []string{productID},
		From:        &from,
		To:          &to,
		WarehouseID: q.WarehouseID,
	})
	if err != nil {
		return nil, err
	}
	inventory.SortKardexMoves(moves)
	return inventory.ReplayProduct(productID, opening, q.DateFrom, moves), nil
}

// openingBalance saldo al inicio de at: el snapshot más reciente con AsOf <= at más la
// reproducción de los movimientos en [AsOf, at). Sin snapshot se reproduce toda la historia.
func (uc *UseCase) openingBalance(ctx context.Context, companyID, productID, warehouseID string, at time.Time) (inventory.CostBalance, error) {
	var start inventory.CostBalance
	var from *time.Time
	snap, err := uc.repo.LatestSnapshot(ctx, companyID, productID, warehouseID, at)
	if err != nil {
		return start, err
	}
	if snap != nil {
		start = inventory.CostBalance{Quantity: snap.Quantity, UnitCost: snap.UnitCost, Value: snap.Value}
		asOf := snap.AsOf
		from = &asOf
		if !snap.AsOf.Before(at) {
			return start, nil
		}
	}
	moves, err := uc.repo.ListDoneMoves(ctx, companyID, repository.KardexMoveFilter{
		ProductIDs:  []string{productID},
		From:        from,
		To:          &at,
		WarehouseID: warehouseID,
	})
	if err != nil {
		return start, err
	}
	inventory.SortKardexMoves(moves)
	return inventory.OpeningBalance(start, moves), nil
}

// BuildSnapshot precalcula y guarda el saldo de apertura de un producto al inicio de asOf.
// Si un validate toca el producto durante la reconstrucción devuelve ErrStaleSnapshot.
func (uc *UseCase) BuildSnapshot(ctx context.Context, companyID, productID, warehouseID string, asOf time.Time) (*entity.KardexSnapshot, error) {
	version, err := uc.repo.HistoryVersion(ctx, companyID, productID)
	if err != nil {
		return nil, fmt.Errorf("versión del historial: %w", err)
	}
	bal, err := uc.openingBalance(ctx, companyID, productID, warehouseID, asOf)
	if err != nil {
		return nil, err
	}
	snap := &entity.KardexSnapshot{
		CompanyID:   companyID,
		ProductID:   productID,
		WarehouseID: warehouseID,
		AsOf:        asOf,
		Quantity:    bal.Quantity,
		UnitCost:    bal.UnitCost,
		Value:       bal.Value,
		CreatedAt:   uc.now(),
	}
	saved, err := uc.repo.SaveSnapshot(ctx, snap, version)
	if err != nil {
		return nil, fmt.Errorf("guardar snapshot: %w", err)
	}
	if !saved {
		uc.log.Info().
			Str("company_id", companyID).
			Str("product_id", productID).
			Int64("version", version).
			Msg("snapshot descartado: el historial cambió")
		return nil, ErrStaleSnapshot
	}
	uc.log.Debug().
		Str("company_id", companyID).
		Str("product_id", productID).
		Time("as_of", asOf).
		Msg("snapshot de kardex guardado")
	return snap, nil
}

// SnapshotAll precalcula el saldo de todos los productos con movimientos de una empresa
// (o de todas si companyID es vacío) para todo el alcance de la empresa. Devuelve cuántos guardó.
func (uc *UseCase) SnapshotAll(ctx context.Context, companyID string, asOf time.Time) (int, error) {
	companies := []string{companyID}
	if companyID == "" {
		var err error
		companies, err = uc.repo.CompaniesWithMoves(ctx)
		if err != nil {
			return 0, err
		}
	}
	var total atomic.Int64
	for _, c := range companies {
		ids, err := uc.repo.ProductsWithMoves(ctx, c, "")
		if err != nil {
			return int(total.Load()), err
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(uc.concurrency)
		for _, id := range ids {
			id := id
			g.Go(func() error {
				_, err := uc.BuildSnapshot(gctx, c, id, "", asOf)
				if errors.Is(err, ErrStaleSnapshot) {
					// El validate ya invalidó ese saldo; la próxima corrida lo recalcula.
					return nil
				}
				if err == nil {
					total.Add(1)
				}
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return int(total.Load()), err
		}
	}
	return int(total.Load()), nil
}

func validateQuery(q Query) error {
	errs := domain.NewValidationError()
	if q.DateFrom.IsZero() {
		errs.Add("date_from", "requerido")
	}
	if q.DateTo.IsZero() {
		errs.Add("date_to", "requerido")
	}
	if !q.DateFrom.IsZero() && !q.DateTo.IsZero() && !q.DateTo.After(q.DateFrom) {
		errs.Add("date_to", "debe ser posterior a date_from")
	}
	return errs.OrNil()
}

func cacheKey(q Query) string {
	return strings.Join([]string{
		"kardex",
		q.WarehouseID,
		q.DateFrom.UTC().Format(time.RFC3339),
		q.DateTo.UTC().Format(time.RFC3339),
		strings.Join(q.ProductIDs, ","),
	}, ":")
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
