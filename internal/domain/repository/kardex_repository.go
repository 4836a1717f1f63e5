package repository

import (
	"context"
	"time"

	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
)

// KardexMoveFilter acota los movimientos done que lee el Kardex.
// From incluido, To excluido; nil = sin límite. WarehouseID vacío = todas las bodegas.
type KardexMoveFilter struct {
	ProductIDs  []string
	From        *time.Time
	To          *time.Time
	WarehouseID string
}

// KardexRepository lectura del historial valorizado y de los saldos precalculados.
type KardexRepository interface {
	// ListDoneMoves devuelve los movimientos done con SrcInScope/DestInScope resueltos contra la bodega.
	ListDoneMoves(ctx context.Context, companyID string, f KardexMoveFilter) ([]entity.KardexMove, error)
	// CompaniesWithMoves lista las empresas con algún movimiento done, ordenadas.
	CompaniesWithMoves(ctx context.Context) ([]string, error)
	// ProductsWithMoves lista los productos con algún movimiento done en el alcance, ordenados.
	ProductsWithMoves(ctx context.Context, companyID, warehouseID string) ([]string, error)
	// LatestSnapshot devuelve el saldo precalculado más reciente con AsOf <= at, o nil.
	LatestSnapshot(ctx context.Context, companyID, productID, warehouseID string, at time.Time) (*entity.KardexSnapshot, error)
	// HistoryVersion versión del historial de un producto; cambia con cada validate que lo toca.
	// Crea el registro en cero si no existe.
	HistoryVersion(ctx context.Context, companyID, productID string) (int64, error)
	// BumpHistoryVersions incrementa la versión del historial de los productos. Va dentro del
	// validate, antes de DeleteSnapshotsAfter.
	BumpHistoryVersions(ctx context.Context, companyID string, productIDs []string) error
	// SaveSnapshot inserta o reemplaza el saldo solo si la versión del historial sigue siendo
	// version. Devuelve false si el historial cambió y el saldo no se guardó.
	SaveSnapshot(ctx context.Context, s *entity.KardexSnapshot, version int64) (bool, error)
	// DeleteSnapshotsAfter elimina los saldos con AsOf > from de los productos dados.
	DeleteSnapshotsAfter(ctx context.Context, companyID string, productIDs []string, from time.Time) error
}
