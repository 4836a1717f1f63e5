package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-movimientos/internal/domain"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/inventory"
)

// PickingUseCase orquesta el ciclo de vida de los pickings: borrador, reserva, validación,
// cancelación y regreso a borrador. Cada operación que muta stock corre en una sola transacción.
type PickingUseCase struct {
	txRunner             TxRunner
	catalogs             Catalogs
	rules                *inventory.RuleSet
	adjustmentLocationID string
	hooks                []ValidationHook
	log                  zerolog.Logger
	now                  func() time.Time
}

// Option configura opciones del caso de uso.
type Option func(*PickingUseCase)

// WithValidationHooks registra efectos posteriores al commit de un validate.
func WithValidationHooks(hooks ...ValidationHook) Option {
	return func(uc *PickingUseCase) { uc.hooks = append(uc.hooks, hooks...) }
}

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) Option {
	return func(uc *PickingUseCase) { uc.now = now }
}

// NewPickingUseCase construye el caso de uso. adjustmentLocationID es la ubicación virtual de ajustes.
func NewPickingUseCase(
	txRunner TxRunner,
	catalogs Catalogs,
	rules *inventory.RuleSet,
	adjustmentLocationID string,
	log zerolog.Logger,
	opts ...Option,
) *PickingUseCase {
	uc := &PickingUseCase{
		txRunner:             txRunner,
		catalogs:             catalogs,
		rules:                rules,
		adjustmentLocationID: adjustmentLocationID,
		log:                  log,
		now:                  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// CreatePickingInput encabezado de un picking nuevo. Para ADJ la ubicación afectada va en
// LocationDestID (o LocationSrcID).
type CreatePickingInput struct {
	TypeCode            string
	LocationSrcID       string
	LocationDestID      string
	PartnerID           string
	EmployeeID          string
	PurchaseOrder       string
	AdjustmentReason    string
	CustomOperationType string
	ScheduledDate       *time.Time
	DateTransfer        *time.Time
	AccountingDate      *time.Time
}

// MoveInput línea nueva. En ADJ la cantidad lleva signo: positiva entra, negativa sale.
// Las ubicaciones vacías toman las del encabezado.
type MoveInput struct {
	ProductID        string
	Quantity         decimal.Decimal
	LocationSrcID    string
	LocationDestID   string
	PriceUnit        decimal.Decimal
	CostAtAdjustment *decimal.Decimal
}

// PickingDetail picking con sus movimientos y el detalle de series/lotes validado.
type PickingDetail struct {
	Picking *entity.Picking
	Moves   []*entity.StockMove
	Lines   map[string][]*entity.StockMoveLine
}

// CreateDraftPicking crea un picking en draft. La completitud del encabezado se exige en MarkReady.
func (uc *PickingUseCase) CreateDraftPicking(ctx context.Context, scope domain.Scope, in CreatePickingInput) (*entity.Picking, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	if !entity.ValidPickingType(in.TypeCode) {
		return nil, domain.NewValidationError(domain.FieldError{
			Field:   "type_code",
			Message: fmt.Sprintf("tipo %q no soportado (IN, OUT, INT, ADJ, RET)", in.TypeCode),
		})
	}
	p, err := uc.buildPicking(ctx, scope, in)
	if err != nil {
		return nil, err
	}
	if err := uc.txRunner.Run(ctx, func(repos TxRepos) error {
		return repos.Pickings.Create(ctx, p)
	}); err != nil {
		return nil, err
	}
	uc.log.Info().Str("company_id", p.CompanyID).Str("picking_id", p.ID).
		Str("reference", p.Reference).Msg("picking creado")
	return p, nil
}

// buildPicking valida y arma un encabezado en draft, sin persistirlo.
func (uc *PickingUseCase) buildPicking(ctx context.Context, scope domain.Scope, in CreatePickingInput) (*entity.Picking, error) {
	src, dest := in.LocationSrcID, in.LocationDestID
	if in.TypeCode == entity.PickingTypeADJ {
		if uc.adjustmentLocationID == "" {
			return nil, fmt.Errorf("ubicación virtual de ajustes no configurada")
		}
		if dest == "" {
			dest = src
		}
		src = ""
	}
	if src != "" && src == dest {
		return nil, domain.NewValidationError(domain.FieldError{
			Field: "location_dest_id", Message: "origen y destino no pueden ser la misma ubicación",
		})
	}
	if _, err := uc.loadLocations(ctx, scope.CompanyID, src, dest); err != nil {
		return nil, err
	}
	if in.PartnerID != "" {
		if _, err := uc.loadPartner(ctx, scope.CompanyID, in.PartnerID); err != nil {
			return nil, err
		}
	}

	now := uc.now()
	id := uuid.New().String()
	p := &entity.Picking{
		ID:                  id,
		CompanyID:           scope.CompanyID,
		Reference:           fmt.Sprintf("%s/%d/%s", in.TypeCode, now.Year(), strings.ToUpper(id[:8])),
		TypeCode:            in.TypeCode,
		State:               entity.PickingDraft,
		LocationSrcID:       src,
		LocationDestID:      dest,
		PartnerID:           in.PartnerID,
		EmployeeID:          in.EmployeeID,
		PurchaseOrder:       in.PurchaseOrder,
		AdjustmentReason:    in.AdjustmentReason,
		CustomOperationType: in.CustomOperationType,
		ScheduledDate:       in.ScheduledDate,
		DateTransfer:        in.DateTransfer,
		AccountingDate:      in.AccountingDate,
		CreatedBy:           scope.UserID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	return p, nil
}

// AddMove agrega una línea a un picking en draft.
func (uc *PickingUseCase) AddMove(ctx context.Context, scope domain.Scope, pickingID string, in MoveInput) (*entity.StockMove, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	errs := domain.NewValidationError()
	if in.ProductID == "" {
		errs.Add("product_id", "requerido")
	}
	if in.Quantity.IsZero() {
		errs.Add("quantity", "la cantidad no puede ser cero")
	}
	if in.PriceUnit.IsNegative() {
		errs.Add("price_unit", "no puede ser negativo")
	}
	if in.CostAtAdjustment != nil && in.CostAtAdjustment.IsNegative() {
		errs.Add("cost_at_adjustment", "no puede ser negativo")
	}
	if errs.HasItems() {
		return nil, errs
	}
	if _, err := uc.loadProducts(ctx, scope.CompanyID, []string{in.ProductID}); err != nil {
		return nil, err
	}

	var move *entity.StockMove
	err := uc.txRunner.Run(ctx, func(repos TxRepos) error {
		p, err := repos.Pickings.GetForUpdate(ctx, scope.CompanyID, pickingID)
		if err != nil {
			return err
		}
		if err := inventory.CheckEditable(p); err != nil {
			return err
		}
		existing, err := repos.Moves.ListByPicking(ctx, p.ID)
		if err != nil {
			return err
		}
		move, err = uc.buildMove(ctx, p, in, nextSequence(existing))
		if err != nil {
			return err
		}
		return repos.Moves.Create(ctx, move)
	})
	if err != nil {
		return nil, err
	}
	return move, nil
}

// buildMove resuelve ubicaciones y arma una línea en draft, sin persistirla.
func (uc *PickingUseCase) buildMove(ctx context.Context, p *entity.Picking, in MoveInput, seq int) (*entity.StockMove, error) {
	src, dest, qty, err := uc.resolveMoveLocations(p, in)
	if err != nil {
		return nil, err
	}
	if _, err := uc.loadLocations(ctx, p.CompanyID, src, dest); err != nil {
		return nil, err
	}
	now := uc.now()
	return &entity.StockMove{
		ID:               uuid.New().String(),
		CompanyID:        p.CompanyID,
		PickingID:        p.ID,
		ProductID:        in.ProductID,
		Quantity:         qty,
		LocationSrcID:    src,
		LocationDestID:   dest,
		PriceUnit:        in.PriceUnit,
		CostAtAdjustment: in.CostAtAdjustment,
		Value:            decimal.Zero,
		State:            entity.PickingDraft,
		Sequence:         seq,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// resolveMoveLocations fija origen, destino y cantidad positiva de una línea nueva.
func (uc *PickingUseCase) resolveMoveLocations(p *entity.Picking, in MoveInput) (src, dest string, qty decimal.Decimal, err error) {
	if p.TypeCode == entity.PickingTypeADJ {
		affected := p.AffectedLocationID()
		if in.Quantity.IsPositive() {
			return uc.adjustmentLocationID, affected, in.Quantity, nil
		}
		return affected, uc.adjustmentLocationID, in.Quantity.Neg(), nil
	}
	if in.Quantity.IsNegative() {
		return "", "", decimal.Zero, domain.NewValidationError(domain.FieldError{
			Field: "quantity", Message: fmt.Sprintf("debe ser positiva en %s; solo ADJ admite signo", p.TypeCode),
		})
	}
	src, dest = in.LocationSrcID, in.LocationDestID
	if src == "" {
		src = p.LocationSrcID
	}
	if dest == "" {
		dest = p.LocationDestID
	}
	if src == "" && dest == "" {
		return "", "", decimal.Zero, domain.NewValidationError(domain.FieldError{
			Field: "location_dest_id", Message: "la línea necesita al menos una ubicación",
		})
	}
	if src == dest {
		return "", "", decimal.Zero, domain.NewValidationError(domain.FieldError{
			Field: "location_dest_id", Message: "origen y destino no pueden ser la misma ubicación",
		})
	}
	return src, dest, in.Quantity, nil
}

// RemoveMove elimina una línea de un picking en draft.
func (uc *PickingUseCase) RemoveMove(ctx context.Context, scope domain.Scope, pickingID, moveID string) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	return uc.txRunner.Run(ctx, func(repos TxRepos) error {
		p, err := repos.Pickings.GetForUpdate(ctx, scope.CompanyID, pickingID)
		if err != nil {
			return err
		}
		if err := inventory.CheckEditable(p); err != nil {
			return err
		}
		m, err := repos.Moves.GetByID(ctx, scope.CompanyID, moveID)
		if err != nil {
			return err
		}
		if m.PickingID != p.ID {
			return domain.NewNotFoundError("stock_move", moveID)
		}
		return repos.Moves.Delete(ctx, m.ID)
	})
}

// GetPicking devuelve el picking con sus movimientos y líneas de serie/lote.
func (uc *PickingUseCase) GetPicking(ctx context.Context, scope domain.Scope, pickingID string) (*PickingDetail, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var out *PickingDetail
	err := uc.txRunner.Run(ctx, func(repos TxRepos) error {
		p, err := repos.Pickings.GetByID(ctx, scope.CompanyID, pickingID)
		if err != nil {
			return err
		}
		moves, err := repos.Moves.ListByPicking(ctx, p.ID)
		if err != nil {
			return err
		}
		lines := make(map[string][]*entity.StockMoveLine)
		if p.State == entity.PickingDone {
			for _, m := range moves {
				ls, err := repos.MoveLines.ListByMove(ctx, m.ID)
				if err != nil {
					return err
				}
				if len(ls) > 0 {
					lines[m.ID] = ls
				}
			}
		}
		out = &PickingDetail{Picking: p, Moves: moves, Lines: lines}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel libera las reservas (si las hay) y deja el picking en cancelled. Rechazado desde done.
func (uc *PickingUseCase) Cancel(ctx context.Context, scope domain.Scope, pickingID string) (*entity.Picking, error) {
	return uc.unreserveTransition(ctx, scope, pickingID, entity.PickingCancelled)
}

// ReturnToDraft desde ready libera las reservas; desde cancelled solo cambia el estado.
func (uc *PickingUseCase) ReturnToDraft(ctx context.Context, scope domain.Scope, pickingID string) (*entity.Picking, error) {
	return uc.unreserveTransition(ctx, scope, pickingID, entity.PickingDraft)
}

func (uc *PickingUseCase) unreserveTransition(ctx context.Context, scope domain.Scope, pickingID, to string) (*entity.Picking, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var picking *entity.Picking
	var from string
	err := uc.txRunner.Run(ctx, func(repos TxRepos) error {
		p, err := repos.Pickings.GetForUpdate(ctx, scope.CompanyID, pickingID)
		if err != nil {
			return err
		}
		from = p.State
		if err := inventory.CheckTransition(p, to); err != nil {
			return err
		}
		now := uc.now()
		if p.State == entity.PickingReady {
			if err := uc.releaseReservations(ctx, repos, p, now); err != nil {
				return err
			}
		}
		if err := uc.setState(ctx, repos, p, to, now); err != nil {
			return err
		}
		picking = p
		return nil
	})
	if err != nil {
		uc.logRejected(scope, pickingID, to, err)
		return nil, err
	}
	uc.logTransition(picking, from, to)
	return picking, nil
}

// releaseReservations devuelve al disponible exactamente lo reservado por el picking.
func (uc *PickingUseCase) releaseReservations(ctx context.Context, repos TxRepos, p *entity.Picking, now time.Time) error {
	rs, err := repos.Reservations.ListByPicking(ctx, p.ID)
	if err != nil {
		return err
	}
	if len(rs) == 0 {
		return nil
	}
	keys := make([]entity.QuantKey, 0, len(rs))
	for _, r := range rs {
		keys = append(keys, r.Key())
	}
	book, err := lockQuants(ctx, repos.Quants, p.CompanyID, keys)
	if err != nil {
		return err
	}
	for _, r := range rs {
		book.addReserved(r.Key(), r.Quantity.Neg())
	}
	if err := book.save(ctx, repos.Quants, now); err != nil {
		return err
	}
	return repos.Reservations.DeleteByPicking(ctx, p.ID)
}

func (uc *PickingUseCase) setState(ctx context.Context, repos TxRepos, p *entity.Picking, to string, now time.Time) error {
	p.State = to
	p.UpdatedAt = now
	if to == entity.PickingDone {
		p.DoneAt = &now
	}
	if err := repos.Pickings.Update(ctx, p); err != nil {
		return err
	}
	return repos.Moves.SetStateByPicking(ctx, p.ID, to)
}

func (uc *PickingUseCase) logTransition(p *entity.Picking, from, to string) {
	uc.log.Info().
		Str("company_id", p.CompanyID).
		Str("picking_id", p.ID).
		Str("from", from).
		Str("to", to).
		Msg("transición de picking")
}

func (uc *PickingUseCase) logRejected(scope domain.Scope, pickingID, to string, err error) {
	uc.log.Warn().
		Err(err).
		Str("company_id", scope.CompanyID).
		Str("picking_id", pickingID).
		Str("to", to).
		Msg("transición rechazada")
}

// loadProducts lee los productos; un id desconocido es NotFoundError.
func (uc *PickingUseCase) loadProducts(ctx context.Context, companyID string, ids []string) (map[string]*entity.Product, error) {
	ids = uniqueIDs(ids...)
	products, err := uc.catalogs.Products.GetByIDs(ctx, companyID, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if products[id] == nil {
			return nil, domain.NewNotFoundError("product", id)
		}
	}
	return products, nil
}

// loadLocations lee las ubicaciones no vacías; un id desconocido es NotFoundError.
func (uc *PickingUseCase) loadLocations(ctx context.Context, companyID string, ids ...string) (map[string]*entity.Location, error) {
	ids = uniqueIDs(ids...)
	if len(ids) == 0 {
		return map[string]*entity.Location{}, nil
	}
	locs, err := uc.catalogs.Locations.GetByIDs(ctx, companyID, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if locs[id] == nil {
			return nil, domain.NewNotFoundError("location", id)
		}
	}
	return locs, nil
}

func (uc *PickingUseCase) loadPartner(ctx context.Context, companyID, id string) (*entity.Partner, error) {
	partner, err := uc.catalogs.Partners.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, domain.NewNotFoundError("partner", id)
	}
	return partner, nil
}

func checkScope(scope domain.Scope) error {
	if !scope.Valid() {
		return domain.NewValidationError(domain.FieldError{Field: "scope", Message: "empresa y usuario requeridos"})
	}
	return nil
}

func uniqueIDs(ids ...string) []string {
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

func nextSequence(moves []*entity.StockMove) int {
	last := 0
	for _, m := range moves {
		if m.Sequence > last {
			last = m.Sequence
		}
	}
	return last + 1
}

func locationLabel(locs map[string]*entity.Location, id string) string {
	if l := locs[id]; l != nil && l.Path != "" {
		return l.Path
	}
	return id
}

func moveLocationIDs(p *entity.Picking, moves []*entity.StockMove) []string {
	ids := []string{p.LocationSrcID, p.LocationDestID}
	for _, m := range moves {
		ids = append(ids, m.LocationSrcID, m.LocationDestID)
	}
	return ids
}

func moveProductIDs(moves []*entity.StockMove) []string {
	ids := make([]string, 0, len(moves))
	for _, m := range moves {
		ids = append(ids, m.ProductID)
	}
	return uniqueIDs(ids...)
}
