package inventory

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/Inventario-movimientos/internal/domain"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
)

// MaxLotNameLength longitud máxima de una serie o lote normalizado.
const MaxLotNameLength = 30

var lotNamePattern = regexp.MustCompile(`^[A-Z0-9\-_/.]+$`)

// NormalizeLotName limpia una serie/lote: NFKC (ancho completo → ASCII), sin espacios, mayúsculas.
// Devuelve error si queda vacío, excede 30 caracteres o usa caracteres fuera de [A-Z0-9-_/.].
func NormalizeLotName(raw string) (string, error) {
	t := transform.Chain(norm.NFKC, runes.Remove(runes.In(unicode.White_Space)))
	cleaned, _, err := transform.String(t, raw)
	if err != nil {
		return "", fmt.Errorf("normalizar %q: %w", raw, err)
	}
	// Caser guarda estado: uno por llamada.
	name := cases.Upper(language.Und).String(cleaned)
	if name == "" {
		return "", fmt.Errorf("serie/lote vacío")
	}
	if utf8.RuneCountInString(name) > MaxLotNameLength {
		return "", fmt.Errorf("%q excede %d caracteres", name, MaxLotNameLength)
	}
	if !lotNamePattern.MatchString(name) {
		return "", fmt.Errorf("%q contiene caracteres no permitidos (solo A-Z, 0-9, - _ / .)", name)
	}
	return name, nil
}

// TrackingInput es una serie o lote tal como lo envía el llamador.
type TrackingInput struct {
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
}

// TrackedQuantity es una serie/lote ya normalizado con su cantidad.
type TrackedQuantity struct {
	LotName  string
	Quantity decimal.Decimal
}

// TrackingValidator valida el mapa de seguimiento de una transacción de validación completa.
// Recuerda los pares (producto, serie) vistos para rechazar duplicados entre movimientos.
type TrackingValidator struct {
	seenSerials map[string]string // producto|serie -> field donde apareció
	errs        *domain.ValidationError
}

// NewTrackingValidator construye el validador para una transacción.
func NewTrackingValidator() *TrackingValidator {
	return &TrackingValidator{
		seenSerials: make(map[string]string),
		errs:        domain.NewValidationError(),
	}
}

// Check valida las entradas de un movimiento contra el tipo de seguimiento del producto.
// Los errores se acumulan; Err los devuelve todos juntos al final.
func (v *TrackingValidator) Check(field string, product *entity.Product, moveQty decimal.Decimal, entries []TrackingInput) []TrackedQuantity {
	switch product.Tracking {
	case entity.TrackingSerial:
		return v.checkSerial(field, product, moveQty, entries)
	case entity.TrackingLot:
		return v.checkLot(field, product, moveQty, entries)
	default:
		if len(entries) > 0 {
			v.errs.AddCode(field, domain.CodeTrackingMismatch,
				"producto %s no maneja series ni lotes", product.Label())
		}
		return nil
	}
}

// Err devuelve el error acumulado o nil.
func (v *TrackingValidator) Err() error { return v.errs.OrNil() }

func (v *TrackingValidator) checkSerial(field string, product *entity.Product, moveQty decimal.Decimal, entries []TrackingInput) []TrackedQuantity {
	if !moveQty.Equal(moveQty.Truncate(0)) {
		v.errs.AddCode(field, domain.CodeTrackingMismatch,
			"producto %s con serie requiere cantidad entera, recibido %s", product.Label(), moveQty.String())
		return nil
	}
	want := moveQty.IntPart()
	if int64(len(entries)) != want {
		v.errs.AddCode(field, domain.CodeTrackingMismatch,
			"tracking mismatch: producto %s requiere %d series, recibidas %d", product.Label(), want, len(entries))
		return nil
	}
	out := make([]TrackedQuantity, 0, len(entries))
	ok := true
	for i, e := range entries {
		entryField := fmt.Sprintf("%s[%d]", field, i)
		name, err := NormalizeLotName(e.Name)
		if err != nil {
			v.errs.AddCode(entryField, domain.CodeInvalidLotName, "%s", err.Error())
			ok = false
			continue
		}
		if !e.Quantity.IsZero() && !e.Quantity.Equal(decimal.NewFromInt(1)) {
			v.errs.AddCode(entryField, domain.CodeTrackingMismatch,
				"la serie %s debe tener cantidad 1, recibido %s", name, e.Quantity.String())
			ok = false
			continue
		}
		key := product.ID + "|" + name
		if prev, dup := v.seenSerials[key]; dup {
			v.errs.AddCode(entryField, domain.CodeDuplicateSerial,
				"serie %s duplicada para el producto %s (ya usada en %s)", name, product.Label(), prev)
			ok = false
			continue
		}
		v.seenSerials[key] = entryField
		out = append(out, TrackedQuantity{LotName: name, Quantity: decimal.NewFromInt(1)})
	}
	if !ok {
		return nil
	}
	return out
}

func (v *TrackingValidator) checkLot(field string, product *entity.Product, moveQty decimal.Decimal, entries []TrackingInput) []TrackedQuantity {
	if len(entries) == 0 {
		v.errs.AddCode(field, domain.CodeTrackingMismatch,
			"tracking mismatch: producto %s requiere al menos un lote", product.Label())
		return nil
	}
	sum := decimal.Zero
	byName := make(map[string]decimal.Decimal, len(entries))
	order := make([]string, 0, len(entries))
	ok := true
	for i, e := range entries {
		entryField := fmt.Sprintf("%s[%d]", field, i)
		name, err := NormalizeLotName(e.Name)
		if err != nil {
			v.errs.AddCode(entryField, domain.CodeInvalidLotName, "%s", err.Error())
			ok = false
			continue
		}
		if e.Quantity.IsNegative() {
			v.errs.AddCode(entryField, domain.CodeTrackingMismatch,
				"el lote %s no puede tener cantidad negativa", name)
			ok = false
			continue
		}
		if _, exists := byName[name]; !exists {
			order = append(order, name)
		}
		byName[name] = byName[name].Add(e.Quantity)
		sum = sum.Add(e.Quantity)
	}
	if !ok {
		return nil
	}
	if !sum.Equal(moveQty) {
		v.errs.AddCode(field, domain.CodeTrackingMismatch,
			"tracking mismatch: lotes de %s suman %s, el movimiento es %s", product.Label(), sum.String(), moveQty.String())
		return nil
	}
	out := make([]TrackedQuantity, 0, len(order))
	for _, name := range order {
		if byName[name].IsZero() {
			continue
		}
		out = append(out, TrackedQuantity{LotName: name, Quantity: byName[name]})
	}
	return out
}
