package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrUnauthorized      = errors.New("no autorizado")
	ErrForbidden         = errors.New("acceso denegado")
	ErrConflict          = errors.New("conflicto con el estado actual")
	ErrInsufficientStock = errors.New("stock insuficiente")
)

// Códigos de BusinessRuleError.
const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeOwnershipMismatch = "OWNERSHIP_MISMATCH"
	CodeLocationCategory  = "LOCATION_CATEGORY"
	CodePartnerCategory   = "PARTNER_CATEGORY"
	CodeEmptyPicking      = "EMPTY_PICKING"
	CodeTrackingMismatch  = "TRACKING_MISMATCH"
	CodeDuplicateSerial   = "DUPLICATE_SERIAL"
	CodeInvalidLotName    = "INVALID_LOT_NAME"
	CodeImmutable         = "IMMUTABLE"
	CodeForbiddenCompany  = "FORBIDDEN_COMPANY"
)

// FieldError describe un campo faltante o mal formado.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ValidationError agrupa todos los errores de campo corregibles por el llamador.
type ValidationError struct {
	Items []FieldError
}

// NewValidationError construye el error con los ítems dados.
func NewValidationError(items ...FieldError) *ValidationError {
	return &ValidationError{Items: items}
}

// Add agrega un ítem al error.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Items = append(e.Items, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// AddCode agrega un ítem con código de máquina (ej. TRACKING_MISMATCH).
func (e *ValidationError) AddCode(field, code, format string, args ...any) {
	e.Items = append(e.Items, FieldError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
}

// Merge agrega los ítems de otro error de validación.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	e.Items = append(e.Items, other.Items...)
}

// HasItems indica si hay al menos un error registrado.
func (e *ValidationError) HasItems() bool { return e != nil && len(e.Items) > 0 }

// OrNil devuelve nil cuando no hay ítems, útil al final de una validación acumulativa.
func (e *ValidationError) OrNil() error {
	if !e.HasItems() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		parts = append(parts, it.Field+": "+it.Message)
	}
	return "validación: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// BusinessRuleError representa una transición inválida o una regla de negocio violada.
// Details lista cada producto/ubicación implicados, nunca solo el primero.
type BusinessRuleError struct {
	Code    string
	Message string
	Details []string
}

// NewBusinessRuleError construye el error.
func NewBusinessRuleError(code, message string, details ...string) *BusinessRuleError {
	return &BusinessRuleError{Code: code, Message: message, Details: details}
}

func (e *BusinessRuleError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Details, "; ")
}

func (e *BusinessRuleError) Is(target error) bool {
	switch target {
	case ErrConflict:
		return true
	case ErrInsufficientStock:
		return e.Code == CodeInsufficientStock
	case ErrForbidden:
		return e.Code == CodeForbiddenCompany
	}
	return false
}

// NotFoundError indica un picking, movimiento, producto o ubicación desconocidos.
type NotFoundError struct {
	Resource string
	ID       string
}

// NewNotFoundError construye el error.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q no encontrado", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
