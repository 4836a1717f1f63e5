package domain

// Scope identifica a la empresa y al usuario ya autorizado que invocan una operación.
// Se pasa explícitamente a cada caso de uso; el motor no lee estado global.
type Scope struct {
	CompanyID string
	UserID    string
}

// Valid indica si el alcance tiene empresa y usuario.
func (s Scope) Valid() bool { return s.CompanyID != "" && s.UserID != "" }
