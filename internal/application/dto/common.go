package dto

// ErrorResponse cuerpo de error HTTP. Details lista cada campo o producto implicado.
type ErrorResponse struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
	Fields  []Field  `json:"fields,omitempty"`
}

// Field error de un campo de entrada.
type Field struct {
	Field   string `json:"field"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
