package entity

// Partner es un tercero (proveedor, cliente). Categories se usa en las reglas de operación.
type Partner struct {
	ID         string
	CompanyID  string
	Name       string
	Categories []string
}

// HasCategory indica si el tercero pertenece a la categoría.
func (p *Partner) HasCategory(category string) bool {
	for _, c := range p.Categories {
		if c == category {
			return true
		}
	}
	return false
}
