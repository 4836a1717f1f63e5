package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/jhoicas/Inventario-movimientos/internal/domain/inventory"
)

// LoadOperationRules lee la tabla de operaciones desde un archivo YAML o JSON con la forma
//
//	operations:
//	  - name: Compra Nacional
//	    required_ownership: owned
//	    partner_category: PROVEEDOR
//
// Con path vacío devuelve nil (el RuleSet usa la tabla por defecto).
func LoadOperationRules(path string) ([]inventory.OperationRule, error) {
	if path == "" {
		return nil, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("leer reglas de operación %s: %w", path, err)
	}
	var file struct {
		Operations []inventory.OperationRule `mapstructure:"operations"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decodificar reglas de operación: %w", err)
	}
	if len(file.Operations) == 0 {
		return nil, fmt.Errorf("reglas de operación %s: la tabla está vacía", path)
	}
	seen := make(map[string]bool, len(file.Operations))
	for i, op := range file.Operations {
		if op.Name == "" {
			return nil, fmt.Errorf("reglas de operación: la entrada %d no tiene nombre", i)
		}
		if seen[op.Name] {
			return nil, fmt.Errorf("reglas de operación: %q repetida", op.Name)
		}
		seen[op.Name] = true
	}
	return file.Operations, nil
}
