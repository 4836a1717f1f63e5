// Package cache guarda reportes de Kardex en Redis con claves versionadas por empresa.
// Validar un picking incrementa la versión de la empresa y deja huérfanas las claves anteriores,
// que expiran por TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	appinv "github.com/jhoicas/Inventario-movimientos/internal/application/inventory"
	"github.com/jhoicas/Inventario-movimientos/internal/application/kardex"
)

const keyPrefix = "kardex"

var (
	_ kardex.ReportCache    = (*KardexCache)(nil)
	_ appinv.ValidationHook = (*KardexCache)(nil)
)

// KardexCache implementa kardex.ReportCache sobre go-redis.
type KardexCache struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewKardexCache construye la caché. ttl <= 0 usa 10 minutos.
func NewKardexCache(client goredis.UniversalClient, ttl time.Duration) *KardexCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &KardexCache{client: client, ttl: ttl}
}

// Las claves de una empresa comparten hash tag para que el script de Set corra en un solo slot.
func versionKey(companyID string) string {
	return fmt.Sprintf("%s:{%s}:version", keyPrefix, companyID)
}

func reportKey(companyID string, ver int64, key string) string {
	return fmt.Sprintf("%s:{%s}:v%d:%s", keyPrefix, companyID, ver, key)
}

// setIfVersion guarda el reporte solo si la versión de la empresa sigue siendo la leída.
var setIfVersion = goredis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
if cur ~= tonumber(ARGV[1]) then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Version devuelve la versión vigente de la empresa; 0 si nunca se validó nada.
func (c *KardexCache) Version(ctx context.Context, companyID string) (int64, error) {
	ver, err := c.client.Get(ctx, versionKey(companyID)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return ver, err
}

// Get devuelve el reporte cacheado para la versión vigente y esa versión, que el llamador
// pasa a Set al guardar lo que reconstruya.
func (c *KardexCache) Get(ctx context.Context, companyID, key string) (*kardex.Report, int64, bool, error) {
	ver, err := c.Version(ctx, companyID)
	if err != nil {
		return nil, 0, false, err
	}
	payload, err := c.client.Get(ctx, reportKey(companyID, ver, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ver, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	var r kardex.Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, 0, false, fmt.Errorf("decodificar kardex cacheado: %w", err)
	}
	return &r, ver, true, nil
}

// Set guarda el reporte bajo version. Si la empresa ya pasó a otra versión (se validó un
// picking durante la reconstrucción) la escritura se descarta.
func (c *KardexCache) Set(ctx context.Context, companyID, key string, version int64, r *kardex.Report) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	keys := []string{versionKey(companyID), reportKey(companyID, version, key)}
	return setIfVersion.Run(ctx, c.client, keys, version, raw, c.ttl.Milliseconds()).Err()
}

// Bump invalida todos los reportes de la empresa.
func (c *KardexCache) Bump(ctx context.Context, companyID string) (int64, error) {
	return c.client.Incr(ctx, versionKey(companyID)).Result()
}

// OnValidated invalida la caché de la empresa del picking validado.
func (c *KardexCache) OnValidated(ctx context.Context, ev appinv.ValidatedEvent) error {
	_, err := c.Bump(ctx, ev.CompanyID)
	return err
}
