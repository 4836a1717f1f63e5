package memstore

import (
	"context"

	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
)

// AddProduct registra un producto en el maestro.
func (s *Store) AddProduct(p *entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	s.products[p.ID] = &c
}

// AddLocation registra una ubicación en el maestro.
func (s *Store) AddLocation(l *entity.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *l
	s.locations[l.ID] = &c
}

// AddPartner registra un tercero en el maestro.
func (s *Store) AddPartner(p *entity.Partner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	s.partners[p.ID] = &c
}

type productCatalog struct{ s *Store }

func (c productCatalog) GetByIDs(_ context.Context, companyID string, ids []string) (map[string]*entity.Product, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	out := make(map[string]*entity.Product, len(ids))
	for _, id := range ids {
		if p, ok := c.s.products[id]; ok && p.CompanyID == companyID {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

type locationCatalog struct{ s *Store }

func (c locationCatalog) GetByIDs(_ context.Context, companyID string, ids []string) (map[string]*entity.Location, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	out := make(map[string]*entity.Location, len(ids))
	for _, id := range ids {
		if l, ok := c.s.locations[id]; ok && l.CompanyID == companyID {
			cp := *l
			out[id] = &cp
		}
	}
	return out, nil
}

type partnerCatalog struct{ s *Store }

func (c partnerCatalog) GetByID(_ context.Context, companyID, id string) (*entity.Partner, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	p, ok := c.s.partners[id]
	if !ok || p.CompanyID != companyID {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}
