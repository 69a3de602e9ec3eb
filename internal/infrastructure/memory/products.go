package memory

import (
	"context"

	"fulfillment/internal/domain"
)

type ProductRepository struct {
	s *Store
}

func (r *ProductRepository) Save(ctx context.Context, p domain.Product) error {
	defer r.s.lock(ctx)()
	r.s.data.products[p.ID] = p
	return nil
}

// FindByIDs returns the products found among ids; unknown ids are skipped.
func (r *ProductRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	defer r.s.lock(ctx)()

	var out []domain.Product
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := r.s.data.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
