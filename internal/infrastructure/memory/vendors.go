package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
)

type VendorRepository struct {
	s *Store
}

func (r *VendorRepository) Save(ctx context.Context, v domain.Vendor) error {
	defer r.s.lock(ctx)()
	r.s.data.vendors[v.ID] = cloneVendor(v)
	return nil
}

func (r *VendorRepository) FindByID(ctx context.Context, id string) (*domain.Vendor, error) {
	defer r.s.lock(ctx)()

	v, ok := r.s.data.vendors[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("vendor %s not found", id))
	}
	v = cloneVendor(v)
	return &v, nil
}

// ListActive returns active vendors ordered by name.
func (r *VendorRepository) ListActive(ctx context.Context) ([]domain.Vendor, error) {
	defer r.s.lock(ctx)()

	var out []domain.Vendor
	for _, v := range r.s.data.vendors {
		if v.Active {
			out = append(out, cloneVendor(v))
		}
	}
	slices.SortFunc(out, func(a, b domain.Vendor) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

type VendorAssignmentRepository struct {
	s *Store
}

// SupersedeActive deactivates the active assignment of lineID, if any.
func (r *VendorAssignmentRepository) SupersedeActive(ctx context.Context, lineID string, at time.Time) error {
	defer r.s.lock(ctx)()

	for i, a := range r.s.data.vendorAssignments {
		if a.LineItemID == lineID && a.Active {
			a.Active = false
			a.SupersededAt = &at
			r.s.data.vendorAssignments[i] = a
		}
	}
	return nil
}

func (r *VendorAssignmentRepository) Insert(ctx context.Context, a *domain.VendorAssignment) error {
	defer r.s.lock(ctx)()
	r.s.data.vendorAssignments = append(r.s.data.vendorAssignments, *a)
	return nil
}

// ListByLine returns every assignment ever made for lineID, oldest first.
func (r *VendorAssignmentRepository) ListByLine(ctx context.Context, lineID string) ([]domain.VendorAssignment, error) {
	defer r.s.lock(ctx)()

	var out []domain.VendorAssignment
	for _, a := range r.s.data.vendorAssignments {
		if a.LineItemID == lineID {
			out = append(out, a)
		}
	}
	return out, nil
}
