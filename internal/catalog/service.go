package catalog

import (
	"context"

	"github.com/odyssey-erp/unistock/internal/shared"
	"github.com/odyssey-erp/unistock/internal/tenancy"
)

// RepositoryPort abstracts product reads for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
}

// Service exposes scoped catalog reads.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns a product visible to the principal.
func (s *Service) Get(ctx context.Context, p tenancy.Principal, id int64) (Product, error) {
	product, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := tenancy.Authorize(p, product.UnitID); err != nil {
		return Product{}, err
	}
	return product, nil
}

// ListRequest carries listing parameters from the transport.
type ListRequest struct {
	Nature  Nature
	Search  string
	Page    int
	PerPage int
}

// List returns products in the principal's scope.
func (s *Service) List(ctx context.Context, p tenancy.Principal, req ListRequest) ([]Product, shared.Pagination, error) {
	page, perPage := shared.NormalizePage(req.Page, req.PerPage)
	filter := ListFilter{
		UnitID: tenancy.CurrentUnit(p).UnitFilter(),
		Nature: req.Nature,
		Search: req.Search,
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return products, shared.NewPagination(page, perPage, total), nil
}
