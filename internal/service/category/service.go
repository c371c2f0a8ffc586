// Package category implements category rules: per-org unique slugs and seeded
// system defaults that cannot be changed or deleted.
package category

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/folahanmi/orgledger/internal/errs"
	"github.com/folahanmi/orgledger/internal/finance"
	"github.com/folahanmi/orgledger/internal/slug"
)

// defaults are the system categories seeded for every organization.
var defaults = []finance.Category{
	{Name: "General Income", Slug: "general_income", Type: finance.CategoryTypeIncome, System: true},
	{Name: "General Expense", Slug: "general_expense", Type: finance.CategoryTypeExpense, System: true},
	{Name: "Transfers", Slug: "transfers", Type: finance.CategoryTypeExpense, System: true},
	{Name: "Opening Balance", Slug: "opening_balance", Type: finance.CategoryTypeIncome, System: true},
	{Name: "Bank Fees", Slug: "bank_fees", Type: finance.CategoryTypeExpense, System: true},
	{Name: "Liabilities", Slug: "liabilities", Type: finance.CategoryTypeLiability, System: true},
}

// Repo defines read operations needed by the service.
type Repo interface {
	GetCategory(ctx context.Context, orgID, categoryID uuid.UUID) (finance.Category, error)
	ListCategories(ctx context.Context, orgID uuid.UUID) ([]finance.Category, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	CreateCategory(ctx context.Context, c finance.Category) (finance.Category, error)
	DeleteCategory(ctx context.Context, orgID, categoryID uuid.UUID) error
}

// Service exposes category lifecycle operations.
type Service interface {
	EnsureDefaults(ctx context.Context, orgID uuid.UUID) ([]finance.Category, error)
	BySlug(ctx context.Context, orgID uuid.UUID, s string) (finance.Category, error)
	Create(ctx context.Context, c finance.Category) (finance.Category, error)
	List(ctx context.Context, orgID uuid.UUID) ([]finance.Category, error)
	Delete(ctx context.Context, orgID, categoryID uuid.UUID) error
}

type service struct {
	repo   Repo
	writer Writer
}

func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

// EnsureDefaults creates any missing system category for the org. Idempotent.
func (s *service) EnsureDefaults(ctx context.Context, orgID uuid.UUID) ([]finance.Category, error) {
	if orgID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	existing, err := s.repo.ListCategories(ctx, orgID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		have[c.Slug] = struct{}{}
	}
	out := make([]finance.Category, 0, len(defaults))
	for _, d := range defaults {
		if _, ok := have[d.Slug]; ok {
			continue
		}
		c := d
		c.ID = uuid.New()
		c.OrgID = orgID
		created, err := s.writer.CreateCategory(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}
	return out, nil
}

// BySlug resolves a category by its slug.
func (s *service) BySlug(ctx context.Context, orgID uuid.UUID, want string) (finance.Category, error) {
	cats, err := s.repo.ListCategories(ctx, orgID)
	if err != nil {
		return finance.Category{}, err
	}
	for _, c := range cats {
		if c.Slug == want {
			return c, nil
		}
	}
	return finance.Category{}, errs.ErrNotFound
}

func (s *service) Create(ctx context.Context, c finance.Category) (finance.Category, error) {
	if c.OrgID == uuid.Nil {
		return finance.Category{}, errs.ErrInvalid
	}
	if c.Name == "" {
		return finance.Category{}, fmt.Errorf("%w: name is required", errs.ErrInvalid)
	}
	switch c.Type {
	case finance.CategoryTypeIncome, finance.CategoryTypeExpense, finance.CategoryTypeLiability:
	default:
		return finance.Category{}, fmt.Errorf("%w: invalid category type", errs.ErrInvalid)
	}
	if c.TrackMembers && c.Type != finance.CategoryTypeIncome {
		return finance.Category{}, fmt.Errorf("%w: track_members applies to income categories only", errs.ErrInvalid)
	}
	c.ID = uuid.New()
	c.Slug = slug.Slugify(c.Name)
	if !slug.IsSlug(c.Slug) {
		return finance.Category{}, fmt.Errorf("%w: name does not produce a valid slug", errs.ErrInvalid)
	}
	// User-created categories are never system, regardless of request payload.
	c.System = false
	return s.writer.CreateCategory(ctx, c)
}

func (s *service) List(ctx context.Context, orgID uuid.UUID) ([]finance.Category, error) {
	if orgID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return s.repo.ListCategories(ctx, orgID)
}

func (s *service) Delete(ctx context.Context, orgID, categoryID uuid.UUID) error {
	if orgID == uuid.Nil || categoryID == uuid.Nil {
		return errs.ErrInvalid
	}
	c, err := s.repo.GetCategory(ctx, orgID, categoryID)
	if err != nil {
		return err
	}
	if c.System {
		return errs.ErrSystemCategory
	}
	return s.writer.DeleteCategory(ctx, orgID, categoryID)
}
