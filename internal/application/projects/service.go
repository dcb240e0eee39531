package projects

import (
	"context"
	"errors"

	"carbonmarket-backend/internal/application/activity"
	"carbonmarket-backend/internal/domain"
	"carbonmarket-backend/internal/pkg/validation"
	"carbonmarket-backend/internal/repository"

	"github.com/shopspring/decimal"
)

// Service registers and looks up offset projects.
type Service struct {
	Repo     repository.ProjectRepository
	Activity activity.Recorder
}

type RegisterRequest struct {
	OwnerAddress     string          `json:"ownerAddress" validate:"required,notblank,max=64"`
	Name             string          `json:"name" validate:"required,max=200"`
	Description      string          `json:"description" validate:"max=5000"`
	Location         string          `json:"location" validate:"max=200"`
	Methodology      string          `json:"methodology" validate:"max=200"`
	VintageYear      int             `json:"vintageYear" validate:"omitempty,gte=1990,lte=2100"`
	EstimatedCredits decimal.Decimal `json:"estimatedCredits" validate:"decimal_gt=0,decimal_scale=8,decimal_lt=1e22"`
}

// Register creates a pending project.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.Project, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	p := &domain.Project{
		OwnerAddress:     domain.NormalizeAddress(req.OwnerAddress),
		Name:             req.Name,
		Description:      req.Description,
		Location:         req.Location,
		Methodology:      req.Methodology,
		VintageYear:      req.VintageYear,
		EstimatedCredits: req.EstimatedCredits,
		Status:           domain.ProjectStatusPending,
	}
	if err := s.Repo.CreateProject(ctx, p); err != nil {
		return nil, domain.Persistence("create project", err)
	}
	if s.Activity != nil {
		_ = s.Activity.Record(ctx, activity.Entry{
			UserAddress: p.OwnerAddress,
			ActionType:  domain.ActionProjectRegistered,
			Details: map[string]interface{}{
				"projectId":        p.ID,
				"name":             p.Name,
				"estimatedCredits": p.EstimatedCredits.String(),
			},
		})
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*domain.Project, error) {
	p, err := s.Repo.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("project %d not found", id)
		}
		return nil, domain.Persistence("load project", err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, f repository.ProjectFilter) ([]domain.Project, error) {
	if f.Status != "" && f.Status != domain.ProjectStatusPending && f.Status != domain.ProjectStatusVerified && f.Status != domain.ProjectStatusRejected {
		return nil, domain.Validation("status must be one of pending, verified, rejected")
	}
	f.OwnerAddress = domain.NormalizeAddress(f.OwnerAddress)
	items, err := s.Repo.ListProjects(ctx, f)
	if err != nil {
		return nil, domain.Persistence("list projects", err)
	}
	if items == nil {
		items = []domain.Project{}
	}
	return items, nil
}
