// Package repository declares the persistence ports used by the application
// services. Two stores implement them: the gorm-backed durable store and the
// JSON-file store used when no database is reachable.
package repository

import (
	"context"
	"errors"

	"carbonmarket-backend/internal/domain"
)

var (
	// ErrNotFound is returned by Get* lookups for absent rows.
	ErrNotFound = errors.New("repository: record not found")
	// ErrConflict is returned by conditional updates when the stored version moved.
	ErrConflict = errors.New("repository: version conflict")
)

// Page bounds a list query. Limit 0 means the store default.
type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type ProjectFilter struct {
	OwnerAddress string
	Status       string
	Page
}

type CreditFilter struct {
	OwnerAddress string
	ProjectID    uint
	Page
}

type ListingFilter struct {
	Status        string
	SellerAddress string
	CreditID      uint
	Page
}

type PositionFilter struct {
	UserAddress string
	Status      string
	Page
}

type ActivityFilter struct {
	UserAddress string
	ActionType  string
	Page
}

type ProjectRepository interface {
	CreateProject(ctx context.Context, p *domain.Project) error
	GetProject(ctx context.Context, id uint) (*domain.Project, error)
	ListProjects(ctx context.Context, f ProjectFilter) ([]domain.Project, error)
	UpdateProject(ctx context.Context, p *domain.Project) error

	CreateDocument(ctx context.Context, d *domain.Document) error
	ListDocuments(ctx context.Context, projectID uint) ([]domain.Document, error)

	CreateVerification(ctx context.Context, v *domain.Verification) error
	ListVerifications(ctx context.Context, projectID uint) ([]domain.Verification, error)
}

type CreditRepository interface {
	CreateCredit(ctx context.Context, c *domain.CarbonCredit) error
	GetCredit(ctx context.Context, id uint) (*domain.CarbonCredit, error)
	ListCredits(ctx context.Context, f CreditFilter) ([]domain.CarbonCredit, error)
	UpdateCredit(ctx context.Context, c *domain.CarbonCredit) error
}

type ListingRepository interface {
	CreateListing(ctx context.Context, l *domain.Listing) error
	GetListing(ctx context.Context, id uint) (*domain.Listing, error)
	ListListings(ctx context.Context, f ListingFilter) ([]domain.Listing, error)
	UpdateListing(ctx context.Context, l *domain.Listing) error

	CreateTrade(ctx context.Context, t *domain.Trade) error
	ListTrades(ctx context.Context, listingID uint) ([]domain.Trade, error)
}

type PositionRepository interface {
	CreatePosition(ctx context.Context, p *domain.LendingPosition) error
	GetPosition(ctx context.Context, id uint) (*domain.LendingPosition, error)
	ListPositions(ctx context.Context, f PositionFilter) ([]domain.LendingPosition, error)
	// UpdatePosition writes p only if the stored version equals expectedVersion,
	// then sets p.Version to expectedVersion+1.
	UpdatePosition(ctx context.Context, p *domain.LendingPosition, expectedVersion int64) error
}

type ActivityRepository interface {
	CreateActivity(ctx context.Context, a *domain.Activity) error
	ListActivities(ctx context.Context, f ActivityFilter) ([]domain.Activity, error)
}

// Store is the full persistence surface selected at startup.
type Store interface {
	ProjectRepository
	CreditRepository
	ListingRepository
	PositionRepository
	ActivityRepository

	Name() string
	Ping(ctx context.Context) error
}
