package database

import (
	"context"
	"errors"
	"time"

	"carbonmarket-backend/internal/domain"
	"carbonmarket-backend/internal/repository"

	"gorm.io/gorm"
)

// Store is the durable repository.Store backed by GORM.
type Store struct {
	DB *gorm.DB
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Name() string { return "database" }

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.ErrNotFound
	}
	return err
}

func paginate(q *gorm.DB, p repository.Page) *gorm.DB {
	p = p.Normalize()
	return q.Limit(p.Limit).Offset(p.Offset)
}

// Projects

func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	return s.DB.WithContext(ctx).Create(p).Error
}

func (s *Store) GetProject(ctx context.Context, id uint) (*domain.Project, error) {
	var p domain.Project
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) ListProjects(ctx context.Context, f repository.ProjectFilter) ([]domain.Project, error) {
	q := s.DB.WithContext(ctx).Model(&domain.Project{})
	if f.OwnerAddress != "" {
		q = q.Where("owner_address = ?", f.OwnerAddress)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var out []domain.Project
	err := paginate(q.Order("id DESC"), f.Page).Find(&out).Error
	return out, err
}

func (s *Store) UpdateProject(ctx context.Context, p *domain.Project) error {
	return s.DB.WithContext(ctx).Save(p).Error
}

func (s *Store) CreateDocument(ctx context.Context, d *domain.Document) error {
	return s.DB.WithContext(ctx).Create(d).Error
}

func (s *Store) ListDocuments(ctx context.Context, projectID uint) ([]domain.Document, error) {
	var out []domain.Document
	err := s.DB.WithContext(ctx).Where("project_id = ?", projectID).Order("id ASC").Find(&out).Error
	return out, err
}

func (s *Store) CreateVerification(ctx context.Context, v *domain.Verification) error {
	return s.DB.WithContext(ctx).Create(v).Error
}

func (s *Store) ListVerifications(ctx context.Context, projectID uint) ([]domain.Verification, error) {
	var out []domain.Verification
	err := s.DB.WithContext(ctx).Where("project_id = ?", projectID).Order("id DESC").Find(&out).Error
	return out, err
}

// Credits

func (s *Store) CreateCredit(ctx context.Context, c *domain.CarbonCredit) error {
	return s.DB.WithContext(ctx).Create(c).Error
}

func (s *Store) GetCredit(ctx context.Context, id uint) (*domain.CarbonCredit, error) {
	var c domain.CarbonCredit
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) ListCredits(ctx context.Context, f repository.CreditFilter) ([]domain.CarbonCredit, error) {
	q := s.DB.WithContext(ctx).Model(&domain.CarbonCredit{})
	if f.OwnerAddress != "" {
		q = q.Where("owner_address = ?", f.OwnerAddress)
	}
	if f.ProjectID != 0 {
		q = q.Where("project_id = ?", f.ProjectID)
	}
	var out []domain.CarbonCredit
	err := paginate(q.Order("id DESC"), f.Page).Find(&out).Error
	return out, err
}

func (s *Store) UpdateCredit(ctx context.Context, c *domain.CarbonCredit) error {
	return s.DB.WithContext(ctx).Save(c).Error
}

// Listings

func (s *Store) CreateListing(ctx context.Context, l *domain.Listing) error {
	return s.DB.WithContext(ctx).Create(l).Error
}

func (s *Store) GetListing(ctx context.Context, id uint) (*domain.Listing, error) {
	var l domain.Listing
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func (s *Store) ListListings(ctx context.Context, f repository.ListingFilter) ([]domain.Listing, error) {
	q := s.DB.WithContext(ctx).Model(&domain.Listing{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.SellerAddress != "" {
		q = q.Where("seller_address = ?", f.SellerAddress)
	}
	if f.CreditID != 0 {
		q = q.Where("credit_id = ?", f.CreditID)
	}
	var out []domain.Listing
	err := paginate(q.Order("id DESC"), f.Page).Find(&out).Error
	return out, err
}

func (s *Store) UpdateListing(ctx context.Context, l *domain.Listing) error {
	return s.DB.WithContext(ctx).Save(l).Error
}

func (s *Store) CreateTrade(ctx context.Context, t *domain.Trade) error {
	return s.DB.WithContext(ctx).Create(t).Error
}

func (s *Store) ListTrades(ctx context.Context, listingID uint) ([]domain.Trade, error) {
	var out []domain.Trade
	err := s.DB.WithContext(ctx).Where("listing_id = ?", listingID).Order("id ASC").Find(&out).Error
	return out, err
}

// Lending positions

func (s *Store) CreatePosition(ctx context.Context, p *domain.LendingPosition) error {
	return s.DB.WithContext(ctx).Create(p).Error
}

func (s *Store) GetPosition(ctx context.Context, id uint) (*domain.LendingPosition, error) {
	var p domain.LendingPosition
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) ListPositions(ctx context.Context, f repository.PositionFilter) ([]domain.LendingPosition, error) {
	q := s.DB.WithContext(ctx).Model(&domain.LendingPosition{})
	if f.UserAddress != "" {
		q = q.Where("user_address = ?", f.UserAddress)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var out []domain.LendingPosition
	err := paginate(q.Order("id DESC"), f.Page).Find(&out).Error
	return out, err
}

// UpdatePosition is a single conditional UPDATE keyed on (id, version).
func (s *Store) UpdatePosition(ctx context.Context, p *domain.LendingPosition, expectedVersion int64) error {
	now := time.Now()
	res := s.DB.WithContext(ctx).Model(&domain.LendingPosition{}).
		Where("id = ? AND version = ?", p.ID, expectedVersion).
		Updates(map[string]interface{}{
			"collateral_amount":     p.CollateralAmount,
			"borrowed_amount":       p.BorrowedAmount,
			"interest_rate":         p.InterestRate,
			"liquidation_threshold": p.LiquidationThreshold,
			"health_factor":         p.HealthFactor,
			"status":                p.Status,
			"version":               expectedVersion + 1,
			"updated_at":            now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetPosition(ctx, p.ID); err != nil {
			return err
		}
		return repository.ErrConflict
	}
	p.Version = expectedVersion + 1
	p.UpdatedAt = now
	return nil
}

// Activities

func (s *Store) CreateActivity(ctx context.Context, a *domain.Activity) error {
	return s.DB.WithContext(ctx).Create(a).Error
}

func (s *Store) ListActivities(ctx context.Context, f repository.ActivityFilter) ([]domain.Activity, error) {
	q := s.DB.WithContext(ctx).Model(&domain.Activity{})
	if f.UserAddress != "" {
		q = q.Where("user_address = ?", f.UserAddress)
	}
	if f.ActionType != "" {
		q = q.Where("action_type = ?", f.ActionType)
	}
	var out []domain.Activity
	err := paginate(q.Order("id DESC"), f.Page).Find(&out).Error
	return out, err
}
