package activity

import (
	"context"
	"encoding/json"

	"carbonmarket-backend/internal/domain"
	"carbonmarket-backend/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// Entry is one domain event to append.
type Entry struct {
	UserAddress string
	ActionType  string
	CreditID    *uint
	Details     map[string]interface{}
}

// Recorder appends domain events.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Service records and lists activities.
type Service struct {
	Repo repository.ActivityRepository
}

// Record appends e. The caller's operation has already been persisted, so a
// failure here is logged and returned but should not undo it.
func (s *Service) Record(ctx context.Context, e Entry) error {
	details := datatypes.JSON("{}")
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		details = datatypes.JSON(raw)
	}
	a := &domain.Activity{
		UserAddress: domain.NormalizeAddress(e.UserAddress),
		ActionType:  e.ActionType,
		CreditID:    e.CreditID,
		Details:     details,
	}
	if err := s.Repo.CreateActivity(ctx, a); err != nil {
		log.Error().Err(err).Str("action_type", e.ActionType).Str("user_address", a.UserAddress).Msg("failed to record activity")
		return domain.Persistence("record activity", err)
	}
	return nil
}

// List returns activities newest first.
func (s *Service) List(ctx context.Context, f repository.ActivityFilter) ([]domain.Activity, error) {
	f.UserAddress = domain.NormalizeAddress(f.UserAddress)
	items, err := s.Repo.ListActivities(ctx, f)
	if err != nil {
		return nil, domain.Persistence("list activities", err)
	}
	if items == nil {
		items = []domain.Activity{}
	}
	return items, nil
}

// CreditRef is a convenience for the optional credit id.
func CreditRef(id uint) *uint {
	return &id
}
