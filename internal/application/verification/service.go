package verification

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"carbonmarket-backend/internal/application/activity"
	"carbonmarket-backend/internal/domain"
	"carbonmarket-backend/internal/infrastructure/chain"
	"carbonmarket-backend/internal/infrastructure/lock"
	"carbonmarket-backend/internal/infrastructure/scorer"
	"carbonmarket-backend/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DefaultApprovalScore is the minimum score that verifies a project.
const DefaultApprovalScore = 70

// Minter issues credits for a verified project.
type Minter interface {
	Mint(ctx context.Context, owner string, projectID uint, amount decimal.Decimal) (chain.MintReceipt, error)
}

type Service struct {
	Projects      repository.ProjectRepository
	Credits       repository.CreditRepository
	Scorer        scorer.Scorer
	Ledger        Minter
	Activity      activity.Recorder
	Locker        lock.Locker
	ApprovalScore int
}

// Outcome is the result of one verification run.
type Outcome struct {
	Verification *domain.Verification `json:"verification"`
	Project      *domain.Project      `json:"project"`
	Credit       *domain.CarbonCredit `json:"credit,omitempty"`
}

func (s *Service) threshold() int {
	if s.ApprovalScore <= 0 {
		return DefaultApprovalScore
	}
	return s.ApprovalScore
}

// Verify scores a pending project's documents. Approval mints the estimated
// credits to the owner; anything below the threshold rejects the project.
func (s *Service) Verify(ctx context.Context, projectID uint, verifier string) (*Outcome, error) {
	verifier = domain.NormalizeAddress(verifier)
	if verifier == "" {
		return nil, domain.Validation("verifierAddress is required")
	}

	release, err := s.Locker.Acquire(ctx, "project:"+strconv.FormatUint(uint64(projectID), 10))
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return nil, domain.Conflict("project %d is being verified, retry later", projectID)
		}
		return nil, fmt.Errorf("acquire project lock: %w", err)
	}
	defer release()

	project, err := s.Projects.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("project %d not found", projectID)
		}
		return nil, domain.Persistence("load project", err)
	}
	if project.Status != domain.ProjectStatusPending {
		return nil, domain.InvalidState("project %d is already %s", project.ID, project.Status)
	}
	docs, err := s.Projects.ListDocuments(ctx, project.ID)
	if err != nil {
		return nil, domain.Persistence("list documents", err)
	}
	if len(docs) == 0 {
		return nil, domain.Validation("project %d has no documents to verify", project.ID)
	}

	res, err := s.Scorer.Score(ctx, scorer.Input{Project: *project, Documents: docs})
	if err != nil {
		log.Error().Err(err).Uint("project_id", project.ID).Msg("verification scoring failed")
		return nil, fmt.Errorf("score project: %w", err)
	}
	approved := res.Score >= s.threshold()

	v := &domain.Verification{
		ProjectID:       project.ID,
		VerifierAddress: verifier,
		Score:           res.Score,
		Narrative:       res.Narrative,
		Approved:        approved,
		Scorer:          res.Scorer,
	}
	if err := s.Projects.CreateVerification(ctx, v); err != nil {
		return nil, domain.Persistence("create verification", err)
	}

	score := res.Score
	project.VerificationScore = &score
	project.Status = domain.ProjectStatusRejected
	if approved {
		project.Status = domain.ProjectStatusVerified
	}
	if err := s.Projects.UpdateProject(ctx, project); err != nil {
		return nil, domain.Persistence("update project", err)
	}

	out := &Outcome{Verification: v, Project: project}
	if !approved {
		s.record(ctx, project.OwnerAddress, domain.ActionProjectRejected, nil, map[string]interface{}{
			"projectId": project.ID, "score": res.Score, "verifierAddress": verifier,
		})
		return out, nil
	}
	s.record(ctx, project.OwnerAddress, domain.ActionProjectVerified, nil, map[string]interface{}{
		"projectId": project.ID, "score": res.Score, "verifierAddress": verifier,
	})

	receipt, err := s.Ledger.Mint(ctx, project.OwnerAddress, project.ID, project.EstimatedCredits)
	if err != nil {
		return nil, fmt.Errorf("mint credits: %w", err)
	}
	credit := &domain.CarbonCredit{
		ProjectID:       project.ID,
		OwnerAddress:    project.OwnerAddress,
		Amount:          project.EstimatedCredits,
		RetiredAmount:   decimal.Zero,
		TokenID:         receipt.TokenID,
		ContractAddress: receipt.ContractAddress,
		ChainID:         receipt.ChainID,
		TxHash:          receipt.TxHash,
	}
	if err := s.Credits.CreateCredit(ctx, credit); err != nil {
		return nil, domain.Persistence("create carbon credit", err)
	}
	s.record(ctx, project.OwnerAddress, domain.ActionCreditsMinted, &credit.ID, map[string]interface{}{
		"projectId": project.ID, "amount": credit.Amount.String(), "tokenId": credit.TokenID, "txHash": credit.TxHash,
	})
	out.Credit = credit
	return out, nil
}

func (s *Service) History(ctx context.Context, projectID uint) ([]domain.Verification, error) {
	if _, err := s.Projects.GetProject(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("project %d not found", projectID)
		}
		return nil, domain.Persistence("load project", err)
	}
	items, err := s.Projects.ListVerifications(ctx, projectID)
	if err != nil {
		return nil, domain.Persistence("list verifications", err)
	}
	if items == nil {
		items = []domain.Verification{}
	}
	return items, nil
}

func (s *Service) record(ctx context.Context, user, action string, creditID *uint, details map[string]interface{}) {
	if s.Activity == nil {
		return
	}
	_ = s.Activity.Record(ctx, activity.Entry{UserAddress: user, ActionType: action, CreditID: creditID, Details: details})
}
