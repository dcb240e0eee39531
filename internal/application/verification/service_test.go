package verification

import (
	"context"
	"testing"

	"carbonmarket-backend/internal/application/activity"
	"carbonmarket-backend/internal/domain"
	"carbonmarket-backend/internal/infrastructure/chain"
	"carbonmarket-backend/internal/infrastructure/filestore"
	"carbonmarket-backend/internal/infrastructure/lock"
	"carbonmarket-backend/internal/infrastructure/scorer"
	"carbonmarket-backend/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedScorer struct{ score int }

func (f fixedScorer) Name() string { return "fixed" }
func (f fixedScorer) Score(ctx context.Context, in scorer.Input) (scorer.Result, error) {
	return scorer.Result{Score: f.score, Narrative: "ok", Scorer: "fixed"}, nil
}

func setupVerification(t *testing.T, score int) (*Service, *filestore.Store, *domain.Project) {
	t.Helper()
	store, err := filestore.Open("")
	require.NoError(t, err)
	ctx := context.Background()
	p := &domain.Project{OwnerAddress: "0xowner", Name: "Mangroves", EstimatedCredits: decimal.NewFromInt(1000), Status: domain.ProjectStatusPending}
	require.NoError(t, store.CreateProject(ctx, p))
	require.NoError(t, store.CreateDocument(ctx, &domain.Document{ProjectID: p.ID, FileName: "pdd.pdf", CID: "Qm1", Size: 10, ContentHash: "h"}))

	svc := &Service{
		Projects: store,
		Credits:  store,
		Scorer:   fixedScorer{score: score},
		Ledger:   chain.NewLedger("0x00000000000000000000000000000000000000cc", 80002),
		Activity: &activity.Service{Repo: store},
		Locker:   lock.NewMemory(),
	}
	return svc, store, p
}

func TestVerify_ApprovedMintsCredits(t *testing.T) {
	svc, store, p := setupVerification(t, 85)
	ctx := context.Background()

	out, err := svc.Verify(ctx, p.ID, "0xVerifier")
	require.NoError(t, err)
	assert.True(t, out.Verification.Approved)
	assert.Equal(t, domain.ProjectStatusVerified, out.Project.Status)
	require.NotNil(t, out.Project.VerificationScore)
	assert.Equal(t, 85, *out.Project.VerificationScore)
	require.NotNil(t, out.Credit)
	assert.True(t, out.Credit.Amount.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, "0xowner", out.Credit.OwnerAddress)
	assert.NotEmpty(t, out.Credit.TxHash)

	credits, err := store.ListCredits(ctx, repository.CreditFilter{ProjectID: p.ID})
	require.NoError(t, err)
	assert.Len(t, credits, 1)

	minted, err := store.ListActivities(ctx, repository.ActivityFilter{ActionType: domain.ActionCreditsMinted})
	require.NoError(t, err)
	assert.Len(t, minted, 1)

	_, err = svc.Verify(ctx, p.ID, "0xverifier")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	history, err := svc.History(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestVerify_BelowThresholdRejects(t *testing.T) {
	svc, store, p := setupVerification(t, 69)
	ctx := context.Background()

	out, err := svc.Verify(ctx, p.ID, "0xverifier")
	require.NoError(t, err)
	assert.False(t, out.Verification.Approved)
	assert.Equal(t, domain.ProjectStatusRejected, out.Project.Status)
	assert.Nil(t, out.Credit)

	credits, err := store.ListCredits(ctx, repository.CreditFilter{})
	require.NoError(t, err)
	assert.Empty(t, credits)
}

func TestVerify_Preconditions(t *testing.T) {
	svc, store, _ := setupVerification(t, 90)
	ctx := context.Background()

	_, err := svc.Verify(ctx, 42, "0xverifier")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	bare := &domain.Project{OwnerAddress: "0xo", Name: "bare", EstimatedCredits: decimal.NewFromInt(1), Status: domain.ProjectStatusPending}
	require.NoError(t, store.CreateProject(ctx, bare))
	_, err = svc.Verify(ctx, bare.ID, "0xverifier")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Verify(ctx, bare.ID, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestVerify_CustomApprovalScore(t *testing.T) {
	svc, _, p := setupVerification(t, 75)
	svc.ApprovalScore = 80
	out, err := svc.Verify(context.Background(), p.ID, "0xverifier")
	require.NoError(t, err)
	assert.False(t, out.Verification.Approved)
}
