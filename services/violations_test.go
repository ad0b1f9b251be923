package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Jwl06/civicledger360/analysis"
	"github.com/Jwl06/civicledger360/models"
	"github.com/Jwl06/civicledger360/natsserver"
	"github.com/Jwl06/civicledger360/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []natsserver.Event
	err    error
}

func (p *recordingPublisher) PublishEvent(ev natsserver.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fakeChain struct {
	err   error
	calls int
}

func (f *fakeChain) Review(ctx context.Context, id int64, in models.ReviewInput) (models.Violation, error) {
	f.calls++
	if f.err != nil {
		return models.Violation{}, f.err
	}
	return models.Violation{ID: id, Status: in.Decision, Source: models.SourceChain}, nil
}

type fakeVerifier struct{ err error }

func (f fakeVerifier) Verify(ctx context.Context, url string) error { return f.err }

func ptr[T any](v T) *T { return &v }

func validInput() SubmitInput {
	return SubmitInput{
		Reporter:      "0xA1",
		VehicleID:     ptr(int64(1)),
		ViolationType: ptr(models.ViolationHelmet),
		Description:   "no helmet",
	}
}

func newService(t *testing.T, opts ...Option) (*ViolationService, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return NewViolationService(st, analysis.NewRandomClassifier(), zap.NewNop(), opts...), st
}

func TestSubmitScenario(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newService(t, WithPublisher(pub))

	v, err := svc.Submit(context.Background(), validInput())
	require.NoError(t, err)

	assert.NotZero(t, v.ID)
	assert.Equal(t, models.ViolationPending, v.Status)
	assert.Equal(t, models.ViolationHelmet, v.ViolationType)
	assert.True(t, v.FineAmount.IsZero())
	assert.False(t, v.IsPaid)
	assert.Nil(t, v.Reviewer)
	assert.Nil(t, v.ReviewTimestamp)
	assert.Equal(t, models.DefaultLocation, v.Location)
	require.NotNil(t, v.AIAnalysis)
	assert.GreaterOrEqual(t, v.AIAnalysis.Confidence, analysis.MinConfidence)
	assert.LessOrEqual(t, v.AIAnalysis.Confidence, analysis.MaxConfidence)
	assert.Equal(t, analysis.RiskFor(v.AIAnalysis.Confidence), v.AIAnalysis.RiskLevel)
	assert.Equal(t, []string{natsserver.EventSubmitted}, pub.types())
}

func TestSubmitDuplicatesCreateDistinctRecords(t *testing.T) {
	svc, _ := newService(t)
	a, err := svc.Submit(context.Background(), validInput())
	require.NoError(t, err)
	b, err := svc.Submit(context.Background(), validInput())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SubmitInput)
		field  string
	}{
		{"missing reporter", func(in *SubmitInput) { in.Reporter = "" }, "reporter"},
		{"blank reporter", func(in *SubmitInput) { in.Reporter = "   " }, "reporter"},
		{"missing vehicle", func(in *SubmitInput) { in.VehicleID = nil }, "vehicleId"},
		{"missing type", func(in *SubmitInput) { in.ViolationType = nil }, "violationType"},
		{"unknown type", func(in *SubmitInput) { in.ViolationType = ptr(models.ViolationType("JAYWALKING")) }, "violationType"},
		{"missing description", func(in *SubmitInput) { in.Description = "" }, "description"},
		{"blank description", func(in *SubmitInput) { in.Description = " \t" }, "description"},
		{"evidence selected but not uploaded", func(in *SubmitInput) { in.EvidenceAttached = true }, "evidenceUrl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st := newService(t)
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Submit(context.Background(), in)
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)

			all, err := st.ListViolations(context.Background(), store.Filter{})
			require.NoError(t, err)
			assert.Empty(t, all, "store must be unchanged")
		})
	}
}

func TestSubmitVerifiesEvidence(t *testing.T) {
	missing := models.NewValidationError("evidenceUrl", "gone")
	svc, st := newService(t, WithEvidence(fakeVerifier{err: missing}))

	in := validInput()
	in.EvidenceURL = "http://localhost:3001/uploads/violation-x.png"
	in.EvidenceAttached = true
	_, err := svc.Submit(context.Background(), in)
	assert.ErrorIs(t, err, missing)

	all, _ := st.ListViolations(context.Background(), store.Filter{})
	assert.Empty(t, all)
}

func TestSubmitPublishFailureDoesNotFail(t *testing.T) {
	svc, _ := newService(t, WithPublisher(&recordingPublisher{err: errors.New("nats down")}))
	_, err := svc.Submit(context.Background(), validInput())
	assert.NoError(t, err)
}

func TestReviewScenario(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newService(t, WithPublisher(pub))
	ctx := context.Background()

	v, err := svc.Submit(ctx, validInput())
	require.NoError(t, err)

	fine := decimal.NewFromInt(500)
	approved, err := svc.Review(ctx, v.ID, models.ReviewInput{Reviewer: "0xOfficer", Decision: models.ViolationApproved, FineAmount: &fine})
	require.NoError(t, err)
	assert.Equal(t, models.ViolationApproved, approved.Status)
	assert.True(t, fine.Equal(approved.FineAmount))
	require.NotNil(t, approved.Reviewer)
	assert.Equal(t, "0xOfficer", *approved.Reviewer)
	assert.NotNil(t, approved.ReviewTimestamp)

	_, err = svc.Review(ctx, v.ID, models.ReviewInput{Reviewer: "0xOfficer", Decision: models.ViolationRejected})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	stored, err := svc.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ViolationApproved, stored.Status)
	assert.True(t, fine.Equal(stored.FineAmount))

	assert.Equal(t, []string{natsserver.EventSubmitted, natsserver.EventReviewed}, pub.types())
}

func TestReviewErrors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Review(ctx, 404, models.ReviewInput{Reviewer: "0xO", Decision: models.ViolationApproved})
	assert.ErrorIs(t, err, models.ErrNotFound)

	v, err := svc.Submit(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.Review(ctx, v.ID, models.ReviewInput{Reviewer: "0xO", Decision: models.ViolationPending})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)

	stored, err := svc.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ViolationPending, stored.Status, "failed review leaves the record pending")
}

func TestReviewBoth(t *testing.T) {
	ctx := context.Background()
	approve := models.ReviewInput{Reviewer: "0xO", Decision: models.ViolationApproved}

	t.Run("disabled", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.ReviewBoth(ctx, 1, approve)
		assert.ErrorIs(t, err, ErrChainDisabled)
	})

	t.Run("both succeed", func(t *testing.T) {
		chain := &fakeChain{}
		svc, _ := newService(t, WithChain(chain))
		v, err := svc.Submit(ctx, validInput())
		require.NoError(t, err)

		got, err := svc.ReviewBoth(ctx, v.ID, approve)
		require.NoError(t, err)
		assert.Equal(t, models.ViolationApproved, got.Status)
		assert.Equal(t, 1, chain.calls)
	})

	t.Run("chain fails", func(t *testing.T) {
		rpcErr := &models.ExternalServiceError{Service: "chain", Err: errors.New("user rejected transaction")}
		svc, _ := newService(t, WithChain(&fakeChain{err: rpcErr}))
		v, err := svc.Submit(ctx, validInput())
		require.NoError(t, err)

		_, err = svc.ReviewBoth(ctx, v.ID, approve)
		var partial *models.PartialReviewError
		require.ErrorAs(t, err, &partial)
		assert.True(t, partial.BackendApplied)
		assert.False(t, partial.ChainApplied)
		assert.ErrorIs(t, err, rpcErr)

		stored, _ := svc.Get(ctx, v.ID)
		assert.Equal(t, models.ViolationApproved, stored.Status, "backend side stays changed")
	})

	t.Run("backend already reviewed", func(t *testing.T) {
		svc, _ := newService(t, WithChain(&fakeChain{}))
		v, err := svc.Submit(ctx, validInput())
		require.NoError(t, err)
		_, err = svc.Review(ctx, v.ID, approve)
		require.NoError(t, err)

		_, err = svc.ReviewBoth(ctx, v.ID, approve)
		var partial *models.PartialReviewError
		require.ErrorAs(t, err, &partial)
		assert.True(t, partial.ChainApplied)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("invalid input touches neither store", func(t *testing.T) {
		chain := &fakeChain{}
		svc, _ := newService(t, WithChain(chain))
		_, err := svc.ReviewBoth(ctx, 1, models.ReviewInput{Decision: models.ViolationApproved})
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Zero(t, chain.calls)
	})
}

func TestReviewChainOnly(t *testing.T) {
	ctx := context.Background()
	approve := models.ReviewInput{Reviewer: "0xO", Decision: models.ViolationApproved}

	t.Run("disabled", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.ReviewChain(ctx, 7, approve)
		assert.ErrorIs(t, err, ErrChainDisabled)
	})

	t.Run("record only on chain", func(t *testing.T) {
		chain := &fakeChain{}
		pub := &recordingPublisher{}
		svc, st := newService(t, WithChain(chain), WithPublisher(pub))

		got, err := svc.ReviewChain(ctx, 7, approve)
		require.NoError(t, err)
		assert.Equal(t, models.ViolationApproved, got.Status)
		assert.Equal(t, models.SourceChain, got.Source)
		assert.Equal(t, 1, chain.calls)
		assert.Equal(t, []string{natsserver.EventReviewed}, pub.types())

		_, err = st.GetViolation(ctx, 7)
		assert.ErrorIs(t, err, models.ErrNotFound, "backend store untouched")
	})

	t.Run("chain error passes through", func(t *testing.T) {
		rpcErr := &models.ExternalServiceError{Service: "chain", Err: errors.New("nonce too low")}
		svc, _ := newService(t, WithChain(&fakeChain{err: rpcErr}))
		_, err := svc.ReviewChain(ctx, 7, approve)
		assert.ErrorIs(t, err, rpcErr)
		var partial *models.PartialReviewError
		assert.False(t, errors.As(err, &partial))
	})

	t.Run("invalid input never reaches the chain", func(t *testing.T) {
		chain := &fakeChain{}
		svc, _ := newService(t, WithChain(chain))
		_, err := svc.ReviewChain(ctx, 7, models.ReviewInput{Reviewer: "0xO", Decision: models.ViolationPending})
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Zero(t, chain.calls)
	})
}

func TestReviewOnDispatchesByTarget(t *testing.T) {
	ctx := context.Background()
	approve := models.ReviewInput{Reviewer: "0xO", Decision: models.ViolationApproved}
	chain := &fakeChain{}
	svc, _ := newService(t, WithChain(chain))
	v, err := svc.Submit(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.ReviewOn(ctx, TargetChain, v.ID, approve)
	require.NoError(t, err)
	stored, _ := svc.Get(ctx, v.ID)
	assert.Equal(t, models.ViolationPending, stored.Status)

	_, err = svc.ReviewOn(ctx, TargetBackend, v.ID, approve)
	require.NoError(t, err)
	assert.Equal(t, 1, chain.calls)

	for in, want := range map[string]ReviewTarget{"": TargetBackend, "Chain": TargetChain, " both ": TargetBoth} {
		got, err := ParseReviewTarget(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err = ParseReviewTarget("ledger")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "target", verr.Field)
}

func TestStatisticsAndReporterSummary(t *testing.T) {
	fixed := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	svc, _ := newService(t, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	ids := make([]int64, 3)
	for i := range ids {
		v, err := svc.Submit(ctx, validInput())
		require.NoError(t, err)
		ids[i] = v.ID
	}
	other := validInput()
	other.Reporter = "0xB2"
	other.ViolationType = ptr(models.ViolationSpeeding)
	_, err := svc.Submit(ctx, other)
	require.NoError(t, err)

	fine := decimal.NewFromInt(300)
	_, err = svc.Review(ctx, ids[0], models.ReviewInput{Reviewer: "0xO", Decision: models.ViolationApproved, FineAmount: &fine})
	require.NoError(t, err)
	_, err = svc.Review(ctx, ids[1], models.ReviewInput{Reviewer: "0xO", Decision: models.ViolationRejected, FineAmount: &fine})
	require.NoError(t, err)

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.Approved)
	assert.Equal(t, 1, stats.Rejected)
	assert.True(t, fine.Equal(stats.TotalFines))
	assert.Equal(t, 3, stats.ByType[models.ViolationHelmet])
	assert.Equal(t, 1, stats.ByType[models.ViolationSpeeding])
	assert.Equal(t, 0, stats.ByType[models.ViolationOther])

	sum, err := svc.ReporterSummary(ctx, "0xa1")
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.Approved)
	assert.Equal(t, 1, sum.Rejected)
	assert.Equal(t, 1, sum.Pending)
	assert.Equal(t, TokensPerApprovedReport, sum.TokensEarned)
	assert.True(t, fine.Equal(sum.TotalFines))

	_, err = svc.ReporterSummary(ctx, " ")
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}
