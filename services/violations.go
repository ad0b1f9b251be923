// Package services holds the violation workflow and the live event feed
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Jwl06/civicledger360/analysis"
	"github.com/Jwl06/civicledger360/models"
	"github.com/Jwl06/civicledger360/natsserver"
	"github.com/Jwl06/civicledger360/store"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TokensPerApprovedReport is the CIVIC reward for each upheld report.
const TokensPerApprovedReport = 10

// ReviewTarget selects which store a review is written to.
type ReviewTarget string

const (
	TargetBackend ReviewTarget = "backend"
	TargetChain   ReviewTarget = "chain"
	TargetBoth    ReviewTarget = "both"
)

// ParseReviewTarget accepts backend, chain or both in any case. Empty means backend.
func ParseReviewTarget(s string) (ReviewTarget, error) {
	switch t := ReviewTarget(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TargetBackend, nil
	case TargetBackend, TargetChain, TargetBoth:
		return t, nil
	default:
		return "", models.NewValidationError("target", "target must be backend, chain or both, got %q", s)
	}
}

// ReviewOn dispatches a review to the stores named by target.
func (s *ViolationService) ReviewOn(ctx context.Context, target ReviewTarget, id int64, in models.ReviewInput) (models.Violation, error) {
	switch target {
	case TargetChain:
		return s.ReviewChain(ctx, id, in)
	case TargetBoth:
		return s.ReviewBoth(ctx, id, in)
	default:
		return s.Review(ctx, id, in)
	}
}

// ErrChainDisabled is returned for on-chain reviews when no contract is configured.
var ErrChainDisabled = errors.New("chain review is not configured")

// ChainReviewer reviews the on-chain copy of a violation.
type ChainReviewer interface {
	Review(ctx context.Context, id int64, in models.ReviewInput) (models.Violation, error)
}

// EvidenceVerifier checks that an evidence locator resolves.
type EvidenceVerifier interface {
	Verify(ctx context.Context, url string) error
}

// SubmitInput is a citizen report.
type SubmitInput struct {
	Reporter         string                `json:"reporter" validate:"required"`
	VehicleID        *int64                `json:"vehicleId" validate:"required"`
	ViolationType    *models.ViolationType `json:"violationType" validate:"required"`
	Description      string                `json:"description" validate:"required"`
	Location         string                `json:"location"`
	EvidenceURL      string                `json:"evidenceUrl"`
	EvidenceAttached bool                  `json:"evidenceAttached"`
	BlockchainTxHash string                `json:"blockchainTxHash"`
}

// ReporterSummary is a reporter's record across all their reports.
type ReporterSummary struct {
	Reporter     string          `json:"reporter"`
	Total        int             `json:"total"`
	Pending      int             `json:"pending"`
	Approved     int             `json:"approved"`
	Rejected     int             `json:"rejected"`
	TotalFines   decimal.Decimal `json:"totalFines"`
	TokensEarned int             `json:"tokensEarned"`
}

// ViolationService runs submission and review against the backend store.
type ViolationService struct {
	store      store.Store
	classifier analysis.Classifier
	evidence   EvidenceVerifier
	chain      ChainReviewer
	events     natsserver.Publisher
	validate   *validator.Validate
	log        *zap.Logger
	now        func() time.Time
}

// Option configures a ViolationService.
type Option func(*ViolationService)

// WithEvidence checks evidence locators before a report is stored.
func WithEvidence(v EvidenceVerifier) Option {
	return func(s *ViolationService) { s.evidence = v }
}

// WithChain enables on-chain reviews.
func WithChain(c ChainReviewer) Option {
	return func(s *ViolationService) { s.chain = c }
}

// WithPublisher publishes lifecycle events.
func WithPublisher(p natsserver.Publisher) Option {
	return func(s *ViolationService) { s.events = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *ViolationService) { s.now = now }
}

// NewViolationService creates the service.
func NewViolationService(st store.Store, classifier analysis.Classifier, log *zap.Logger, opts ...Option) *ViolationService {
	s := &ViolationService{
		store:      st,
		classifier: classifier,
		events:     natsserver.NopPublisher{},
		validate:   newValidator(),
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChainEnabled reports whether on-chain reviews are possible.
func (s *ViolationService) ChainEnabled() bool {
	return s.chain != nil
}

// Submit validates a report, attaches the AI analysis and stores it as PENDING.
// Nothing is stored when validation fails.
func (s *ViolationService) Submit(ctx context.Context, in SubmitInput) (models.Violation, error) {
	in.Reporter = strings.TrimSpace(in.Reporter)
	in.Description = strings.TrimSpace(in.Description)
	in.EvidenceURL = strings.TrimSpace(in.EvidenceURL)

	if err := s.validate.Struct(in); err != nil {
		return models.Violation{}, validationError(err)
	}
	if !in.ViolationType.Valid() {
		return models.Violation{}, models.NewValidationError("violationType", "unknown violation type %q", *in.ViolationType)
	}
	if in.EvidenceAttached && in.EvidenceURL == "" {
		return models.Violation{}, models.NewValidationError("evidenceUrl", "evidence upload must finish before the report is submitted")
	}
	if s.evidence != nil && in.EvidenceURL != "" {
		if err := s.evidence.Verify(ctx, in.EvidenceURL); err != nil {
			return models.Violation{}, err
		}
	}

	location := strings.TrimSpace(in.Location)
	if location == "" {
		location = models.DefaultLocation
	}

	ai := s.classifier.Analyze(*in.ViolationType, in.Description)
	v := models.Violation{
		Reporter:         in.Reporter,
		VehicleID:        *in.VehicleID,
		ViolationType:    *in.ViolationType,
		Description:      in.Description,
		Location:         location,
		EvidenceURL:      in.EvidenceURL,
		BlockchainTxHash: strings.TrimSpace(in.BlockchainTxHash),
		AIAnalysis:       &ai,
		Status:           models.ViolationPending,
		FineAmount:       decimal.Zero,
		IsPaid:           false,
		SubmittedAt:      s.now(),
	}

	created, err := s.store.CreateViolation(ctx, v)
	if err != nil {
		return models.Violation{}, err
	}

	s.log.Info("violation submitted",
		zap.Int64("id", created.ID),
		zap.String("reporter", created.Reporter),
		zap.String("type", string(created.ViolationType)),
		zap.Float64("confidence", ai.Confidence))
	s.publish(natsserver.EventSubmitted, created)
	return created, nil
}

// Review applies an officer decision to the backend record.
func (s *ViolationService) Review(ctx context.Context, id int64, in models.ReviewInput) (models.Violation, error) {
	now := s.now()
	updated, err := s.store.UpdateViolation(ctx, id, func(current models.Violation) (models.Violation, error) {
		return models.ApplyReview(current, in, now)
	})
	if err != nil {
		return models.Violation{}, err
	}

	s.log.Info("violation reviewed",
		zap.Int64("id", id),
		zap.String("status", string(updated.Status)),
		zap.String("reviewer", in.Reviewer),
		zap.String("fine", updated.FineAmount.String()))
	s.publish(natsserver.EventReviewed, updated)
	return updated, nil
}

// ReviewChain reviews only the on-chain record, for chain-only reports and for
// retrying the chain side after a partial dual review.
func (s *ViolationService) ReviewChain(ctx context.Context, id int64, in models.ReviewInput) (models.Violation, error) {
	if s.chain == nil {
		return models.Violation{}, ErrChainDisabled
	}
	if err := in.Validate(); err != nil {
		return models.Violation{}, err
	}

	updated, err := s.chain.Review(ctx, id, in)
	if err != nil {
		return models.Violation{}, err
	}

	s.log.Info("violation reviewed on chain",
		zap.Int64("id", id),
		zap.String("status", string(updated.Status)),
		zap.String("reviewer", in.Reviewer))
	s.publish(natsserver.EventReviewed, updated)
	return updated, nil
}

// ReviewBoth reviews the backend record and then the on-chain record. The stores
// are independent: when only one side changes, a *models.PartialReviewError says which.
func (s *ViolationService) ReviewBoth(ctx context.Context, id int64, in models.ReviewInput) (models.Violation, error) {
	if s.chain == nil {
		return models.Violation{}, ErrChainDisabled
	}
	if err := in.Validate(); err != nil {
		return models.Violation{}, err
	}

	backend, backendErr := s.Review(ctx, id, in)
	_, chainErr := s.chain.Review(ctx, id, in)

	switch {
	case backendErr == nil && chainErr == nil:
		return backend, nil
	case backendErr != nil && chainErr != nil:
		s.log.Warn("dual review failed on both stores", zap.Int64("id", id), zap.Error(backendErr), zap.NamedError("chainError", chainErr))
		return models.Violation{}, backendErr
	case backendErr == nil:
		s.log.Warn("dual review applied to backend only", zap.Int64("id", id), zap.Error(chainErr))
		return backend, &models.PartialReviewError{BackendApplied: true, Err: chainErr}
	default:
		s.log.Warn("dual review applied to chain only", zap.Int64("id", id), zap.Error(backendErr))
		return models.Violation{}, &models.PartialReviewError{ChainApplied: true, Err: backendErr}
	}
}

// Get returns one backend record.
func (s *ViolationService) Get(ctx context.Context, id int64) (models.Violation, error) {
	return s.store.GetViolation(ctx, id)
}

// List returns backend records matching f, newest first.
func (s *ViolationService) List(ctx context.Context, f store.Filter) ([]models.Violation, error) {
	return s.store.ListViolations(ctx, f)
}

// Statistics aggregates every backend record.
func (s *ViolationService) Statistics(ctx context.Context) (models.Statistics, error) {
	all, err := s.store.ListViolations(ctx, store.Filter{})
	if err != nil {
		return models.Statistics{}, err
	}
	return models.Summarize(all), nil
}

// ReporterSummary counts a reporter's reports and the tokens earned from upheld ones.
func (s *ViolationService) ReporterSummary(ctx context.Context, reporter string) (ReporterSummary, error) {
	reporter = strings.TrimSpace(reporter)
	if reporter == "" {
		return ReporterSummary{}, models.NewValidationError("address", "reporter address is required")
	}
	list, err := s.store.ListViolations(ctx, store.Filter{Reporter: reporter})
	if err != nil {
		return ReporterSummary{}, err
	}

	sum := ReporterSummary{Reporter: reporter, TotalFines: decimal.Zero}
	for _, v := range list {
		sum.Total++
		switch v.Status {
		case models.ViolationPending:
			sum.Pending++
		case models.ViolationApproved:
			sum.Approved++
			sum.TotalFines = sum.TotalFines.Add(v.FineAmount)
		case models.ViolationRejected:
			sum.Rejected++
		}
	}
	sum.TokensEarned = sum.Approved * TokensPerApprovedReport
	return sum, nil
}

func (s *ViolationService) publish(eventType string, v models.Violation) {
	ev := natsserver.Event{Type: eventType, Violation: v, At: s.now()}
	if err := s.events.PublishEvent(ev); err != nil {
		s.log.Warn("failed to publish violation event", zap.String("type", eventType), zap.Int64("id", v.ID), zap.Error(err))
	}
}
