package service

import (
	"context"
	"fmt"
	"time"

	"github.com/medsched/confirmlink/internal/domain"
	"github.com/medsched/confirmlink/internal/repo/postgres"
	"github.com/medsched/confirmlink/internal/tenant"
	"github.com/medsched/confirmlink/internal/utils"
	"github.com/medsched/confirmlink/pkg/events"
	"github.com/medsched/confirmlink/pkg/logger"
)

// ConfirmationService is the link resolver and confirmation state machine.
type ConfirmationService interface {
	ResolveLink(ctx context.Context, tenantID, token string) (*domain.LinkResolution, error)
	ApplyTransition(ctx context.Context, tenantID, token, newStatus string) (domain.TransitionResult, error)
}

type confirmationService struct {
	registry *tenant.Registry
	repo     postgres.ConfirmationRepo
	bus      events.Publisher
	metrics  *Metrics
	now      func() time.Time
}

func NewConfirmationService(
	registry *tenant.Registry,
	repo postgres.ConfirmationRepo,
	bus events.Publisher,
	metrics *Metrics,
) ConfirmationService {
	return NewConfirmationServiceWithClock(registry, repo, bus, metrics, time.Now)
}

// NewConfirmationServiceWithClock pins the clock used for link expiry.
func NewConfirmationServiceWithClock(
	registry *tenant.Registry,
	repo postgres.ConfirmationRepo,
	bus events.Publisher,
	metrics *Metrics,
	now func() time.Time,
) ConfirmationService {
	return &confirmationService{
		registry: registry,
		repo:     repo,
		bus:      bus,
		metrics:  metrics,
		now:      now,
	}
}

// ResolveLink fetches and classifies one confirmation record. Read-only;
// classification order is absent, expired, already acted, active.
func (s *confirmationService) ResolveLink(ctx context.Context, tenantID, token string) (*domain.LinkResolution, error) {
	tc, ok := s.registry.Resolve(tenantID)
	if !ok {
		logger.WarnContext(ctx, "Link resolution for unknown tenant", "tenant_id", tenantID)
		return nil, domain.ErrUnknownTenant
	}

	rec, err := s.repo.FetchDecrypted(ctx, tc, token)
	if err != nil {
		return nil, fmt.Errorf("fetch confirmation: %w", err)
	}

	res := s.classify(tc, rec)
	s.metrics.ObserveResolution(tc.ID, res.Outcome)
	return res, nil
}

func (s *confirmationService) classify(tc *tenant.Context, rec *domain.ConfirmationRecord) *domain.LinkResolution {
	if rec == nil {
		return &domain.LinkResolution{Outcome: domain.LinkInvalid}
	}
	if !s.dateInFuture(rec.AppointmentDate) {
		return &domain.LinkResolution{Outcome: domain.LinkExpired}
	}
	if rec.Status.Finalized() {
		return &domain.LinkResolution{Outcome: domain.LinkAlreadyActed, Status: rec.Status}
	}

	return &domain.LinkResolution{
		Outcome: domain.LinkActive,
		View: &domain.LinkView{
			TenantID:    tc.ID,
			TenantName:  tc.DisplayName,
			TenantLogo:  tc.LogoRef,
			Token:       rec.Token,
			PatientName: utils.CapitalizeName(rec.GivenName) + " " + utils.CapitalizeName(rec.FamilyName),
			Date:        rec.AppointmentDate.Format("02/01/2006"),
			Time:        utils.FormatStartTime(rec.StartTime),
		},
	}
}

// dateInFuture compares calendar dates only: a link for an appointment
// today or earlier is already expired.
func (s *confirmationService) dateInFuture(appointment time.Time) bool {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	appt := time.Date(appointment.Year(), appointment.Month(), appointment.Day(), 0, 0, 0, 0, time.UTC)
	return appt.After(today)
}

// ApplyTransition moves a record from unconfirmed to the target status
// with a single conditional write. At most one caller per token ever
// observes Committed.
func (s *confirmationService) ApplyTransition(ctx context.Context, tenantID, token, newStatus string) (domain.TransitionResult, error) {
	status, ok := domain.ParseTargetStatus(newStatus)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidStatus, newStatus)
	}

	tc, ok := s.registry.Resolve(tenantID)
	if !ok {
		logger.WarnContext(ctx, "Status update for unknown tenant", "tenant_id", tenantID)
		return "", domain.ErrUnknownTenant
	}

	committed, err := s.repo.UpdateStatusIfUnconfirmed(ctx, tc, token, status)
	if err != nil {
		return "", fmt.Errorf("apply transition: %w", err)
	}

	if committed {
		logger.InfoContext(ctx, "Confirmation status updated",
			"tenant", tc, "token", token, "new_status", status)
		s.metrics.ObserveTransition(tc.ID, status, domain.TransitionCommitted)
		s.publishActed(ctx, tc.ID, token, status)
		return domain.TransitionCommitted, nil
	}

	// Zero rows changed: either the token does not exist or the record
	// was finalized before our write.
	_, found, err := s.repo.GetStatus(ctx, tc, token)
	if err != nil {
		return "", fmt.Errorf("apply transition: %w", err)
	}
	if !found {
		s.metrics.ObserveTransition(tc.ID, status, domain.TransitionNotFound)
		return domain.TransitionNotFound, nil
	}

	s.metrics.ObserveTransition(tc.ID, status, domain.TransitionAlreadyActed)
	return domain.TransitionAlreadyActed, nil
}

// publishActed informs downstream notifiers about a committed transition.
// Delivery is best effort; the transition stands regardless.
func (s *confirmationService) publishActed(ctx context.Context, tenantID, token string, status domain.Status) {
	if s.bus == nil {
		return
	}

	subject := events.ConfirmationConfirmed
	if status == domain.StatusCancelled {
		subject = events.ConfirmationCancelled
	}

	event := events.ConfirmationActedEvent{
		TenantID:  tenantID,
		Token:     token,
		NewStatus: string(status),
		ActedAt:   s.now(),
	}

	if err := s.bus.Publish(ctx, subject, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish confirmation event",
			"error", err, "tenant_id", tenantID, "subject", subject)
	}
}
