package subscriber

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/subscriber-gateway/internal/domain"
	"github.com/ignite/subscriber-gateway/internal/pkg/distlock"
	"github.com/ignite/subscriber-gateway/internal/pkg/logger"
	"github.com/ignite/subscriber-gateway/internal/pkg/metrics"
	"github.com/ignite/subscriber-gateway/internal/validation"
)

// Service runs the subscriber workflows against the CRM. It is safe for
// concurrent use; every call is request-scoped.
type Service struct {
	gateway Gateway
	index   Index
	locker  distlock.Locker
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLocker serializes creates per email address across processes.
func WithLocker(l distlock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithMetrics counts outcomes per operation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the clock used for the minimum-age rule.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a subscriber service. A nil index selects a MemoryIndex.
func NewService(gateway Gateway, index Index, opts ...Option) *Service {
	if index == nil {
		index = NewMemoryIndex()
	}
	s := &Service{gateway: gateway, index: index, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func createLockKey(email string) string {
	return "subscriber:create:" + email
}

func (s *Service) record(operation string, out *Outcome) *Outcome {
	s.metrics.IncrementOutcome(operation, string(out.Kind))
	return out
}

// =============================================================================
// CREATE
// =============================================================================

// Create registers a new subscriber after field validation and a duplicate
// check against the CRM's current subscribers.
func (s *Service) Create(ctx context.Context, in domain.SubscriberInput) *Outcome {
	return s.record("create", s.lockedCreate(ctx, in))
}

func (s *Service) lockedCreate(ctx context.Context, in domain.SubscriberInput) *Outcome {
	if errs := validation.ValidateNewSubscriber(in, s.now()); !errs.Empty() {
		logger.Info("subscriber: create rejected", "email", in.EmailAddress, "fields", errs.Len())
		return invalid(errs)
	}

	if s.locker == nil {
		return s.create(ctx, in)
	}

	var out *Outcome
	err := distlock.WithLock(ctx, s.locker.Lock(createLockKey(in.EmailAddress)), func() error {
		out = s.create(ctx, in)
		return nil
	})
	if err != nil {
		logger.Warn("subscriber: create lock not acquired", "email", in.EmailAddress, "error", err)
		return failed(MsgCreateFailed, fmt.Errorf("%w: %w", ErrLockNotAcquired, err))
	}
	return out
}

func (s *Service) create(ctx context.Context, in domain.SubscriberInput) *Outcome {
	existing, ok := s.gateway.ListSubscribers(ctx)
	if !ok {
		logger.Warn("subscriber: existing subscribers unavailable, create aborted", "email", in.EmailAddress)
		return failed(MsgCreateFailed, ErrUpstreamUnavailable)
	}

	errs := validation.NewErrorSet()
	validation.IsDuplicateEmail(errs, in.EmailAddress, domain.Emails(existing))
	if !errs.Empty() {
		logger.Info("subscriber: duplicate email", "email", in.EmailAddress)
		return invalid(errs)
	}

	created, ok := s.gateway.CreateSubscriber(ctx, in.ToNewSubscriber())
	if !ok {
		return failed(MsgCreateFailed, ErrUpstreamUnavailable)
	}
	if created == nil {
		created = &domain.Subscriber{}
	}
	if created.EmailAddress == "" {
		created.EmailAddress = in.EmailAddress
	}

	s.remember(ctx, created.ID, in.EmailAddress)
	logger.Info("subscriber: created", "email", in.EmailAddress, "id", created.ID.String())

	out := succeeded(MsgCreated)
	out.Subscriber = created
	return out
}

// remember records (id, email) in the index. Failures are logged only: the
// index is an accelerator and the CRM stays the source of truth.
func (s *Service) remember(ctx context.Context, id domain.ID, email string) {
	if id == "" {
		return
	}
	if err := s.index.Record(ctx, id, email); err != nil {
		logger.Warn("subscriber: index record failed", "email", email, "id", id.String(), "error", err)
	}
}

// =============================================================================
// UPDATE LISTS
// =============================================================================

// UpdateLists replaces the marketing lists of the subscriber with email.
// rawLists is a comma-separated list of catalog names.
func (s *Service) UpdateLists(ctx context.Context, email, rawLists string) *Outcome {
	return s.record("update_lists", s.updateLists(ctx, email, rawLists))
}

func (s *Service) updateLists(ctx context.Context, email, rawLists string) *Outcome {
	if errs := validation.ValidateEmail(email); !errs.Empty() {
		return invalid(errs)
	}

	catalog, ok := s.gateway.ListMarketingLists(ctx)
	if len(catalog) == 0 {
		out := &Outcome{Kind: KindNoLists, Message: MsgNoLists}
		if !ok {
			out.Err = ErrUpstreamUnavailable
		}
		return out
	}

	names := validation.ParseListNames(rawLists)
	errs := validation.NewErrorSet()
	validation.ListsExist(errs, names, catalog)
	if !errs.Empty() {
		return invalid(errs)
	}

	sub := s.FindByEmail(ctx, email)
	if sub == nil {
		return &Outcome{Kind: KindNotFound, Message: MsgNotFound, Err: ErrNotFound}
	}
	if !sub.MarketingConsent {
		logger.Info("subscriber: list update without consent", "email", email)
		return &Outcome{Kind: KindConsentDenied, Message: MsgConsentDenied, Err: ErrConsentDenied}
	}

	ids := ResolveListIDs(names, catalog)
	if len(ids) == 0 || !s.gateway.UpdateSubscriberLists(ctx, email, ids) {
		return failed(MsgUpdateFailed, ErrUpstreamUnavailable)
	}

	logger.Info("subscriber: lists updated", "email", email, "lists", len(ids))
	return succeeded(MsgListsUpdated)
}

// ResolveListIDs maps submitted names to catalog ids. Matching is exact and
// case-sensitive; ids come back in catalog order without duplicates.
func ResolveListIDs(names []string, catalog []domain.MarketingList) []domain.ID {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	seen := make(map[domain.ID]bool)
	var ids []domain.ID
	for _, l := range catalog {
		if !wanted[l.Name] || seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		ids = append(ids, l.ID)
	}
	return ids
}

// =============================================================================
// ENQUIRY
// =============================================================================

// SubmitEnquiry files a free-text enquiry for the subscriber with email.
// An unknown subscriber is an action failure, not a validation error.
func (s *Service) SubmitEnquiry(ctx context.Context, email, enquiry string) *Outcome {
	return s.record("enquiry", s.submitEnquiry(ctx, email, enquiry))
}

func (s *Service) submitEnquiry(ctx context.Context, email, enquiry string) *Outcome {
	if errs := validation.ValidateEnquiry(email, enquiry); !errs.Empty() {
		return invalid(errs)
	}

	sub := s.FindByEmail(ctx, email)
	if sub == nil {
		return failed(MsgNotFound, ErrNotFound)
	}

	if !s.gateway.CreateEnquiry(ctx, sub.ID, enquiry) {
		return failed(MsgEnquiryFailed, ErrUpstreamUnavailable)
	}

	logger.Info("subscriber: enquiry submitted", "email", email, "id", sub.ID.String())
	return succeeded(MsgEnquiryCreated)
}

// =============================================================================
// LOOKUP
// =============================================================================

// FindByEmail returns the subscriber whose email matches exactly, or nil.
// The index is consulted first; a miss, a stale entry or an index error
// falls back to scanning every subscriber. Upstream failures read as nil.
func (s *Service) FindByEmail(ctx context.Context, email string) *domain.Subscriber {
	id, found, err := s.index.LookupID(ctx, email)
	switch {
	case err != nil:
		logger.Warn("subscriber: index lookup failed", "email", email, "error", err)
	case found:
		if sub, ok := s.gateway.GetSubscriber(ctx, id); ok && sub != nil && sub.EmailAddress == email {
			return sub
		}
		logger.Debug("subscriber: index entry stale", "email", email, "id", id.String())
	}

	subs, ok := s.gateway.ListSubscribers(ctx)
	if !ok {
		return nil
	}
	for i := range subs {
		if subs[i].EmailAddress == email {
			sub := subs[i]
			s.remember(ctx, sub.ID, email)
			return &sub
		}
	}
	return nil
}

// Ping checks that the CRM is reachable.
func (s *Service) Ping(ctx context.Context) *Outcome {
	if !s.gateway.Ping(ctx) {
		return s.record("ping", failed(MsgPingFailed, ErrUpstreamUnavailable))
	}
	return s.record("ping", succeeded(MsgPingOK))
}
