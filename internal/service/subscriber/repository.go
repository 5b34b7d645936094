package subscriber

import (
	"context"

	"github.com/ignite/subscriber-gateway/internal/domain"
)

// Gateway is the CRM surface the workflow needs. A false ok means the call
// failed for any reason; the cause has already been logged.
type Gateway interface {
	ListSubscribers(ctx context.Context) ([]domain.Subscriber, bool)
	GetSubscriber(ctx context.Context, id domain.ID) (*domain.Subscriber, bool)
	ListMarketingLists(ctx context.Context) ([]domain.MarketingList, bool)
	CreateSubscriber(ctx context.Context, payload domain.NewSubscriber) (*domain.Subscriber, bool)
	UpdateSubscriberLists(ctx context.Context, email string, listIDs []domain.ID) bool
	CreateEnquiry(ctx context.Context, id domain.ID, message string) bool
	Ping(ctx context.Context) bool
}

// Index maps email addresses to CRM subscriber ids so lookups can skip the
// full subscriber scan.
type Index interface {
	// LookupID returns the id recorded for email. found is false on a miss.
	LookupID(ctx context.Context, email string) (id domain.ID, found bool, err error)

	// Record stores (id, email), replacing any id previously held for email.
	// Concurrent calls must not lose or corrupt entries.
	Record(ctx context.Context, id domain.ID, email string) error

	// Count returns the number of indexed emails.
	Count(ctx context.Context) (int, error)
}
