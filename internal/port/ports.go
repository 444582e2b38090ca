// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
)

// TransactionStore reads a user's transactions inside an inclusive date window.
type TransactionStore interface {
	ListTransactions(ctx context.Context, userID string, window domain.DateWindow) ([]domain.Transaction, error)
}

// ProfileStore lists the profiles eligible for scheduled reports.
type ProfileStore interface {
	ListRecipients(ctx context.Context) ([]domain.Profile, error)
}

// Store is the full data backend (Supabase PostgREST or direct Postgres).
type Store interface {
	TransactionStore
	ProfileStore
	Ping(ctx context.Context) error
}

// Dispatcher delivers text to a phone number through the messaging provider.
// A returned error means the provider could not be reached or answered
// unintelligibly; an explicit rejection comes back as SendResult.Status=false.
type Dispatcher interface {
	Send(ctx context.Context, target, message string) (*domain.SendResult, error)
	Device(ctx context.Context) (*domain.DeviceStatus, error)
}

// Throttle paces outbound dispatches.
type Throttle interface {
	Wait(ctx context.Context) error
}

// DeliveryLedger remembers which (user, period) pairs were already delivered.
type DeliveryLedger interface {
	WasDelivered(ctx context.Context, userID, periodKey string) (bool, error)
	RecordDelivery(ctx context.Context, userID, periodKey string, kind domain.ReportKind, messageID string) error
}

// EventPublisher emits dispatch outcomes to downstream consumers.
type EventPublisher interface {
	PublishDispatch(ctx context.Context, event domain.DispatchEvent) error
}

// JobTrigger asks the report endpoints to run a job.
type JobTrigger interface {
	Trigger(ctx context.Context, kind domain.ReportKind) (*domain.JobResult, error)
}
