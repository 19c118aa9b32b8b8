package workflow

import (
	"context"

	"regflow/internal/audit"
	docmodels "regflow/internal/document/models"
	"regflow/internal/payment"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks DocumentStore,StateStore,Charger

// DocumentStore is the external record store reviewers act on.
type DocumentStore interface {
	Create(ctx context.Context, rec *docmodels.Record) (docmodels.ID, error)
	Get(ctx context.Context, id docmodels.ID) (*docmodels.Record, error)
	Update(ctx context.Context, id docmodels.ID, patch docmodels.Patch) error
	Query(ctx context.Context, filter docmodels.Filter) ([]*docmodels.Record, error)
	Subscribe(ctx context.Context, id docmodels.ID, fn docmodels.Listener) (docmodels.CancelFunc, error)
}

// StateStore is the durable local store of a session's workflow snapshot.
// Load returns sentinel.ErrNotFound when nothing was saved.
type StateStore interface {
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	Save(ctx context.Context, sessionID string, snap Snapshot) error
	Clear(ctx context.Context, sessionID string) error
}

// Charger collects the registration fee.
type Charger interface {
	Charge(ctx context.Context, req payment.ChargeRequest) (*payment.Charge, error)
}

// Locker serializes submissions per owner across callers.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NumberIssuer assigns license and regulator numbers to a new submission.
type NumberIssuer interface {
	Issue(ctx context.Context) (license, regulator string, err error)
}

// AuditPublisher records workflow events. Failures are logged, never returned
// to the caller of a transition.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
