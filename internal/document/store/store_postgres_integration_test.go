//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"regflow/internal/document/models"
	"regflow/internal/document/store"
	regmodels "regflow/internal/registration/models"
	"regflow/pkg/platform/sentinel"
	"regflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	notifier *store.Notifier
	cancel   context.CancelFunc
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))

	n, err := s.store.Listen(s.postgres.DSN, nil)
	s.Require().NoError(err)
	s.notifier = n
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() { _ = n.Run(ctx) }()
}

func (s *PostgresStoreSuite) TearDownSuite() {
	s.cancel()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "registration_documents"))
}

func pendingRecord(owner string) *models.Record {
	return &models.Record{
		OwnerID: owner,
		Registration: regmodels.Record{
			BrokerID:      "ib",
			RequestTypeID: regmodels.RequestTypeCategorizeClients,
			Investors:     []regmodels.Investor{{ClientCategory: regmodels.ClientCategoryProfessional}},
		},
		LicenseNumber:   "7654321",
		RegulatorNumber: "87654321",
		Status:          models.StatusPending,
	}
}

func (s *PostgresStoreSuite) TestRoundTripAndPatch() {
	ctx := context.Background()
	id, err := s.store.Create(ctx, pendingRecord("owner-1"))
	s.Require().NoError(err)

	rec, err := s.store.Get(ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, rec.Status)
	s.Require().Len(rec.Registration.Investors, 1)
	s.Equal(regmodels.ClientCategoryProfessional, rec.Registration.Investors[0].ClientCategory)

	paid := models.StatusPaid
	now := time.Now().UTC().Truncate(time.Millisecond)
	s.Require().NoError(s.store.Update(ctx, id, models.Patch{Status: &paid, PaymentCompletedAt: &now}))

	rec, err = s.store.Get(ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusPaid, rec.Status)
	s.Require().NotNil(rec.PaymentCompletedAt)
	s.WithinDuration(now, *rec.PaymentCompletedAt, time.Millisecond)
	s.Equal("", rec.ReviewNotes)
}

func (s *PostgresStoreSuite) TestNotFound() {
	ctx := context.Background()
	_, err := s.store.Get(ctx, "not-a-uuid")
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.Get(ctx, "0b8f8d53-8ad4-4f52-9a56-5c8d7f1c0a11")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Update(ctx, "0b8f8d53-8ad4-4f52-9a56-5c8d7f1c0a11", models.Patch{}), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestQuery() {
	ctx := context.Background()
	_, err := s.store.Create(ctx, pendingRecord("owner-1"))
	s.Require().NoError(err)
	other := pendingRecord("owner-2")
	other.Status = models.StatusRejected
	_, err = s.store.Create(ctx, other)
	s.Require().NoError(err)

	active, err := s.store.Query(ctx, models.Filter{OwnerID: "owner-1", Statuses: models.ActiveStatuses})
	s.Require().NoError(err)
	s.Len(active, 1)

	none, err := s.store.Query(ctx, models.Filter{OwnerID: "owner-2", Statuses: models.ActiveStatuses})
	s.Require().NoError(err)
	s.Empty(none)

	all, err := s.store.Query(ctx, models.Filter{})
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *PostgresStoreSuite) TestSubscribeReceivesNotifiedChanges() {
	ctx := context.Background()
	id, err := s.store.Create(ctx, pendingRecord("owner-1"))
	s.Require().NoError(err)

	var (
		mu       sync.Mutex
		statuses []models.Status
	)
	cancel, err := s.store.Subscribe(ctx, id, func(rec *models.Record, err error) {
		if err != nil {
			return
		}
		mu.Lock()
		statuses = append(statuses, rec.Status)
		mu.Unlock()
	})
	s.Require().NoError(err)
	defer cancel()

	approved := models.StatusApproved
	s.Require().NoError(s.store.Update(ctx, id, models.Patch{Status: &approved}))

	s.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) >= 2 && statuses[len(statuses)-1] == models.StatusApproved
	}, 5*time.Second, 50*time.Millisecond)

	mu.Lock()
	s.Equal(models.StatusPending, statuses[0])
	mu.Unlock()
}
