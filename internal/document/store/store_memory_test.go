package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"regflow/internal/document/models"
	regmodels "regflow/internal/registration/models"
	"regflow/pkg/platform/sentinel"
	"regflow/pkg/requestcontext"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
}

func newPendingRecord(owner string) *models.Record {
	return &models.Record{
		OwnerID:         owner,
		Registration:    regmodels.Record{BrokerID: "ib", RequestTypeID: "renew_license"},
		LicenseNumber:   "1234567",
		RegulatorNumber: "12345678",
		Status:          models.StatusPending,
	}
}

func (s *InMemoryStoreSuite) TestCreateGetUpdate() {
	id, err := s.store.Create(s.ctx, newPendingRecord("owner-1"))
	s.Require().NoError(err)
	s.NotEmpty(id)

	got, err := s.store.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, got.Status)
	s.Equal("ib", got.Registration.BrokerID)

	s.Run("returned records are copies", func() {
		got.Status = models.StatusPaid
		again, err := s.store.Get(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, again.Status)
	})

	s.Run("patch touches only set fields", func() {
		approved := models.StatusApproved
		notes := "documents in order"
		s.Require().NoError(s.store.Update(s.ctx, id, models.Patch{Status: &approved, ReviewNotes: &notes}))
		rec, err := s.store.Get(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, rec.Status)
		s.Equal(notes, rec.ReviewNotes)
		s.Equal("1234567", rec.LicenseNumber)
	})

	s.Run("missing records are not found", func() {
		_, err := s.store.Get(s.ctx, "missing")
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.ErrorIs(s.store.Update(s.ctx, "missing", models.Patch{}), sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestQueryFiltersByOwnerAndStatus() {
	_, err := s.store.Create(s.ctx, newPendingRecord("owner-1"))
	s.Require().NoError(err)
	rejected := newPendingRecord("owner-1")
	rejected.Status = models.StatusRejected
	_, err = s.store.Create(s.ctx, rejected)
	s.Require().NoError(err)
	_, err = s.store.Create(s.ctx, newPendingRecord("owner-2"))
	s.Require().NoError(err)

	active, err := s.store.Query(s.ctx, models.Filter{OwnerID: "owner-1", Statuses: models.ActiveStatuses})
	s.Require().NoError(err)
	s.Len(active, 1)

	all, err := s.store.Query(s.ctx, models.Filter{})
	s.Require().NoError(err)
	s.Len(all, 3)
}

func (s *InMemoryStoreSuite) TestSubscribe() {
	id, err := s.store.Create(s.ctx, newPendingRecord("owner-1"))
	s.Require().NoError(err)

	var (
		mu       sync.Mutex
		statuses []models.Status
		notFound int
	)
	cancel, err := s.store.Subscribe(s.ctx, id, func(rec *models.Record, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			notFound++
			return
		}
		statuses = append(statuses, rec.Status)
	})
	s.Require().NoError(err)
	s.Equal(1, s.store.SubscriberCount(id))

	approved := models.StatusApproved
	s.Require().NoError(s.store.Update(s.ctx, id, models.Patch{Status: &approved}))
	s.Require().NoError(s.store.Delete(s.ctx, id))

	mu.Lock()
	s.Equal([]models.Status{models.StatusPending, models.StatusApproved}, statuses)
	s.Equal(1, notFound)
	mu.Unlock()

	cancel()
	cancel()
	s.Equal(0, s.store.SubscriberCount(id))

	s.Run("subscribing to a missing record reports not found", func() {
		var gotErr error
		cancel, err := s.store.Subscribe(s.ctx, "missing", func(_ *models.Record, err error) { gotErr = err })
		s.Require().NoError(err)
		defer cancel()
		s.ErrorIs(gotErr, sentinel.ErrNotFound)
	})
}
