package statestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	docmodels "regflow/internal/document/models"
	regmodels "regflow/internal/registration/models"
	"regflow/internal/workflow"
	"regflow/internal/workflow/statestore"
	"regflow/pkg/platform/sentinel"
)

// StoreSuite runs the same contract against every backend that needs no
// external service.
type StoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) workflow.StateStore
	store    workflow.StateStore
}

func TestInMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(*testing.T) workflow.StateStore {
		return statestore.NewInMemory()
	}})
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) workflow.StateStore {
		st, err := statestore.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = st.Close() })
		return st
	}})
}

func (s *StoreSuite) SetupTest() {
	s.store = s.newStore(s.T())
}

func sampleSnapshot() workflow.Snapshot {
	return workflow.Snapshot{
		Registration: regmodels.Record{
			BrokerID:          "ib",
			RequestTypeID:     regmodels.RequestTypeCategorizeClients,
			NumberOfInvestors: 2,
			Investors: []regmodels.Investor{
				{ClientCategory: regmodels.ClientCategoryProfessional},
				{ClientCategory: regmodels.ClientCategoryRetail, FullName: "Jane Roe"},
			},
		},
		Step:          workflow.StepApproval,
		InvestorIndex: 1,
		DocumentID:    docmodels.ID("doc-1"),
	}
}

func (s *StoreSuite) TestLoadMissing() {
	_, err := s.store.Load(context.Background(), "nobody")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestSaveLoadClear() {
	ctx := context.Background()
	want := sampleSnapshot()

	s.Require().NoError(s.store.Save(ctx, "sess-1", want))
	got, err := s.store.Load(ctx, "sess-1")
	s.Require().NoError(err)
	s.Equal(want, *got)

	s.Run("save overwrites", func() {
		next := want
		next.Step = workflow.StepBroker
		next.DocumentID = ""
		s.Require().NoError(s.store.Save(ctx, "sess-1", next))
		got, err := s.store.Load(ctx, "sess-1")
		s.Require().NoError(err)
		s.Equal(workflow.StepBroker, got.Step)
		s.Empty(got.DocumentID)
	})

	s.Run("sessions are isolated", func() {
		_, err := s.store.Load(ctx, "sess-2")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Require().NoError(s.store.Clear(ctx, "sess-1"))
	_, err = s.store.Load(ctx, "sess-1")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.NoError(s.store.Clear(ctx, "sess-1"), "clearing twice is fine")
}
