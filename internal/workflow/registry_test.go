package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docstore "regflow/internal/document/store"
	"regflow/internal/payment"
	"regflow/internal/workflow"
	"regflow/internal/workflow/lock"
	"regflow/internal/workflow/metrics"
	"regflow/internal/workflow/statestore"
	dErrors "regflow/pkg/domain-errors"
)

func newRegistry(ttl time.Duration, m *metrics.Metrics) (*workflow.Registry, *docstore.InMemoryStore) {
	docs := docstore.NewInMemory()
	deps := workflow.Deps{
		Docs:    docs,
		States:  statestore.NewInMemory(),
		Charger: payment.NewSimulator(payment.WithDelay(0)),
		Locker:  lock.NewSharded(),
	}
	return workflow.NewRegistry(deps, ttl, nil, m), docs
}

func TestRegistryReturnsOneControllerPerSession(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	reg, _ := newRegistry(time.Minute, m)
	defer reg.Close()

	var wg sync.WaitGroup
	got := make([]*workflow.Controller, 6)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := reg.Get(context.Background(), "sess-1")
			if assert.NoError(t, err) {
				got[i] = c
			}
		}()
	}
	wg.Wait()
	for _, c := range got {
		assert.Same(t, got[0], c)
	}
	assert.Equal(t, workflow.StepBroker, got[0].View().Step, "controllers come back resumed")

	other, err := reg.Get(context.Background(), "sess-2")
	require.NoError(t, err)
	assert.NotSame(t, got[0], other)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Resumes.WithLabelValues("fresh")))

	_, err = reg.Get(context.Background(), "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestRegistryDropClosesController(t *testing.T) {
	reg, docs := newRegistry(time.Minute, nil)
	ctx := context.Background()

	c, err := reg.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.NoError(t, c.SelectBroker(ctx, "ib", "register_new"))
	require.NoError(t, c.SubmitVerification(ctx, nationalID()))
	id := c.View().DocumentID
	require.Equal(t, 1, docs.SubscriberCount(id))

	reg.Drop("sess-1")
	assert.Zero(t, docs.SubscriberCount(id))

	again, err := reg.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.NotSame(t, c, again)
	assert.Equal(t, workflow.StepApproval, again.View().Step, "state survives through the state store")
}
