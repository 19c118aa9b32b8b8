package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docmodels "regflow/internal/document/models"
	regmodels "regflow/internal/registration/models"
)

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, []*docmodels.Record{{
		ID:           "doc-1",
		Status:       docmodels.StatusPending,
		Registration: regmodels.Record{BrokerID: "ib", RequestTypeID: "categorize_clients", NumberOfInvestors: 3},
		CreatedAt:    time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
	}}))

	out := buf.String()
	assert.Contains(t, out, "REQUEST TYPE")
	assert.Contains(t, out, "doc-1")
	assert.Contains(t, out, "categorize_clients")
	assert.Contains(t, out, "2026-03-10T09:30:00Z")
}

func TestWriteTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, nil))
	assert.Equal(t, "No requests.\n", buf.String())
}

func TestDecideCommandsMapToStatus(t *testing.T) {
	approve := decideCmd("approve", "")
	reject := decideCmd("reject", "")
	assert.Equal(t, "approve [document-id]", approve.Use)
	assert.NotNil(t, reject.Flags().Lookup("notes"))
	assert.Error(t, approve.Args(approve, nil))
}

func TestCommandsRequireDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	for _, args := range [][]string{
		{"list"},
		{"show", "doc-1"},
		{"approve", "doc-1", "--by", "alice"},
	} {
		root := newRootCmd()
		root.SetArgs(args)
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})

		err := root.Execute()
		require.Error(t, err, "args %v", args)
		assert.Contains(t, err.Error(), "no database configured")
	}
}
