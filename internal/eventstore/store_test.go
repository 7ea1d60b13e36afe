package eventstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullableJSONTreatsEmptyAsNil(t *testing.T) {
	assert.Nil(t, nullableJSON(nil))
	assert.Nil(t, nullableJSON([]byte{}))
	assert.NotNil(t, nullableJSON([]byte(`{"a":1}`)))
}

// TestStoreLifecycle exercises the real schema against a live Postgres
// instance. Set EVIDENTIA_TEST_POSTGRES_DSN to run it; it is skipped by
// default since no database is available in this environment.
func TestStoreLifecycle(t *testing.T) {
	dsn := os.Getenv("EVIDENTIA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("EVIDENTIA_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := OpenPool(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	store := NewStore(pool)
	require.NoError(t, store.Init(ctx))

	thread, err := store.CreateThread(ctx)
	require.NoError(t, err)

	msg, err := store.InsertMessage(ctx, thread.ID, "user", "does NR extend healthspan?", nil, nil, "")
	require.NoError(t, err)

	ev1, err := store.AppendEvent(ctx, Event{ThreadID: thread.ID, MessageID: &msg.ID, Role: "user", Kind: "main_agent_start", VisibleToModel: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ev1.Position)

	ev2, err := store.AppendEvent(ctx, Event{ThreadID: thread.ID, Role: "assistant", Kind: "main_agent_complete", VisibleToModel: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), ev2.Position)

	events, err := store.ListEvents(ctx, thread.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	inv, err := store.CreateToolInvocation(ctx, thread.ID, ev1.ID, "search_pubmed", []byte(`{"query":"nad+"}`))
	require.NoError(t, err)
	assert.Equal(t, "running", inv.Status)

	done, err := store.CompleteToolInvocation(ctx, inv.ID, ev2.ID, "success", []byte(`{"ids":[]}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "success", done.Status)
}
