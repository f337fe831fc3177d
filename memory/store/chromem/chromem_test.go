package chromem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/bridge-go-sdk/core"
	"github.com/becomeliminal/bridge-go-sdk/memory"
	"github.com/becomeliminal/bridge-go-sdk/memory/embedder/mock"
)

func interaction(id, text string) memory.Interaction {
	return memory.Interaction{
		ID:        id,
		Role:      core.RoleUser,
		Text:      text,
		Timestamp: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		Hash:      "h-" + id,
		Metadata:  map[string]any{"agent": "email"},
	}
}

func TestIndex_SearchRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	idx, err := New(mock.New(), "", false)
	require.NoError(t, err)

	require.NoError(t, idx.Add(ctx, "alice", []memory.Interaction{
		interaction("1", "write a haiku about autumn leaves"),
		interaction("2", "the payments service had an outage"),
		interaction("3", "book a table for dinner"),
	}))
	require.Equal(t, 3, idx.Count("alice"))

	got, err := idx.Search(ctx, "alice", "payments outage", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "2", got[0].ID)
	require.Equal(t, "h-2", got[0].Hash)
	require.Equal(t, map[string]any{"agent": "email"}, got[0].Metadata)
	require.True(t, got[0].Timestamp.Equal(interaction("2", "").Timestamp))
}

func TestIndex_OwnersAreIsolated(t *testing.T) {
	ctx := context.Background()
	idx, err := New(mock.New(), "", false)
	require.NoError(t, err)

	require.NoError(t, idx.Add(ctx, "alice", []memory.Interaction{interaction("1", "secret plans")}))

	got, err := idx.Search(ctx, "bob", "secret plans", 5)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestIndex_LimitClampedToCollectionSize(t *testing.T) {
	ctx := context.Background()
	idx, err := New(mock.New(), "", false)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, "alice", []memory.Interaction{interaction("1", "only one")}))

	got, err := idx.Search(ctx, "alice", "one", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestIndex_RequiresEmbedder(t *testing.T) {
	_, err := New(nil, "", false)
	require.Error(t, err)
}

func TestIndex_ManagerRecallsFoldedInteractions(t *testing.T) {
	ctx := context.Background()
	idx, err := New(mock.New(), t.TempDir(), false)
	require.NoError(t, err)

	m, err := memory.NewManager(ctx, memory.Config{Owner: "alice", MaxInteractions: 2}, memory.WithIndex(idx))
	require.NoError(t, err)
	for _, text := range []string{
		"the database migration failed on staging",
		"rerun it with verbose logging",
		"what should I cook tonight",
		"try a mushroom risotto",
	} {
		require.NoError(t, m.AddInteraction(ctx, memory.Input{Role: core.RoleUser, Text: text}))
	}
	require.Equal(t, 2, idx.Count("alice"))

	got, err := m.Recall(ctx, "database migration staging", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "the database migration failed on staging", got[0].Text)
}
