package memory_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/becomeliminal/bridge-go-sdk/core"
	"github.com/becomeliminal/bridge-go-sdk/memory"
	"github.com/becomeliminal/bridge-go-sdk/memory/store/inmem"
)

var base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// tickingClock advances one second per call.
func tickingClock() func() time.Time {
	var n atomic.Int64
	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

func newManager(t *testing.T, cfg memory.Config, opts ...memory.Option) *memory.Manager {
	t.Helper()
	opts = append([]memory.Option{memory.WithClock(tickingClock())}, opts...)
	m, err := memory.NewManager(context.Background(), cfg, opts...)
	require.NoError(t, err)
	return m
}

func turn(i int) memory.Input {
	role := core.RoleUser
	if i%2 == 1 {
		role = core.RoleAssistant
	}
	return memory.Input{Role: role, Text: fmt.Sprintf("message %d", i)}
}

func addN(t *testing.T, m *memory.Manager, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, m.AddInteraction(context.Background(), turn(i)))
	}
}

func represented(m *memory.Manager) int {
	total := 0
	for _, s := range m.Summaries() {
		total += s.Range.Count
	}
	return total + len(m.Interactions())
}

type failingStorage struct {
	loadErr error
	saveErr error
	saves   atomic.Int32
}

func (f *failingStorage) Load(context.Context, memory.Key) (*memory.State, error) {
	return nil, f.loadErr
}

func (f *failingStorage) Save(context.Context, memory.Key, *memory.State) error {
	f.saves.Add(1)
	return f.saveErr
}

type recordingIndex struct {
	mu    sync.Mutex
	added [][]memory.Interaction
	err   error
	hits  []memory.Interaction
}

func (r *recordingIndex) Add(_ context.Context, _ string, items []memory.Interaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, items)
	return r.err
}

func (r *recordingIndex) Search(context.Context, string, string, int) ([]memory.Interaction, error) {
	return r.hits, r.err
}

func TestManager_BatchOfTwentyFiveFoldsOnce(t *testing.T) {
	m := newManager(t, memory.Config{Owner: "alice"})

	inputs := make([]memory.Input, 25)
	for i := range inputs {
		inputs[i] = turn(i)
	}
	require.NoError(t, m.AddInteractions(context.Background(), inputs...))

	summaries := m.Summaries()
	require.Len(t, summaries, 1)
	require.Equal(t, 5, summaries[0].Range.Count)
	require.False(t, summaries[0].Range.MetaLevel)
	require.Len(t, m.Interactions(), 20)
	require.Equal(t, 25, m.TotalCount())
	require.Equal(t, "message 5", m.Interactions()[0].Text)
}

func TestManager_BoundsAndConservationAfterEveryAdd(t *testing.T) {
	m := newManager(t, memory.Config{MaxInteractions: 5, MaxSummaries: 2})
	for i := 0; i < 60; i++ {
		require.NoError(t, m.AddInteraction(context.Background(), turn(i)))
		require.LessOrEqual(t, len(m.Interactions()), 5)
		require.LessOrEqual(t, len(m.Summaries()), 2)
		require.Equal(t, i+1, m.TotalCount())
		require.Equal(t, m.TotalCount(), represented(m))
	}
}

func TestManager_DefaultWindowSequentialAdds(t *testing.T) {
	m := newManager(t, memory.Config{})
	addN(t, m, 25)

	require.Equal(t, 21, m.Config().MaxInteractions)
	require.Equal(t, 3, m.Config().MaxSummaries)
	require.Equal(t, 25, m.TotalCount())
	require.LessOrEqual(t, len(m.Interactions()), 21)
	require.Equal(t, 25, represented(m))
}

func TestManager_ThirdSummaryFoldsIntoMetaSummary(t *testing.T) {
	m := newManager(t, memory.Config{MaxInteractions: 2, MaxSummaries: 2})

	addN(t, m, 6)
	require.Len(t, m.Summaries(), 2)

	require.NoError(t, m.AddInteraction(context.Background(), turn(6)))

	summaries := m.Summaries()
	require.Len(t, summaries, 2)
	meta := summaries[0]
	require.True(t, meta.Range.MetaLevel)
	require.Equal(t, 4, meta.Range.Count)
	require.Contains(t, meta.Text, "Meta-summary of 2 summaries covering 4 interactions")

	plain := 0
	for _, s := range summaries {
		if !s.Range.MetaLevel {
			plain++
		}
	}
	require.Equal(t, 1, plain)
	require.Equal(t, 7, m.TotalCount())
	require.Equal(t, 7, represented(m))
}

func TestManager_MinimalBounds(t *testing.T) {
	m := newManager(t, memory.Config{MaxInteractions: 1, MaxSummaries: 1})
	for i := 0; i < 10; i++ {
		require.NoError(t, m.AddInteraction(context.Background(), turn(i)))
		require.LessOrEqual(t, len(m.Interactions()), 1)
		require.LessOrEqual(t, len(m.Summaries()), 1)
		require.Equal(t, i+1, represented(m))
	}
}

func TestManager_InvalidConfig(t *testing.T) {
	ctx := context.Background()

	_, err := memory.NewManager(ctx, memory.Config{MaxInteractions: -1})
	require.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = memory.NewManager(ctx, memory.Config{MaxSummaries: -3})
	require.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = memory.NewManager(ctx, memory.Config{SignatureAlgorithm: "rsa"})
	require.ErrorIs(t, err, core.ErrUnsupportedAlgorithm)

	m, err := memory.NewManager(ctx, memory.Config{})
	require.NoError(t, err)
	require.Equal(t, memory.DefaultOwner, m.Config().Owner)
}

func TestManager_InvalidRoleAddsNothing(t *testing.T) {
	m := newManager(t, memory.Config{})

	err := m.AddInteractions(context.Background(),
		memory.Input{Role: core.RoleUser, Text: "ok"},
		memory.Input{Role: "robot", Text: "beep"},
	)
	require.ErrorIs(t, err, core.ErrInvalidRole)
	require.Zero(t, m.TotalCount())
	require.Empty(t, m.Interactions())
}

func TestManager_InteractionsAreHashed(t *testing.T) {
	m := newManager(t, memory.Config{})
	require.NoError(t, m.AddInteraction(context.Background(), memory.Input{
		Role:     core.RoleUser,
		Text:     "hello",
		Metadata: map[string]any{"attempts": 2, "agent": "email"},
	}))

	it := m.Interactions()[0]
	require.NotEmpty(t, it.ID)
	require.Len(t, it.Hash, 64)
	require.Equal(t, it.ComputeHash(), it.Hash)
	require.Equal(t, base.Add(2*time.Second), it.Timestamp)

	// Hash survives a JSON round trip even though ints decode as float64.
	raw, err := json.Marshal(it)
	require.NoError(t, err)
	var back memory.Interaction
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, it.Hash, back.ComputeHash())
}

func TestManager_ExplicitTimestampKept(t *testing.T) {
	m := newManager(t, memory.Config{})
	at := time.Date(2025, 12, 31, 23, 59, 0, 0, time.FixedZone("X", 3600))
	require.NoError(t, m.AddInteraction(context.Background(), memory.Input{Role: core.RoleSystem, Text: "boot", Timestamp: at}))
	require.True(t, at.Equal(m.Interactions()[0].Timestamp))
	require.Equal(t, time.UTC, m.Interactions()[0].Timestamp.Location())
}

func TestManager_SummarizerUsedForFolds(t *testing.T) {
	var reqs []memory.SummaryRequest
	sum := memory.SummarizerFunc(func(_ context.Context, req memory.SummaryRequest) (string, error) {
		reqs = append(reqs, req)
		return fmt.Sprintf("  %s of %d  ", req.Kind, req.Count), nil
	})
	m := newManager(t, memory.Config{MaxInteractions: 3, MaxSummaries: 1}, memory.WithSummarizer(sum))

	addN(t, m, 4)
	require.Len(t, reqs, 1)
	require.Equal(t, memory.KindTranscript, reqs[0].Kind)
	require.Equal(t, "user: message 0\nassistant: message 1", reqs[0].Text)
	require.Equal(t, "transcript of 2", m.Summaries()[0].Text)

	addN(t, m, 2)
	require.Len(t, reqs, 3)
	require.Equal(t, memory.KindMeta, reqs[2].Kind)
	require.Equal(t, 4, reqs[2].Count)
	require.Equal(t, "meta of 4", m.Summaries()[0].Text)
}

func TestManager_SummarizerFailureFallsBack(t *testing.T) {
	obs, logs := observer.New(zapcore.WarnLevel)
	sum := memory.SummarizerFunc(func(context.Context, memory.SummaryRequest) (string, error) {
		return "", errors.New("model overloaded")
	})
	m := newManager(t, memory.Config{MaxInteractions: 4},
		memory.WithSummarizer(sum),
		memory.WithLogger(zap.New(obs)))

	addN(t, m, 5)

	summaries := m.Summaries()
	require.Len(t, summaries, 1)
	require.Equal(t,
		"Conversation segment of 2 interactions (1 user, 1 assistant). Topics: message 0",
		summaries[0].Text)

	entries := logs.FilterMessage("summarizer failed, using local summary").All()
	require.Len(t, entries, 1)
	require.Equal(t, "model overloaded", entries[0].ContextMap()["error"])
}

func TestManager_PersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := inmem.New()
	clock := tickingClock()
	cfg := memory.Config{Owner: "alice", MaxInteractions: 4, MaxSummaries: 2, SignatureAlgorithm: core.SignaturePQ}

	m1, err := memory.NewManager(ctx, cfg, memory.WithStorage(store), memory.WithClock(clock))
	require.NoError(t, err)
	addN(t, m1, 11)
	require.True(t, m1.PersistenceEnabled())
	require.Equal(t, memory.Key{Owner: "alice", Day: "2026-03-14"}, m1.Key())

	stored, err := store.Load(ctx, m1.Key())
	require.NoError(t, err)
	require.Equal(t, "ml-dsa-87", stored.SignatureAlgorithm)

	m2, err := memory.NewManager(ctx, cfg, memory.WithStorage(store), memory.WithClock(clock))
	require.NoError(t, err)
	require.Equal(t, m1.Interactions(), m2.Interactions())
	require.Equal(t, m1.Summaries(), m2.Summaries())
	require.Equal(t, m1.TotalCount(), m2.TotalCount())
	require.NoError(t, m2.Verify())
}

func TestManager_LoadCompactsOversizedState(t *testing.T) {
	ctx := context.Background()
	store := inmem.New()
	clock := tickingClock()

	wide, err := memory.NewManager(ctx, memory.Config{Owner: "bob", MaxInteractions: 100},
		memory.WithStorage(store), memory.WithClock(clock))
	require.NoError(t, err)
	addN(t, wide, 25)
	require.Empty(t, wide.Summaries())

	narrow, err := memory.NewManager(ctx, memory.Config{Owner: "bob"},
		memory.WithStorage(store), memory.WithClock(clock))
	require.NoError(t, err)
	require.Len(t, narrow.Summaries(), 1)
	require.Equal(t, 5, narrow.Summaries()[0].Range.Count)
	require.Len(t, narrow.Interactions(), 20)
	require.Equal(t, 25, narrow.TotalCount())

	stored, err := store.Load(ctx, narrow.Key())
	require.NoError(t, err)
	require.Len(t, stored.Interactions, 20)
}

func TestManager_SaveFailureDisablesPersistence(t *testing.T) {
	obs, logs := observer.New(zapcore.ErrorLevel)
	store := &failingStorage{saveErr: errors.New("disk full")}
	m := newManager(t, memory.Config{}, memory.WithStorage(store), memory.WithLogger(zap.New(obs)))
	require.True(t, m.PersistenceEnabled())

	addN(t, m, 3)

	require.False(t, m.PersistenceEnabled())
	require.Equal(t, int32(1), store.saves.Load())
	require.Equal(t, 3, m.TotalCount())

	entries := logs.FilterMessage("memory persistence disabled").All()
	require.Len(t, entries, 1)
	require.Equal(t, "save", entries[0].ContextMap()["op"])
}

func TestManager_LoadFailureDisablesPersistence(t *testing.T) {
	store := &failingStorage{loadErr: errors.New("permission denied")}
	m := newManager(t, memory.Config{}, memory.WithStorage(store))

	require.False(t, m.PersistenceEnabled())
	addN(t, m, 2)
	require.Zero(t, store.saves.Load())
	require.Equal(t, 2, m.TotalCount())
}

func TestManager_BuildContext(t *testing.T) {
	m := newManager(t, memory.Config{MaxInteractions: 13})
	addN(t, m, 15)

	c := m.BuildContext()
	require.Equal(t, 15, c.TotalCount)
	require.Len(t, c.Recent, memory.RecentWindow)
	require.Equal(t, "message 14", c.Recent[len(c.Recent)-1].Text)
	require.Len(t, c.Summaries, 1)
	require.Equal(t, memory.Stats{Active: len(m.Interactions()), Summaries: 1, TotalCount: 15}, c.Stats)

	// Read-only: building twice changes nothing.
	require.Equal(t, c, m.BuildContext())

	out := c.Format()
	require.Contains(t, out, "Memory (15 interactions total")
	require.Contains(t, out, "Earlier conversation:")
	require.Contains(t, out, "Recent interactions:")
	require.Contains(t, out, "- assistant (")
}

func TestContext_FormatEmpty(t *testing.T) {
	m := newManager(t, memory.Config{})
	require.True(t, m.BuildContext().Empty())
	require.Empty(t, m.BuildContext().Format())
}

func TestManager_IndexReceivesFoldedInteractions(t *testing.T) {
	idx := &recordingIndex{}
	m := newManager(t, memory.Config{MaxInteractions: 3}, memory.WithIndex(idx))

	addN(t, m, 4)
	require.Len(t, idx.added, 1)
	require.Len(t, idx.added[0], 2)
	require.Equal(t, "message 0", idx.added[0][0].Text)
}

func TestManager_IndexFailureIsNotFatal(t *testing.T) {
	obs, logs := observer.New(zapcore.WarnLevel)
	idx := &recordingIndex{err: errors.New("index offline")}
	m := newManager(t, memory.Config{MaxInteractions: 2}, memory.WithIndex(idx), memory.WithLogger(zap.New(obs)))

	addN(t, m, 3)
	require.Len(t, m.Summaries(), 1)
	require.Equal(t, 1, logs.FilterMessage("recall index update failed").Len())

	_, err := m.Recall(context.Background(), "message", 5)
	require.Error(t, err)
}

func TestManager_RecallActiveWindow(t *testing.T) {
	m := newManager(t, memory.Config{})
	ctx := context.Background()
	require.NoError(t, m.AddInteraction(ctx, memory.Input{Role: core.RoleUser, Text: "Deploy the payments service"}))
	require.NoError(t, m.AddInteraction(ctx, memory.Input{Role: core.RoleAssistant, Text: "Done."}))
	require.NoError(t, m.AddInteraction(ctx, memory.Input{Role: core.RoleUser, Text: "Roll back PAYMENTS"}))

	got, err := m.Recall(ctx, "payments", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Roll back PAYMENTS", got[0].Text)

	got, err = m.Recall(ctx, "", 5)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestManager_RecallKeepsIdenticalTurns(t *testing.T) {
	m := newManager(t, memory.Config{})
	ctx := context.Background()
	require.NoError(t, m.AddInteractions(ctx,
		memory.Input{Role: core.RoleUser, Text: "yes"},
		memory.Input{Role: core.RoleUser, Text: "yes"},
	))

	items := m.Interactions()
	require.Equal(t, items[0].Hash, items[1].Hash)

	got, err := m.Recall(ctx, "yes", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotEqual(t, got[0].ID, got[1].ID)
}

func TestManager_RecallIndexHitsFirst(t *testing.T) {
	archived := memory.Interaction{ID: "old", Role: core.RoleUser, Text: "archived payments chat", Hash: "h-old"}
	idx := &recordingIndex{hits: []memory.Interaction{archived}}
	m := newManager(t, memory.Config{}, memory.WithIndex(idx))
	require.NoError(t, m.AddInteraction(context.Background(), memory.Input{Role: core.RoleUser, Text: "payments again"}))

	got, err := m.Recall(context.Background(), "payments", 1)
	require.NoError(t, err)
	require.Equal(t, []memory.Interaction{archived}, got)
}

func TestManager_VerifyDetectsTampering(t *testing.T) {
	ctx := context.Background()
	store := inmem.New()
	clock := tickingClock()
	cfg := memory.Config{Owner: "carol", MaxInteractions: 3}

	m, err := memory.NewManager(ctx, cfg, memory.WithStorage(store), memory.WithClock(clock))
	require.NoError(t, err)
	addN(t, m, 5)
	require.NoError(t, m.Verify())

	st, err := store.Load(ctx, m.Key())
	require.NoError(t, err)
	st.Interactions[0].Text = "forged"
	st.Summaries[0].Range.Count++
	require.NoError(t, store.Save(ctx, m.Key(), st))

	reloaded, err := memory.NewManager(ctx, cfg, memory.WithStorage(store), memory.WithClock(clock))
	require.NoError(t, err)
	err = reloaded.Verify()
	require.ErrorIs(t, err, memory.ErrTampered)
	assert.Contains(t, err.Error(), "interaction 0")
	assert.Contains(t, err.Error(), "summary 0")
	assert.Contains(t, err.Error(), "count mismatch")

	require.NoError(t, memory.VerifyState(nil))
}

func TestManager_ConcurrentAdds(t *testing.T) {
	m := newManager(t, memory.Config{MaxInteractions: 4, MaxSummaries: 2}, memory.WithStorage(inmem.New()))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_ = m.AddInteraction(context.Background(), turn(g*10+i))
				_ = m.BuildContext()
			}
		}(g)
	}
	wg.Wait()

	require.Equal(t, 80, m.TotalCount())
	require.Equal(t, 80, represented(m))
	require.NoError(t, m.Verify())
}

func TestKeyFor(t *testing.T) {
	at := time.Date(2026, 1, 1, 1, 0, 0, 0, time.FixedZone("E", 5*3600))
	require.Equal(t, memory.Key{Owner: "x", Day: "2025-12-31"}, memory.KeyFor("x", at))
}
