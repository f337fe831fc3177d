package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/becomeliminal/bridge-go-sdk/core"
)

const (
	// DefaultMaxInteractions bounds the active interaction window.
	DefaultMaxInteractions = 21

	// DefaultMaxSummaries bounds the summaries list.
	DefaultMaxSummaries = 3

	// DefaultOwner is used when Config.Owner is empty.
	DefaultOwner = "default"
)

// ErrTampered is returned by Verify when stored content no longer matches its hash.
var ErrTampered = errors.New("memory integrity check failed")

// Config configures a Manager. Zero bounds select the defaults.
type Config struct {
	Owner              string
	MaxInteractions    int
	MaxSummaries       int
	SignatureAlgorithm core.SignatureAlgorithm
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithStorage enables persistence through s.
func WithStorage(s Storage) Option {
	return func(m *Manager) { m.storage = s }
}

// WithSummarizer sets the collaborator used to compress folded blocks.
func WithSummarizer(s Summarizer) Option {
	return func(m *Manager) { m.summarizer = s }
}

// WithIndex keeps folded interactions searchable through Recall.
func WithIndex(idx Index) Option {
	return func(m *Manager) { m.index = idx }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager is a bounded rolling ledger of interactions. Old interactions are
// folded into summaries and old summaries into meta-summaries.
// All methods are safe for concurrent use.
type Manager struct {
	mu sync.RWMutex

	cfg          Config
	key          Key
	interactions []Interaction
	summaries    []Summary
	totalCount   int
	lastUpdated  time.Time
	persist      bool

	storage    Storage
	summarizer Summarizer
	index      Index
	logger     *zap.Logger
	now        func() time.Time
}

// NewManager creates a Manager. When storage is configured the state saved for
// (owner, today) is loaded first. A load failure disables persistence but does
// not fail construction.
func NewManager(ctx context.Context, cfg Config, opts ...Option) (*Manager, error) {
	if cfg.MaxInteractions < 0 {
		return nil, fmt.Errorf("%w: max interactions must be >= 0, got %d", core.ErrInvalidConfig, cfg.MaxInteractions)
	}
	if cfg.MaxSummaries < 0 {
		return nil, fmt.Errorf("%w: max summaries must be >= 0, got %d", core.ErrInvalidConfig, cfg.MaxSummaries)
	}
	if !cfg.SignatureAlgorithm.Valid() {
		return nil, &core.AlgorithmError{Value: string(cfg.SignatureAlgorithm)}
	}
	if cfg.MaxInteractions == 0 {
		cfg.MaxInteractions = DefaultMaxInteractions
	}
	if cfg.MaxSummaries == 0 {
		cfg.MaxSummaries = DefaultMaxSummaries
	}
	cfg.Owner = strings.TrimSpace(cfg.Owner)
	if cfg.Owner == "" {
		cfg.Owner = DefaultOwner
	}

	m := &Manager{
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.key = KeyFor(cfg.Owner, m.now())
	m.persist = m.storage != nil

	if m.persist {
		m.load(ctx)
	}
	return m, nil
}

func (m *Manager) load(ctx context.Context) {
	state, err := m.storage.Load(ctx, m.key)
	if err != nil {
		m.disablePersistence("load", err)
		return
	}
	if state == nil {
		return
	}

	m.interactions = append([]Interaction(nil), state.Interactions...)
	m.summaries = append([]Summary(nil), state.Summaries...)
	m.totalCount = state.TotalCount
	m.lastUpdated = state.LastUpdated

	m.logger.Debug("memory loaded",
		zap.String("owner", m.key.Owner),
		zap.String("day", m.key.Day),
		zap.Int("interactions", len(m.interactions)),
		zap.Int("summaries", len(m.summaries)),
		zap.Int("total", m.totalCount))

	// State written under larger bounds is compacted on load.
	if m.compact(ctx) {
		m.save(ctx)
	}
}

// AddInteraction records one turn. It is AddInteractions with a single input.
func (m *Manager) AddInteraction(ctx context.Context, in Input) error {
	return m.AddInteractions(ctx, in)
}

// AddInteractions records a batch of turns, then folds once: the oldest
// len-MaxInteractions+1 interactions become one Summary when the window
// overflows, and the oldest len-MaxSummaries+1 summaries become one
// MetaSummary when the summaries overflow. Only an invalid role is an error;
// summarizer and persistence failures are logged and absorbed.
func (m *Manager) AddInteractions(ctx context.Context, inputs ...Input) error {
	for _, in := range inputs {
		if !in.Role.Valid() {
			return fmt.Errorf("%w: %q", core.ErrInvalidRole, in.Role)
		}
	}
	if len(inputs) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, in := range inputs {
		m.interactions = append(m.interactions, newInteraction(in, now))
	}
	m.totalCount += len(inputs)
	m.lastUpdated = normalizeTime(now)

	m.compact(ctx)
	m.save(ctx)
	return nil
}

// compact enforces both bounds and reports whether anything was folded.
// Callers hold the write lock.
func (m *Manager) compact(ctx context.Context) bool {
	changed := false

	if n := len(m.interactions); n > m.cfg.MaxInteractions {
		k := n - m.cfg.MaxInteractions + 1
		folded := append([]Interaction(nil), m.interactions[:k]...)
		m.interactions = append([]Interaction(nil), m.interactions[k:]...)

		s := m.summarizeInteractions(ctx, folded)
		m.summaries = append(m.summaries, s)
		m.logger.Debug("interactions folded",
			zap.Int("folded", k),
			zap.Int("active", len(m.interactions)))

		if m.index != nil {
			if err := m.index.Add(ctx, m.cfg.Owner, folded); err != nil {
				m.logger.Warn("recall index update failed",
					zap.String("op", "index_add"),
					zap.Int("count", len(folded)),
					zap.Error(err))
			}
		}
		changed = true
	}

	if n := len(m.summaries); n > m.cfg.MaxSummaries {
		k := n - m.cfg.MaxSummaries + 1
		meta := m.summarizeSummaries(ctx, m.summaries[:k])
		rest := m.summaries[k:]
		m.summaries = append([]Summary{meta}, rest...)
		m.logger.Debug("summaries folded",
			zap.Int("folded", k),
			zap.Int("summaries", len(m.summaries)))
		changed = true
	}

	return changed
}

// save writes the full state. Callers hold the write lock.
func (m *Manager) save(ctx context.Context) {
	if !m.persist {
		return
	}
	if err := m.storage.Save(ctx, m.key, m.snapshot()); err != nil {
		m.disablePersistence("save", err)
	}
}

func (m *Manager) disablePersistence(op string, err error) {
	m.persist = false
	m.logger.Error("memory persistence disabled",
		zap.String("op", op),
		zap.String("owner", m.key.Owner),
		zap.String("day", m.key.Day),
		zap.Error(err))
}

func (m *Manager) snapshot() *State {
	return &State{
		Interactions:       append([]Interaction(nil), m.interactions...),
		Summaries:          append([]Summary(nil), m.summaries...),
		TotalCount:         m.totalCount,
		LastUpdated:        m.lastUpdated,
		SignatureAlgorithm: string(m.cfg.SignatureAlgorithm.Resolved()),
	}
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() *State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot()
}

// BuildContext returns the read-only view handed to agents: the total count,
// the last RecentWindow active interactions, every summary and size stats.
func (m *Manager) BuildContext() Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := len(m.interactions) - RecentWindow
	if start < 0 {
		start = 0
	}
	recent := make([]ContextInteraction, 0, len(m.interactions)-start)
	for _, it := range m.interactions[start:] {
		recent = append(recent, ContextInteraction{Role: it.Role, Text: it.Text, Timestamp: it.Timestamp})
	}

	summaries := make([]ContextSummary, 0, len(m.summaries))
	for _, s := range m.summaries {
		summaries = append(summaries, ContextSummary{Text: s.Text, Range: s.Range, Timestamp: s.Timestamp})
	}

	return Context{
		TotalCount: m.totalCount,
		Recent:     recent,
		Summaries:  summaries,
		Stats: Stats{
			Active:     len(m.interactions),
			Summaries:  len(m.summaries),
			TotalCount: m.totalCount,
		},
	}
}

// Recall finds interactions related to query. Folded interactions are found
// through the Index when one is attached; active interactions are matched by
// case-insensitive substring. Index hits come first.
func (m *Manager) Recall(ctx context.Context, query string, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = RecentWindow
	}

	var out []Interaction
	seen := map[string]bool{}

	if m.index != nil {
		hits, err := m.index.Search(ctx, m.cfg.Owner, query, limit)
		if err != nil {
			return nil, fmt.Errorf("recall: %w", err)
		}
		for _, it := range hits {
			if !seen[it.ID] {
				seen[it.ID] = true
				out = append(out, it)
			}
		}
	}

	q := strings.ToLower(strings.TrimSpace(query))
	m.mu.RLock()
	var active []Interaction
	for i := len(m.interactions) - 1; i >= 0; i-- {
		it := m.interactions[i]
		if q != "" && strings.Contains(strings.ToLower(it.Text), q) {
			active = append(active, it)
		}
	}
	m.mu.RUnlock()

	for _, it := range active {
		if len(out) >= limit {
			break
		}
		if !seen[it.ID] {
			seen[it.ID] = true
			out = append(out, it)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Verify recomputes every hash and checks that summaries plus the active
// window account for TotalCount. Problems are reported together, wrapped in
// ErrTampered.
func (m *Manager) Verify() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return verifyState(m.snapshot())
}

// VerifyState runs the Verify checks against a stored State.
func VerifyState(s *State) error {
	if s == nil {
		return nil
	}
	return verifyState(s)
}

func verifyState(s *State) error {
	var problems []string
	for i, it := range s.Interactions {
		if it.Hash != it.ComputeHash() {
			problems = append(problems, fmt.Sprintf("interaction %d (%s): hash mismatch", i, it.ID))
		}
	}
	represented := 0
	for i, sm := range s.Summaries {
		represented += sm.Range.Count
		if sm.Hash != sm.ComputeHash() {
			problems = append(problems, fmt.Sprintf("summary %d: hash mismatch", i))
		}
	}
	if got := represented + len(s.Interactions); got != s.TotalCount {
		problems = append(problems, fmt.Sprintf("count mismatch: summaries+active=%d, total=%d", got, s.TotalCount))
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrTampered, strings.Join(problems, "; "))
}

// Interactions returns a copy of the active window, oldest first.
func (m *Manager) Interactions() []Interaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Interaction(nil), m.interactions...)
}

// Summaries returns a copy of the summaries, oldest first.
func (m *Manager) Summaries() []Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Summary(nil), m.summaries...)
}

// TotalCount is the number of interactions ever recorded.
func (m *Manager) TotalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalCount
}

// PersistenceEnabled reports whether state is still being saved.
func (m *Manager) PersistenceEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.persist
}

// Key is the persistence key fixed at construction.
func (m *Manager) Key() Key { return m.key }

// Config returns the effective configuration with defaults applied.
func (m *Manager) Config() Config { return m.cfg }
