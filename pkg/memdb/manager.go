package memdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nasasaki/LAPIS/logger"
	"go.uber.org/zap"
)

// ErrNotReady is returned while no snapshot has ever been published.
var ErrNotReady = errors.New("database snapshot not ready")

type State int32

const (
	StateAbsent State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// LoadFunc builds a snapshot; Load bound to a Source is the usual one.
type LoadFunc func(ctx context.Context) (*Snapshot, error)

// Manager owns the current snapshot. Readers call Current or Get and keep
// using what they got; a refresh builds the next snapshot off to the side
// and publishes it with a single pointer swap. Only one refresh runs at a time.
type Manager struct {
	versionOf func(ctx context.Context) (int64, error)
	load      LoadFunc

	current atomic.Pointer[Snapshot]
	state   atomic.Int32

	refreshMu sync.Mutex

	subsMu sync.RWMutex
	subs   []func(*Snapshot)
}

func NewManager(src Source) *Manager {
	return NewManagerFunc(src.CurrentDataVersion, func(ctx context.Context) (*Snapshot, error) {
		return Load(ctx, src)
	})
}

// NewManagerFunc is NewManager with the version check and loader supplied
// separately.
func NewManagerFunc(versionOf func(ctx context.Context) (int64, error), load LoadFunc) *Manager {
	return &Manager{versionOf: versionOf, load: load}
}

// Current returns the published snapshot or nil.
func (m *Manager) Current() *Snapshot {
	return m.current.Load()
}

func (m *Manager) State() State {
	return State(m.state.Load())
}

// Get returns the published snapshot, loading the first one on demand.
func (m *Manager) Get(ctx context.Context) (*Snapshot, error) {
	if s := m.current.Load(); s != nil {
		return s, nil
	}
	if _, err := m.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	if s := m.current.Load(); s != nil {
		return s, nil
	}
	return nil, ErrNotReady
}

// OnPublish registers fn to run after every newly published snapshot.
func (m *Manager) OnPublish(fn func(*Snapshot)) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	m.subs = append(m.subs, fn)
}

// Refresh compares the backing store version with the published one and
// rebuilds when the store is newer. It reports whether a new snapshot was
// published. On failure the previous snapshot stays in place.
func (m *Manager) Refresh(ctx context.Context) (bool, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	prev := m.current.Load()
	version, err := m.versionOf(ctx)
	if err != nil {
		logger.Error("Failed to read data version", zap.Error(err))
		return false, err
	}
	if prev != nil {
		if version == prev.DataVersion {
			return false, nil
		}
		if version < prev.DataVersion {
			logger.Warn("Backing store version went backwards, keeping snapshot",
				zap.Int64("published", prev.DataVersion),
				zap.Int64("store", version),
			)
			return false, nil
		}
		logger.Info("Data version changed",
			zap.Int64("from", prev.DataVersion),
			zap.Int64("to", version),
		)
	}

	m.state.Store(int32(StateLoading))
	next, err := m.load(ctx)
	if err != nil {
		if prev != nil {
			m.state.Store(int32(StateReady))
			logger.Error("Failed to load snapshot, keeping previous",
				zap.Int64("data_version", prev.DataVersion),
				zap.Error(err),
			)
		} else {
			m.state.Store(int32(StateAbsent))
			logger.Error("Failed to load snapshot", zap.Error(err))
		}
		return false, err
	}

	m.publish(next)
	return true, nil
}

func (m *Manager) publish(s *Snapshot) {
	m.current.Store(s)
	m.state.Store(int32(StateReady))

	m.subsMu.RLock()
	subs := append([]func(*Snapshot){}, m.subs...)
	m.subsMu.RUnlock()
	for _, fn := range subs {
		fn(s)
	}
}

// Run refreshes right away and then every interval until ctx is done.
// Failures are logged and retried on the next tick.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	m.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Refresh(ctx)
		}
	}
}
