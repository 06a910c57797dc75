package memdb

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	version atomic.Int64
	fail    atomic.Bool
	loads   atomic.Int32
}

func (f *fakeStore) manager() *Manager {
	return NewManagerFunc(
		func(context.Context) (int64, error) { return f.version.Load(), nil },
		func(context.Context) (*Snapshot, error) {
			f.loads.Add(1)
			if f.fail.Load() {
				return nil, errors.New("backing store unreachable")
			}
			return &Snapshot{DataVersion: f.version.Load(), SampleCount: 3}, nil
		},
	)
}

func TestManagerFirstAccessLoads(t *testing.T) {
	f := &fakeStore{}
	f.version.Store(1)
	m := f.manager()

	assert.Equal(t, StateAbsent, m.State())
	assert.Nil(t, m.Current())

	snap, err := m.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.DataVersion)
	assert.Equal(t, StateReady, m.State())

	// already there, no reload
	_, err = m.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.loads.Load())
}

func TestManagerRefreshOnlyOnNewVersion(t *testing.T) {
	f := &fakeStore{}
	f.version.Store(1)
	m := f.manager()
	ctx := context.Background()

	var published []int64
	m.OnPublish(func(s *Snapshot) { published = append(published, s.DataVersion) })

	changed, err := m.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	old := m.Current()

	changed, err = m.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	f.version.Store(2)
	changed, err = m.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(2), m.Current().DataVersion)

	// readers holding the old snapshot are unaffected
	assert.Equal(t, int64(1), old.DataVersion)
	assert.Equal(t, []int64{1, 2}, published)
}

func TestManagerKeepsSnapshotOnFailure(t *testing.T) {
	f := &fakeStore{}
	f.version.Store(1)
	m := f.manager()
	ctx := context.Background()

	_, err := m.Refresh(ctx)
	require.NoError(t, err)

	f.version.Store(2)
	f.fail.Store(true)
	changed, err := m.Refresh(ctx)
	assert.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, int64(1), m.Current().DataVersion)
	assert.Equal(t, StateReady, m.State())

	// next attempt retries
	f.fail.Store(false)
	changed, err = m.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(2), m.Current().DataVersion)
}

func TestManagerNotReady(t *testing.T) {
	f := &fakeStore{}
	f.fail.Store(true)
	m := f.manager()

	_, err := m.Get(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, StateAbsent, m.State())
}

func TestManagerIgnoresOlderVersion(t *testing.T) {
	f := &fakeStore{}
	f.version.Store(5)
	m := f.manager()
	ctx := context.Background()

	_, err := m.Refresh(ctx)
	require.NoError(t, err)

	f.version.Store(4)
	changed, err := m.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, int64(5), m.Current().DataVersion)
}

func TestManagerRefreshIsSerialized(t *testing.T) {
	f := &fakeStore{}
	f.version.Store(1)
	m := f.manager()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Refresh(context.Background())
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), f.loads.Load())
}

func TestManagerRunPicksUpNewVersions(t *testing.T) {
	f := &fakeStore{}
	f.version.Store(1)
	m := f.manager()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		s := m.Current()
		return s != nil && s.DataVersion == 1
	}, time.Second, 5*time.Millisecond)

	f.version.Store(3)
	require.Eventually(t, func() bool {
		return m.Current().DataVersion == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestManagerWithDatabaseSource(t *testing.T) {
	l := fixtureDB(t)
	m := NewManager(l)
	ctx := context.Background()

	snap, err := m.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, snap.SampleCount)

	require.NoError(t, l.SetDataVersion(ctx, 1700000500))
	changed, err := m.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(1700000500), m.Current().DataVersion)
}

func TestLoadFailureFromSource(t *testing.T) {
	src := &memSource{version: 1, refs: map[string]string{"": "ACGT"}, failWith: errors.New("boom")}
	_, err := Load(context.Background(), src)
	assert.Error(t, err)

	src = &memSource{version: 1}
	_, err = Load(context.Background(), src)
	assert.Error(t, err)
}

func TestManagerServesPublishedSnapshotDuringRebuild(t *testing.T) {
	var version atomic.Int64
	version.Store(1)
	entered := make(chan struct{})
	release := make(chan struct{})
	m := NewManagerFunc(
		func(context.Context) (int64, error) { return version.Load(), nil },
		func(context.Context) (*Snapshot, error) {
			v := version.Load()
			if v == 2 {
				close(entered)
				<-release
			}
			return &Snapshot{DataVersion: v, SampleCount: 1}, nil
		},
	)
	ctx := context.Background()

	_, err := m.Refresh(ctx)
	require.NoError(t, err)
	v1 := m.Current()

	version.Store(2)
	done := make(chan error, 1)
	go func() {
		_, err := m.Refresh(ctx)
		done <- err
	}()
	<-entered

	assert.Equal(t, StateLoading, m.State())
	assert.Same(t, v1, m.Current())

	got := make(chan *Snapshot, 1)
	go func() {
		s, _ := m.Get(ctx)
		got <- s
	}()
	select {
	case s := <-got:
		assert.Same(t, v1, s)
	case <-time.After(time.Second):
		t.Fatal("Get waited for the rebuild")
	}

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int64(2), m.Current().DataVersion)
	assert.Equal(t, StateReady, m.State())
	assert.Equal(t, int64(1), v1.DataVersion)
}
