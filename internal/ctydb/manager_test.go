package ctydb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user00265/hamtools/internal/config"
	"github.com/user00265/hamtools/internal/ctystore"
	"github.com/user00265/hamtools/internal/db"
	"github.com/user00265/hamtools/internal/dxcc"
	"github.com/user00265/hamtools/internal/metrics"
	"github.com/user00265/hamtools/internal/redisclient"
)

const testURL = "https://cty.example.invalid/cty.dat"

const sampleCty = `United States:            05:  08:  NA:   37.53:    91.67:     5.0:  K:
    AA,K,N,W,
    =W1AW/KH2;
Hawaii:                   31:  61:  OC:   21.12:   157.48:    10.0:  KH6:
    AH6,KH6,NH6,WH6;
Guam:                     27:  64:  OC:   13.37:  -144.70:   -10.0:  KH2:
    AH2,KH2,NH2,WH2;
`

type fakeDownloader struct {
	mu    sync.Mutex
	calls int
	data  []byte
	err   error
}

func (f *fakeDownloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func (f *fakeDownloader) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeDownloader) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func newStore(t *testing.T, dir string) *ctystore.Store {
	t.Helper()
	client, err := db.NewSQLiteClient(dir, ctystore.DBFileName)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	store, err := ctystore.New(client)
	require.NoError(t, err)
	return store
}

func newCache(t *testing.T) (*miniredis.Miniredis, *redisclient.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	client, err := redisclient.NewClient(context.Background(), config.RedisConfig{
		Enabled:   true,
		Host:      s.Host(),
		Port:      s.Port(),
		CtyExpiry: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return s, client
}

func TestManager_NotLoaded(t *testing.T) {
	m := New(Options{})
	assert.Nil(t, m.Resolver())
	_, err := m.Resolve("W1AW")
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.False(t, m.Stats().Loaded)
}

func TestManager_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cty.dat")
	require.NoError(t, os.WriteFile(path, []byte(sampleCty), 0o644))

	dl := &fakeDownloader{data: []byte(sampleCty)}
	m := New(Options{CtyFile: path, CtyURL: testURL, Downloader: dl})
	require.NoError(t, m.Load(context.Background()))

	st := m.Stats()
	assert.True(t, st.Loaded)
	assert.Equal(t, OriginFile, st.Origin)
	require.NotNil(t, st.LoadedAt)
	assert.WithinDuration(t, time.Now(), *st.LoadedAt, time.Minute)
	assert.Equal(t, path, st.Source)
	assert.Equal(t, 3, st.Entities)
	assert.Equal(t, 13, st.Entries)
	assert.Zero(t, dl.Calls(), "a local file must not trigger a download")

	res, err := m.Resolve("w1aw/kh2")
	require.NoError(t, err)
	assert.Equal(t, "United States", res.Name)
	assert.True(t, res.Exact)

	res, err = m.Resolve("KH6ABC")
	require.NoError(t, err)
	assert.Equal(t, "KH6", res.Prefix)

	_, err = m.Resolve("ZZ9ZZ")
	assert.ErrorIs(t, err, dxcc.ErrNoMatch)
}

func TestManager_LoadFileErrors(t *testing.T) {
	m := New(Options{CtyFile: filepath.Join(t.TempDir(), "missing.dat")})
	assert.Error(t, m.Load(context.Background()))
	assert.False(t, m.Stats().Loaded)
}

func TestManager_DownloadPersistsAndShares(t *testing.T) {
	dir := t.TempDir()
	store := newStore(t, dir)
	s, cache := newCache(t)
	dl := &fakeDownloader{data: []byte(sampleCty)}

	m := New(Options{
		CtyURL:         testURL,
		UpdateInterval: time.Hour,
		Store:          store,
		Cache:          cache,
		Downloader:     dl,
	})
	require.NoError(t, m.Load(context.Background()))
	assert.Equal(t, OriginDownload, m.Stats().Origin)
	assert.Equal(t, 1, dl.Calls())

	meta, ok, err := store.Metadata(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testURL, meta.Source)
	assert.Equal(t, 3, meta.Entities)

	got, err := s.Get(redisclient.SnapshotKey)
	require.NoError(t, err)
	assert.Equal(t, sampleCty, got)

	// A second instance starts from the fresh SQLite snapshot.
	dl2 := &fakeDownloader{data: []byte(sampleCty)}
	m2 := New(Options{CtyURL: testURL, UpdateInterval: time.Hour, Store: store, Downloader: dl2})
	require.NoError(t, m2.Load(context.Background()))
	assert.Equal(t, OriginSQLite, m2.Stats().Origin)
	assert.Equal(t, testURL, m2.Stats().Source)
	assert.Zero(t, dl2.Calls())

	res, err := m2.Resolve("W1AW/KH2")
	require.NoError(t, err)
	assert.Equal(t, "United States", res.Name)
}

func TestManager_LoadFromRedis(t *testing.T) {
	store := newStore(t, t.TempDir())
	_, cache := newCache(t)
	require.NoError(t, cache.PutSnapshot(context.Background(), []byte(sampleCty), testURL))

	dl := &fakeDownloader{err: errors.New("offline")}
	m := New(Options{CtyURL: testURL, UpdateInterval: time.Hour, Store: store, Cache: cache, Downloader: dl})
	require.NoError(t, m.Load(context.Background()))

	assert.Equal(t, OriginRedis, m.Stats().Origin)
	assert.Equal(t, testURL, m.Stats().Source)
	assert.Zero(t, dl.Calls())

	recs, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 3, "Redis snapshot should be saved to SQLite")
}

func TestManager_StaleSnapshotFallback(t *testing.T) {
	store := newStore(t, t.TempDir())
	dl := &fakeDownloader{data: []byte(sampleCty)}
	seed := New(Options{CtyURL: testURL, Store: store, Downloader: dl})
	require.NoError(t, seed.Refresh(context.Background()))

	failing := &fakeDownloader{err: errors.New("offline")}
	m := New(Options{CtyURL: testURL, UpdateInterval: time.Nanosecond, Store: store, Downloader: failing})
	require.NoError(t, m.Load(context.Background()))
	assert.Equal(t, 1, failing.Calls(), "a stale snapshot must trigger a download attempt")
	assert.Equal(t, OriginSQLite, m.Stats().Origin)
}

func TestManager_LoadFailsWithoutAnySource(t *testing.T) {
	m := New(Options{CtyURL: testURL, Downloader: &fakeDownloader{err: errors.New("offline")}})
	err := m.Load(context.Background())
	assert.Error(t, err)
	assert.False(t, m.Stats().Loaded)
}

func TestManager_RefreshFailureKeepsCurrent(t *testing.T) {
	dl := &fakeDownloader{data: []byte(sampleCty)}
	m := New(Options{CtyURL: testURL, Downloader: dl})
	require.NoError(t, m.Refresh(context.Background()))
	before := m.Resolver()

	dl.Fail(errors.New("offline"))
	assert.Error(t, m.Refresh(context.Background()))
	assert.Same(t, before, m.Resolver())

	dl.Fail(nil)
	dl.data = []byte("not a cty file\n")
	assert.Error(t, m.Refresh(context.Background()))
	assert.Same(t, before, m.Resolver())
}

func TestManager_Updater(t *testing.T) {
	dl := &fakeDownloader{data: []byte(sampleCty)}
	m := New(Options{CtyURL: testURL, UpdateInterval: 10 * time.Millisecond, Downloader: dl})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartUpdater(ctx)
	m.StartUpdater(ctx) // second call is a no-op

	assert.Eventually(t, func() bool { return dl.Calls() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, m.Stats().Loaded)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	n := dl.Calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, dl.Calls(), "updater kept running after Close")
}

func TestManager_ConcurrentRefreshSharesDownload(t *testing.T) {
	dl := &slowDownloader{fakeDownloader: fakeDownloader{data: []byte(sampleCty)}, release: make(chan struct{})}
	m := New(Options{CtyURL: testURL, Downloader: dl})

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Refresh(context.Background())
		}()
	}
	assert.Eventually(t, func() bool { return dl.Calls() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(dl.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, dl.Calls(), 2, "concurrent refreshes should share a download")
	assert.True(t, m.Stats().Loaded)
}

type slowDownloader struct {
	fakeDownloader
	release chan struct{}
}

func (s *slowDownloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	data, err := s.fakeDownloader.Fetch(ctx, url)
	select {
	case <-s.release:
		return data, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestManager_RefreshSurvivesCancelledCaller(t *testing.T) {
	dl := &slowDownloader{fakeDownloader: fakeDownloader{data: []byte(sampleCty)}, release: make(chan struct{})}
	m := New(Options{CtyURL: testURL, Downloader: dl})

	first, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() { firstErr <- m.Refresh(first) }()
	require.Eventually(t, func() bool { return dl.Calls() == 1 }, time.Second, time.Millisecond)

	secondErr := make(chan error, 1)
	go func() { secondErr <- m.Refresh(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled Refresh did not return")
	}

	close(dl.release)
	select {
	case err := <-secondErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waiting Refresh did not return")
	}
	assert.Equal(t, 1, dl.Calls())
	assert.True(t, m.Stats().Loaded)
}

func TestManager_RefreshTimeout(t *testing.T) {
	dl := &slowDownloader{fakeDownloader: fakeDownloader{data: []byte(sampleCty)}, release: make(chan struct{})}
	defer close(dl.release)
	m := New(Options{CtyURL: testURL, Downloader: dl, RefreshTimeout: 30 * time.Millisecond})

	err := m.Refresh(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, m.Stats().Loaded)
}

func TestManager_Metrics(t *testing.T) {
	met := metrics.New()
	dl := &fakeDownloader{data: []byte(sampleCty)}
	m := New(Options{CtyURL: testURL, Downloader: dl, Metrics: met})
	require.NoError(t, m.Load(context.Background()))

	assert.Equal(t, 1.0, testutil.ToFloat64(met.Loads.WithLabelValues(OriginDownload, "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(met.Entities))
	assert.Equal(t, 13.0, testutil.ToFloat64(met.Entries))

	dl.Fail(errors.New("offline"))
	assert.Error(t, m.Refresh(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(met.Loads.WithLabelValues(OriginDownload, "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(met.Entities), "a failed refresh keeps the gauges")
}

func TestManager_WatchesCtyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cty.dat")
	require.NoError(t, os.WriteFile(path, []byte(sampleCty), 0o644))

	m := New(Options{CtyFile: path, WatchDebounce: 10 * time.Millisecond})
	require.NoError(t, m.Load(context.Background()))
	require.Equal(t, 3, m.Stats().Entities)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartUpdater(ctx)
	defer m.Close()

	// A broken edit keeps the current database.
	require.NoError(t, os.WriteFile(path, []byte("garbage\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 3, m.Stats().Entities)

	updated := sampleCty + "Alaska:                   01:  01:  NA:   61.40:   148.87:     9.0:  KL:\n    AL,KL,NL,WL;\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	assert.Eventually(t, func() bool { return m.Stats().Entities == 4 }, 3*time.Second, 10*time.Millisecond)

	res, err := m.Resolve("KL7AA")
	require.NoError(t, err)
	assert.Equal(t, "Alaska", res.Name)
}
