// Package ctydb keeps the current DXCC resolver loaded and up to date.
//
// The resolver is rebuilt from scratch on every update and swapped in
// atomically, so lookups never see a partially loaded table.
package ctydb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"github.com/user00265/hamtools/internal/cty"
	"github.com/user00265/hamtools/internal/ctyfile"
	"github.com/user00265/hamtools/internal/ctystore"
	"github.com/user00265/hamtools/internal/dxcc"
	"github.com/user00265/hamtools/internal/logging"
	"github.com/user00265/hamtools/internal/metrics"
)

const (
	defaultWatchDebounce  = 500 * time.Millisecond
	defaultRefreshTimeout = 10 * time.Minute
)

// Origins reported in Stats.
const (
	OriginFile     = "file"
	OriginSQLite   = "sqlite"
	OriginRedis    = "redis"
	OriginDownload = "download"
)

// ErrNotLoaded is returned by lookups before any database was loaded.
var ErrNotLoaded = errors.New("country database not loaded")

// Downloader fetches the raw country file.
type Downloader interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// SnapshotCache shares the raw country file between instances.
type SnapshotCache interface {
	PutSnapshot(ctx context.Context, data []byte, source string) error
	GetSnapshot(ctx context.Context) (data []byte, source string, ok bool, err error)
}

// Options configures a Manager. Store, Cache, Downloader and Metrics are
// optional.
type Options struct {
	CtyFile        string
	CtyURL         string
	Charset        string
	UpdateInterval time.Duration

	// WatchDebounce delays a CtyFile reload after the last change event.
	WatchDebounce time.Duration
	// RefreshTimeout bounds a shared refresh, which outlives the caller
	// that started it.
	RefreshTimeout time.Duration

	Store      *ctystore.Store
	Cache      SnapshotCache
	Downloader Downloader
	Metrics    *metrics.Metrics
}

// Stats describes the loaded database.
type Stats struct {
	Loaded   bool      `json:"loaded"`
	Entities int       `json:"entities"`
	Entries  int       `json:"entries"`
	Origin   string    `json:"origin,omitempty"`
	Source   string    `json:"source,omitempty"`
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
}

type snapshot struct {
	resolver *dxcc.Resolver
	origin   string
	source   string
	loadedAt time.Time
}

// Manager owns the current resolver.
type Manager struct {
	opts    Options
	current atomic.Pointer[snapshot]

	refresh    singleflight.Group
	updateStop chan struct{}
	updateDone chan struct{}
}

// New returns a Manager with nothing loaded.
func New(opts Options) *Manager {
	return &Manager{opts: opts}
}

// Resolver returns the current resolver, or nil before the first load.
func (m *Manager) Resolver() *dxcc.Resolver {
	if s := m.current.Load(); s != nil {
		return s.resolver
	}
	return nil
}

// Resolve looks call up in the current database.
func (m *Manager) Resolve(call string) (dxcc.Resolved, error) {
	r := m.Resolver()
	if r == nil {
		return dxcc.Resolved{}, ErrNotLoaded
	}
	return r.Resolve(call)
}

// Stats reports what is currently loaded.
func (m *Manager) Stats() Stats {
	s := m.current.Load()
	if s == nil {
		return Stats{}
	}
	t := s.resolver.Table()
	loadedAt := s.loadedAt
	return Stats{
		Loaded:   true,
		Entities: t.Len(),
		Entries:  t.EntryCount(),
		Origin:   s.origin,
		Source:   s.source,
		LoadedAt: &loadedAt,
	}
}

// Load installs the first usable database. A configured CTY_FILE always
// wins. Otherwise a SQLite snapshot younger than the update interval is
// used, then a Redis snapshot, then a fresh download. A stale SQLite
// snapshot is the last resort when the download fails.
func (m *Manager) Load(ctx context.Context) error {
	if m.opts.CtyFile != "" {
		return m.loadFile()
	}

	var stale []cty.Record
	var staleSource string
	if m.opts.Store != nil {
		recs, meta, fresh, err := m.storedRecords(ctx)
		switch {
		case err != nil:
			logging.Warn("Failed to read stored country database: %v", err)
		case fresh:
			ierr := m.install(recs, OriginSQLite, meta.Source)
			if ierr == nil {
				logging.Notice("Country database loaded from SQLite (saved %s).", meta.LastUpdated.Format(time.RFC3339))
				return nil
			}
			logging.Warn("Stored country database is unusable: %v", ierr)
		default:
			stale, staleSource = recs, meta.Source
		}
	}

	if m.opts.Cache != nil {
		cerr := m.loadCache(ctx)
		if cerr == nil {
			return nil
		}
		if !errors.Is(cerr, errNoSnapshot) {
			logging.Warn("Failed to load country database from Redis: %v", cerr)
		}
	}

	err := m.Refresh(ctx)
	if err == nil {
		return nil
	}
	if len(stale) > 0 {
		if ierr := m.install(stale, OriginSQLite, staleSource); ierr == nil {
			logging.Warn("Country database download failed (%v). Using stale SQLite snapshot.", err)
			return nil
		}
	}
	return err
}

// Refresh downloads the country file (or rereads CtyFile) and installs
// it. The previous database stays in place when any step fails.
// Concurrent calls share one download. The download is detached from
// the caller that started it, so a caller whose ctx ends returns early
// while the others keep waiting for the result.
func (m *Manager) Refresh(ctx context.Context) error {
	ch := m.refresh.DoChan("refresh", func() (any, error) {
		timeout := m.opts.RefreshTimeout
		if timeout <= 0 {
			timeout = defaultRefreshTimeout
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return nil, m.doRefresh(rctx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) doRefresh(ctx context.Context) error {
	if m.opts.CtyFile != "" {
		return m.loadFile()
	}
	if m.opts.Downloader == nil || m.opts.CtyURL == "" {
		return fmt.Errorf("no country file source configured")
	}

	logging.Info("Downloading country database from %s...", m.opts.CtyURL)
	data, err := m.opts.Downloader.Fetch(ctx, m.opts.CtyURL)
	if err != nil {
		m.opts.Metrics.ObserveLoad(OriginDownload, 0, 0, err)
		return fmt.Errorf("failed to download country database: %w", err)
	}
	recs, err := ctyfile.ParseCharset(bytes.NewReader(data), m.opts.Charset)
	if err != nil {
		m.opts.Metrics.ObserveLoad(OriginDownload, 0, 0, err)
		return fmt.Errorf("failed to parse downloaded country database: %w", err)
	}
	if err := m.install(recs, OriginDownload, m.opts.CtyURL); err != nil {
		return err
	}
	logging.Notice("Country database downloaded: %d entities.", len(recs))

	if m.opts.Store != nil {
		if err := m.opts.Store.Save(ctx, recs, m.opts.CtyURL); err != nil {
			logging.Warn("Failed to save country database to SQLite: %v", err)
		}
	}
	if m.opts.Cache != nil {
		if err := m.opts.Cache.PutSnapshot(ctx, data, m.opts.CtyURL); err != nil {
			logging.Warn("Failed to share country database via Redis: %v", err)
		}
	}
	return nil
}

// StartUpdater keeps the database current until ctx is done or Close is
// called. A CtyFile is watched and reloaded when it changes; otherwise the
// download is repeated every UpdateInterval.
func (m *Manager) StartUpdater(ctx context.Context) {
	if m.updateStop != nil {
		return
	}
	if m.opts.CtyFile != "" {
		m.startWatcher(ctx)
		return
	}
	if m.opts.UpdateInterval <= 0 {
		return
	}
	m.updateStop = make(chan struct{})
	m.updateDone = make(chan struct{})

	go func() {
		defer close(m.updateDone)
		ticker := time.NewTicker(m.opts.UpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := m.Refresh(ctx); err != nil {
					logging.Error("Scheduled country database update failed: %v", err)
				}
			case <-m.updateStop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	logging.Notice("Country database updater started. Will refresh every %s.", m.opts.UpdateInterval)
}

// startWatcher reloads CtyFile after it changes. The parent directory is
// watched so editors that replace the file by rename are seen too.
func (m *Manager) startWatcher(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("Cannot watch %s for changes: %v", m.opts.CtyFile, err)
		return
	}
	target := filepath.Clean(m.opts.CtyFile)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		logging.Warn("Cannot watch %s for changes: %v", m.opts.CtyFile, err)
		_ = watcher.Close()
		return
	}
	debounce := m.opts.WatchDebounce
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}

	m.updateStop = make(chan struct{})
	m.updateDone = make(chan struct{})
	go func() {
		defer close(m.updateDone)
		defer watcher.Close()
		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-m.updateStop:
				return
			case <-ctx.Done():
				return
			case <-timerC:
				timerC = nil
				if err := m.Refresh(ctx); err != nil {
					logging.Error("Reloading %s failed, keeping the current database: %v", target, err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn("Country file watcher error: %v", err)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != target || !evt.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(debounce)
				}
				timerC = timer.C
			}
		}
	}()
	logging.Notice("Watching %s for changes.", target)
}

// Close stops the updater and waits for it to exit.
func (m *Manager) Close() error {
	if m.updateStop == nil {
		return nil
	}
	select {
	case <-m.updateStop:
	default:
		close(m.updateStop)
	}
	<-m.updateDone
	return nil
}

var errNoSnapshot = errors.New("no snapshot")

func (m *Manager) loadFile() error {
	recs, err := ctyfile.ParseFile(m.opts.CtyFile, m.opts.Charset)
	if err != nil {
		m.opts.Metrics.ObserveLoad(OriginFile, 0, 0, err)
		return err
	}
	if err := m.install(recs, OriginFile, m.opts.CtyFile); err != nil {
		return err
	}
	logging.Notice("Country database loaded from %s: %d entities.", m.opts.CtyFile, len(recs))
	return nil
}

func (m *Manager) loadCache(ctx context.Context) error {
	data, source, ok, err := m.opts.Cache.GetSnapshot(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errNoSnapshot
	}
	recs, err := ctyfile.ParseCharset(bytes.NewReader(data), m.opts.Charset)
	if err != nil {
		return fmt.Errorf("failed to parse Redis snapshot: %w", err)
	}
	if err := m.install(recs, OriginRedis, source); err != nil {
		return err
	}
	logging.Notice("Country database loaded from Redis snapshot: %d entities.", len(recs))
	if m.opts.Store != nil {
		if err := m.opts.Store.Save(ctx, recs, source); err != nil {
			logging.Warn("Failed to save Redis snapshot to SQLite: %v", err)
		}
	}
	return nil
}

func (m *Manager) storedRecords(ctx context.Context) ([]cty.Record, ctystore.Metadata, bool, error) {
	meta, ok, err := m.opts.Store.Metadata(ctx)
	if err != nil || !ok {
		return nil, ctystore.Metadata{}, false, err
	}
	recs, err := m.opts.Store.Load(ctx)
	if err != nil {
		return nil, meta, false, err
	}
	if len(recs) == 0 {
		return nil, meta, false, nil
	}
	fresh := m.opts.UpdateInterval <= 0 || time.Since(meta.LastUpdated) < m.opts.UpdateInterval
	return recs, meta, fresh, nil
}

func (m *Manager) install(recs []cty.Record, origin, source string) error {
	table, err := cty.Build(recs)
	if err == nil && table.Len() == 0 {
		err = fmt.Errorf("no entities")
	}
	if err != nil {
		m.opts.Metrics.ObserveLoad(origin, 0, 0, err)
		return fmt.Errorf("failed to build country table from %s: %w", origin, err)
	}
	m.opts.Metrics.ObserveLoad(origin, table.Len(), table.EntryCount(), nil)
	m.current.Store(&snapshot{
		resolver: dxcc.NewResolver(table),
		origin:   origin,
		source:   source,
		loadedAt: time.Now().UTC(),
	})
	return nil
}
