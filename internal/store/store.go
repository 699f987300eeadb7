package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/onyx/internal/models"
	"github.com/desertthunder/onyx/internal/shared"
)

const persistTimeout = 5 * time.Second

// snapshot is the persisted form of the durable maps.
type snapshot struct {
	TrackMetadata map[string]models.TrackMetadata `json:"trackMetadata"`
	YouTubeURLs   map[string]models.ExpiringURL   `json:"youtubeUrls"`
	LearningCache map[string]string               `json:"learningCache"`
	Preferences   *models.Preferences             `json:"preferences,omitempty"`
	SavedAt       string                          `json:"savedAt"`
}

// Options configures a [Store]. Zero values take the defaults from [shared].
type Options struct {
	Persister   Persister
	AudioDir    string
	MaxFiles    int
	URLTTL      time.Duration
	StreamTTL   time.Duration
	GenericTTL  time.Duration
	MetadataTTL time.Duration // zero keeps metadata forever
	Logger      *log.Logger
	Now         func() time.Time
}

// Store is the tiered cache: durable maps persisted as one snapshot, volatile TTL caches, and the on-disk audio cache.
type Store struct {
	mu       sync.RWMutex
	metadata map[string]models.TrackMetadata
	urls     map[string]models.ExpiringURL
	learned  map[string]string
	prefs    models.Preferences

	persistMu sync.Mutex
	persister Persister

	generic *volatileCache
	streams *volatileCache
	files   *FileCache
	queue   *Queue

	maxFiles    int
	urlTTL      time.Duration
	metadataTTL time.Duration
	logger      *log.Logger
	now         func() time.Time
}

// New builds a store and loads the durable snapshot.
//
// A missing or malformed snapshot results in empty state, never an error.
func New(opts Options) (*Store, error) {
	if opts.Persister == nil {
		return nil, fmt.Errorf("%w: store requires a persister", shared.ErrInvalidConfig)
	}
	if opts.AudioDir == "" {
		return nil, fmt.Errorf("%w: store requires an audio directory", shared.ErrInvalidConfig)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = shared.DefaultMaxFiles
	}
	if opts.URLTTL <= 0 {
		opts.URLTTL = shared.DefaultURLTTL
	}
	if opts.StreamTTL <= 0 {
		opts.StreamTTL = shared.DefaultStreamTTL
	}
	if opts.GenericTTL <= 0 {
		opts.GenericTTL = shared.DefaultGenericTTL
	}

	logger := shared.WithLogger(opts.Logger, "component", "store")
	s := &Store{
		metadata:    make(map[string]models.TrackMetadata),
		urls:        make(map[string]models.ExpiringURL),
		learned:     make(map[string]string),
		persister:   opts.Persister,
		generic:     newVolatileCache(opts.GenericTTL),
		streams:     newVolatileCache(opts.StreamTTL),
		files:       NewFileCache(opts.AudioDir, logger),
		queue:       &Queue{},
		maxFiles:    opts.MaxFiles,
		urlTTL:      opts.URLTTL,
		metadataTTL: opts.MetadataTTL,
		logger:      logger,
		now:         opts.Now,
	}

	if err := s.files.EnsureDir(); err != nil {
		return nil, err
	}
	s.files.SweepPartials()

	s.load()
	return s, nil
}

// load replaces in-memory durable state with the persisted snapshot, dropping expired URLs.
func (s *Store) load() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	data, err := s.persister.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		s.logger.Debug("no cache snapshot, starting empty")
		return
	}
	if err != nil {
		s.logger.Warn("cache snapshot unreadable, starting empty", "err", err)
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("cache snapshot corrupt, starting empty", "err", fmt.Errorf("%w: %v", shared.ErrCacheCorrupt, err))
		return
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.TrackMetadata != nil {
		s.metadata = snap.TrackMetadata
	}
	if snap.LearningCache != nil {
		s.learned = snap.LearningCache
	}
	dropped := 0
	for id, entry := range snap.YouTubeURLs {
		if entry.Expired(now) {
			dropped++
			continue
		}
		s.urls[id] = entry
	}
	if snap.Preferences != nil {
		s.prefs = *snap.Preferences
	}

	s.logger.Info("cache snapshot loaded",
		"tracks", len(s.metadata), "urls", len(s.urls), "matches", len(s.learned), "expired", dropped)
}

// persist writes the full durable state. Writes are serialised so the last mutation always wins.
func (s *Store) persist() error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	prefs := s.prefs
	data, err := json.MarshalIndent(snapshot{
		TrackMetadata: s.metadata,
		YouTubeURLs:   s.urls,
		LearningCache: s.learned,
		Preferences:   &prefs,
		SavedAt:       s.now().UTC().Format(time.RFC3339Nano),
	}, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.persister.Save(ctx, data); err != nil {
		s.logger.Error("failed to persist cache snapshot", "err", err)
		return err
	}
	return nil
}

// Flush persists the current durable state.
func (s *Store) Flush() error {
	return s.persist()
}

// Close flushes the snapshot and releases the persister.
func (s *Store) Close() error {
	return errors.Join(s.persist(), s.persister.Close())
}

// Metadata returns cached track metadata.
//
// When a metadata TTL is configured, entries older than it are evicted on read.
func (s *Store) Metadata(trackID string) (models.TrackMetadata, bool) {
	s.mu.RLock()
	meta, ok := s.metadata[trackID]
	s.mu.RUnlock()
	if !ok {
		return models.TrackMetadata{}, false
	}

	if s.metadataTTL > 0 && meta.FetchedAt != nil && s.now().Sub(*meta.FetchedAt) >= s.metadataTTL {
		s.mu.Lock()
		delete(s.metadata, trackID)
		s.mu.Unlock()
		_ = s.persist() // logged by persist; reads do not fail on a save error
		return models.TrackMetadata{}, false
	}
	return meta, true
}

// SetMetadata upserts track metadata and persists the snapshot.
func (s *Store) SetMetadata(trackID string, meta models.TrackMetadata) error {
	if meta.FetchedAt == nil {
		now := s.now().UTC()
		meta.FetchedAt = &now
	}

	s.mu.Lock()
	s.metadata[trackID] = meta
	s.mu.Unlock()
	return s.persist()
}

// ExpiringURL returns the URL stored for trackID, evicting it if expired.
func (s *Store) ExpiringURL(trackID string) (string, bool) {
	s.mu.RLock()
	entry, ok := s.urls[trackID]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}

	if entry.Expired(s.now()) {
		s.mu.Lock()
		if cur, still := s.urls[trackID]; still && cur == entry {
			delete(s.urls, trackID)
		}
		s.mu.Unlock()
		_ = s.persist() // logged by persist
		return "", false
	}
	return entry.URL, true
}

// SetExpiringURL stores url for ttl, or the configured URL TTL when ttl <= 0.
func (s *Store) SetExpiringURL(trackID, url string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.urlTTL
	}

	s.mu.Lock()
	s.urls[trackID] = models.ExpiringURL{URL: url, ExpiresAt: s.now().Add(ttl).UnixMilli()}
	s.mu.Unlock()
	return s.persist()
}

// LearnedMatch returns the video id previously resolved for trackID.
func (s *Store) LearnedMatch(trackID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	videoID, ok := s.learned[trackID]
	return videoID, ok && videoID != ""
}

// SetLearnedMatch records trackID → videoID. It overwrites an existing match.
func (s *Store) SetLearnedMatch(trackID, videoID string) error {
	s.mu.Lock()
	s.learned[trackID] = videoID
	s.mu.Unlock()
	return s.persist()
}

// ClearLearnedMatch forgets the match for trackID so the next resolve searches again.
//
// It reports whether a match was present.
func (s *Store) ClearLearnedMatch(trackID string) (bool, error) {
	s.mu.Lock()
	_, ok := s.learned[trackID]
	delete(s.learned, trackID)
	s.mu.Unlock()

	if !ok {
		return false, nil
	}
	return true, s.persist()
}

// LearnedMatches returns a copy of all learned matches.
func (s *Store) LearnedMatches() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.learned)
}

func (s *Store) Preferences() models.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

func (s *Store) SetPreferences(p models.Preferences) error {
	s.mu.Lock()
	s.prefs = p
	s.mu.Unlock()
	return s.persist()
}

// Generic returns a volatile entry.
func (s *Store) Generic(key string) (any, bool) {
	return s.generic.Get(key)
}

// SetGeneric stores a volatile entry for ttl, or one hour when ttl <= 0.
func (s *Store) SetGeneric(key string, v any, ttl time.Duration) {
	s.generic.Set(key, v, ttl)
}

// StreamURL returns the cached direct audio URL for a video.
func (s *Store) StreamURL(videoID string) (string, bool) {
	v, ok := s.streams.Get(videoID)
	if !ok {
		return "", false
	}
	url, ok := v.(string)
	return url, ok
}

// SetStreamURL caches a direct audio URL for ttl, or six hours when ttl <= 0.
func (s *Store) SetStreamURL(videoID, url string, ttl time.Duration) {
	s.streams.Set(videoID, url, ttl)
}

// CacheFilePath maps a video id to its expected audio file location.
func (s *Store) CacheFilePath(videoID string) string {
	return s.files.Path(videoID)
}

// PartialFilePath returns a temporary download location for videoID next to the cached files.
func (s *Store) PartialFilePath(videoID string) string {
	return s.files.PartialPath(videoID)
}

// HasFile reports whether the audio file for videoID exists.
func (s *Store) HasFile(videoID string) bool {
	return s.files.Exists(videoID)
}

// EvictOldFiles trims the audio cache to maxFiles, or the configured bound when maxFiles <= 0.
func (s *Store) EvictOldFiles(maxFiles int) (int, error) {
	if maxFiles <= 0 {
		maxFiles = s.maxFiles
	}
	return s.files.Evict(maxFiles)
}

// FileStats reports the audio cache contents.
func (s *Store) FileStats() (FileStats, error) {
	return s.files.Stats()
}

// Files exposes the audio file cache.
func (s *Store) Files() *FileCache { return s.files }

// Queue exposes the prefetch queue.
func (s *Store) Queue() *Queue { return s.queue }

// ClearAll empties every namespace and deletes every cached audio file.
//
// Metadata clearing and file deletion are independent: a failure in one does not stop the other.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	s.metadata = make(map[string]models.TrackMetadata)
	s.urls = make(map[string]models.ExpiringURL)
	s.learned = make(map[string]string)
	s.mu.Unlock()

	s.generic.Flush()
	s.streams.Flush()
	s.queue.Clear()

	persistErr := s.persist()

	removed, filesErr := s.files.Clear()
	s.logger.Info("cache cleared", "files", removed)

	return errors.Join(persistErr, filesErr)
}

// Stats is a point-in-time summary of the store.
type Stats struct {
	Tracks   int
	URLs     int
	Matches  int
	Generic  int
	Streams  int
	Queued   int
	Files    FileStats
	DataSave bool
}

func (s *Store) Stats() (Stats, error) {
	s.mu.RLock()
	st := Stats{
		Tracks:   len(s.metadata),
		URLs:     len(s.urls),
		Matches:  len(s.learned),
		DataSave: s.prefs.DataSaver,
	}
	s.mu.RUnlock()

	st.Generic = s.generic.ItemCount()
	st.Streams = s.streams.ItemCount()
	st.Queued = s.queue.Len()

	files, err := s.files.Stats()
	st.Files = files
	return st, err
}
