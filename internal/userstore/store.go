package userstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/clusterwatch"
	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/docstore"
	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/hasher"
	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/lock"
	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/realmcache"
)

const docType = "user"

// Store is the native user store's public surface: the lifecycle
// controller plus the read and mutation operations layered on top of it.
type Store interface {
	CanStart(snapshot clusterwatch.Snapshot, isMaster bool) bool
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	OnClusterChanged(snapshot clusterwatch.Snapshot)
	Reset() error
	State() State

	GetUser(ctx context.Context, username string) *User
	GetUserAsync(ctx context.Context, username string, continuation func(*User, error))
	GetUsers(ctx context.Context, usernames []string) ([]User, error)
	VerifyPassword(ctx context.Context, username, plaintext string) *User

	Put(ctx context.Context, req PutRequest, refresh bool) error
	Delete(ctx context.Context, username string, refresh bool) (bool, error)

	RegisterListener(l Listener)
}

// Config holds the store's own tunables, mirroring spec §6.
type Config struct {
	IndexName       string
	ScrollSize      int
	ScrollKeepAlive time.Duration
	ReloadInterval  time.Duration
	GetTimeout      time.Duration
}

func (c Config) withDefaults() Config {
	if c.IndexName == "" {
		c.IndexName = "security-users"
	}
	if c.ScrollSize <= 0 {
		c.ScrollSize = 1000
	}
	if c.ScrollKeepAlive <= 0 {
		c.ScrollKeepAlive = 10 * time.Second
	}
	if c.ReloadInterval <= 0 {
		c.ReloadInterval = 30 * time.Second
	}
	if c.GetTimeout <= 0 {
		c.GetTimeout = 30 * time.Second
	}
	return c
}

// DefaultStore is the lifecycle controller: it owns the poller, the version
// map, the listener registry and the backing-client reference, per §3's
// ownership rule. The indexReady flag and the lifecycle state are the only
// pieces of process-wide mutable state, and both are addressable from the
// cluster-change callback and the poller without locks (§5 "Shared-resource
// policy").
type DefaultStore struct {
	config Config
	client docstore.Client
	purger realmcache.Purger
	hasher hasher.Hasher
	lock   *lock.DistributedLock

	logger *slog.Logger
	metr   *Metrics

	state      *stateCell
	indexReady atomicBool

	versions  *VersionMap
	listeners *listenerRegistry

	validate *validator.Validate

	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// NewStore constructs a store bound to its collaborators. Per the teacher's
// convention, a nil required dependency panics at construction rather than
// surfacing a runtime nil-pointer deref later. distLock may be nil: a
// single-instance deployment does not need cross-instance poll
// serialization.
func NewStore(cfg Config, client docstore.Client, purger realmcache.Purger, h hasher.Hasher, distLock *lock.DistributedLock, metr *Metrics, logger *slog.Logger) *DefaultStore {
	if client == nil {
		panic("userstore: docstore client is required")
	}
	if purger == nil {
		panic("userstore: realm cache purger is required")
	}
	if h == nil {
		panic("userstore: hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &DefaultStore{
		config:    cfg.withDefaults(),
		client:    client,
		purger:    purger,
		hasher:    h,
		lock:      distLock,
		logger:    logger.With("component", "userstore"),
		metr:      metr,
		state:     newStateCell(),
		versions:  newVersionMap(),
		listeners: newListenerRegistry(),
		validate:  validator.New(),
	}
}

// CanStart implements §4.1's canStart: true only from INITIALIZED, when the
// cluster has recovered, the template is present, and the index is either
// absent or fully primary-active.
func (s *DefaultStore) CanStart(snapshot clusterwatch.Snapshot, isMaster bool) bool {
	if s.state.Load() != StateInitialized {
		return false
	}
	if !snapshot.Recovered || !snapshot.TemplatePresent {
		return false
	}
	return snapshot.PrimaryActive || !s.indexExists()
}

func (s *DefaultStore) indexExists() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.client.Search(ctx, s.config.IndexName, docType, nil, false, 1, s.config.ScrollKeepAlive)
	return err == nil
}

// OnClusterChanged implements §4.1: the indexReady flag is set true only
// when the index exists and is fully primary-active; this gates the
// poller, never reads.
func (s *DefaultStore) OnClusterChanged(snapshot clusterwatch.Snapshot) {
	ready := s.indexExists() && snapshot.PrimaryActive
	s.indexReady.Store(ready)
}

// Start implements §4.1's start(): INITIALIZED -> STARTING, one synchronous
// poll (errors logged, not fatal), then the fixed-delay scheduler, then
// STARTED. Any failure along the way transitions to FAILED.
func (s *DefaultStore) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(StateInitialized, StateStarting) {
		return ErrAlreadyStarted
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	s.pollCancel = cancel
	s.pollDone = make(chan struct{})

	if err := s.runPollIteration(ctx); err != nil {
		s.logger.Warn("initial poll iteration failed", "error", err)
	}

	go s.runScheduler(pollCtx)

	s.state.Store(StateStarted)
	s.recordState()
	s.logger.Info("userstore started")
	return nil
}

// Stop implements §4.1's stop(): STARTED -> STOPPING, best-effort cancel of
// the scheduled poll (an in-flight iteration is not interrupted), then
// STOPPED.
func (s *DefaultStore) Stop(ctx context.Context) error {
	if !s.state.CompareAndSwap(StateStarted, StateStopping) {
		return ErrNotStarted
	}

	if s.pollCancel != nil {
		s.pollCancel()
	}
	if s.pollDone != nil {
		select {
		case <-s.pollDone:
		case <-ctx.Done():
		}
	}

	s.state.Store(StateStopped)
	s.recordState()
	s.logger.Info("userstore stopped")
	return nil
}

// Reset implements §4.1's reset(): test-only, valid only from STOPPED or
// FAILED, clears the version map, listeners and cached readiness, and
// returns to INITIALIZED. Fails loudly (returns an error) otherwise, per
// the source's louder treatment of illegal reset attempts.
func (s *DefaultStore) Reset() error {
	current := s.state.Load()
	if current != StateStopped && current != StateFailed {
		return ErrResetNotAllowed
	}

	s.versions.Reset()
	s.listeners.Reset()
	s.indexReady.Store(false)
	s.state.Store(StateInitialized)
	s.recordState()
	return nil
}

// State reports the current lifecycle state, for health reporting.
func (s *DefaultStore) State() State {
	return s.state.Load()
}

func (s *DefaultStore) requireStarted() error {
	if s.state.Load() != StateStarted {
		return ErrNotStarted
	}
	return nil
}

func (s *DefaultStore) RegisterListener(l Listener) {
	s.listeners.Register(l)
}

func (s *DefaultStore) recordState() {
	if s.metr == nil {
		return
	}
	s.metr.stateGauge.Set(float64(s.state.Load()))
}

func (s *DefaultStore) fail(err error) error {
	s.state.Store(StateFailed)
	s.recordState()
	s.logger.Error("userstore failed", "error", err)
	return err
}

var _ Store = (*DefaultStore)(nil)
