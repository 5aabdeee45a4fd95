package asset

import (
	"context"
	"fmt"
	"io/fs"
	"reflect"
	"sync"

	"github.com/plus3/kiln/ecs"
	"github.com/plus3/kiln/internal/taskpool"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

var (
	// ErrUnknownType is the cause of a failed load for a type with no registered loader.
	ErrUnknownType = eris.New("no loader registered for asset type")
	// ErrServerClosed is the cause of loads requested after Close.
	ErrServerClosed = eris.New("asset server closed")
)

// LoadState is the progress of one asset load.
type LoadState uint8

const (
	NotLoaded LoadState = iota
	Loading
	Loaded
	Failed
)

func (s LoadState) String() string {
	switch s {
	case NotLoaded:
		return "NotLoaded"
	case Loading:
		return "Loading"
	case Loaded:
		return "Loaded"
	case Failed:
		return "Failed"
	}
	return fmt.Sprintf("LoadState(%d)", uint8(s))
}

// LoadError reports a loader failure.
type LoadError struct {
	Path Path
	Type reflect.Type
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s %q: %v", e.Type, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader decodes one asset. It runs on a pool worker and may block.
type Loader[A any] func(ctx context.Context, lc *LoadContext) (A, error)

type assetType struct {
	typ      reflect.Type
	load     func(ctx context.Context, lc *LoadContext) (any, error)
	insert   func(id Id, value any)
	contains func(id Id) bool
	queue    *lifetimeQueue
}

type taskKey struct {
	typ reflect.Type
	id  Id
}

type task struct {
	serial uint64
	path   Path
	loaded bool
}

type completion struct {
	key    taskKey
	serial uint64
	value  any
	err    error
}

// Server starts asset loads on a worker pool and routes their results into the typed
// stores. All methods are safe for concurrent use; loaders call back into the server
// to load dependencies.
type Server struct {
	root   fs.FS
	pool   *taskpool.Pool
	logger zerolog.Logger

	mu          sync.Mutex
	types       map[reflect.Type]*assetType
	tasks       map[taskKey]*task
	failures    map[taskKey]*LoadError
	completions []completion
	serial      uint64
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithWorkers sets the loader pool size; zero or less uses one worker per logical CPU.
func WithWorkers(n int) ServerOption {
	return func(s *Server) {
		s.pool = taskpool.New(n)
	}
}

// WithLogger sets the logger used to report failed loads
func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server reading assets from root.
func NewServer(root fs.FS, opts ...ServerOption) *Server {
	s := &Server{
		root:     root,
		logger:   zerolog.Nop(),
		types:    make(map[reflect.Type]*assetType),
		tasks:    make(map[taskKey]*task),
		failures: make(map[taskKey]*LoadError),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pool == nil {
		s.pool = taskpool.New(0)
	}
	return s
}

// Register makes A loadable through loader and inserts a fresh Store[A] into w. It
// returns the store; registering A twice replaces the loader and keeps the store.
func Register[A any](w *ecs.World, s *Server, loader Loader[A]) *Store[A] {
	store := ecs.GetResource[Store[A]](w)
	if store == nil {
		store = NewStore[A]()
		w.InsertResource(store)
	}

	t := &assetType{
		typ: reflect.TypeFor[A](),
		load: func(ctx context.Context, lc *LoadContext) (any, error) {
			return loader(ctx, lc)
		},
		insert:   func(id Id, value any) { store.Insert(id, value.(A)) },
		contains: store.Contains,
		queue:    store.queue,
	}

	s.mu.Lock()
	s.types[t.typ] = t
	s.mu.Unlock()
	return store
}

// Load returns a handle to the asset at path, starting a load unless one is already in
// flight or finished for it. The handle is returned even when the load cannot start;
// the failure is then visible through LoadState and LoadError.
func Load[A any](s *Server, path string) *Handle[A] {
	p := NewPath(path)
	id := IdOf(p)
	key := taskKey{typ: reflect.TypeFor[A](), id: id}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.types[key.typ]
	if !ok {
		s.failures[key] = &LoadError{Path: p, Type: key.typ, Err: ErrUnknownType}
		return newHandle[A](id, p, nil)
	}
	h := newHandle[A](id, p, t.queue)
	if _, inFlight := s.tasks[key]; inFlight {
		return h
	}

	s.serial++
	entry := &task{serial: s.serial, path: p}
	s.tasks[key] = entry
	delete(s.failures, key)

	err := s.pool.Submit(func(ctx context.Context) {
		lc := &LoadContext{Path: p, server: s, root: s.root}
		value, err := t.load(ctx, lc)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		s.complete(completion{key: key, serial: entry.serial, value: value, err: err})
	})
	if err != nil {
		delete(s.tasks, key)
		s.failures[key] = &LoadError{Path: p, Type: key.typ, Err: ErrServerClosed}
	}
	return h
}

func (s *Server) complete(c completion) {
	s.mu.Lock()
	s.completions = append(s.completions, c)
	s.mu.Unlock()
}

// Pump routes finished loads into their stores and returns how many assets were
// inserted. A completion whose task was forgotten in the meantime is discarded. It must
// run with exclusive world access.
func (s *Server) Pump() int {
	s.mu.Lock()
	pending := s.completions
	s.completions = nil
	s.mu.Unlock()

	inserted := 0
	for _, c := range pending {
		s.mu.Lock()
		entry, ok := s.tasks[c.key]
		if !ok || entry.serial != c.serial {
			s.mu.Unlock()
			s.logger.Debug().Str("type", c.key.typ.String()).Str("id", c.key.id.String()).
				Msg("discarding completion of a forgotten load")
			continue
		}
		if c.err != nil {
			loadErr := &LoadError{Path: entry.path, Type: c.key.typ, Err: c.err}
			delete(s.tasks, c.key)
			s.failures[c.key] = loadErr
			s.mu.Unlock()
			s.logger.Warn().Err(c.err).Str("type", c.key.typ.String()).Str("path", entry.path.String()).
				Msg("asset load failed")
			continue
		}
		entry.loaded = true
		t := s.types[c.key.typ]
		s.mu.Unlock()

		t.insert(c.key.id, c.value)
		inserted++
	}
	return inserted
}

// forget drops the task entry of an asset whose last handle went away, so the next
// Load starts over.
func (s *Server) forget(typ reflect.Type, id Id) {
	key := taskKey{typ: typ, id: id}
	s.mu.Lock()
	delete(s.tasks, key)
	delete(s.failures, key)
	s.mu.Unlock()
}

// LoadState reports the progress of the asset behind h
func (s *Server) LoadState(h UntypedHandle) LoadState {
	key := taskKey{typ: h.Type(), id: h.Id()}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, failed := s.failures[key]; failed {
		return Failed
	}
	if entry, ok := s.tasks[key]; ok && !entry.loaded {
		return Loading
	}
	if t, ok := s.types[key.typ]; ok && t.contains(key.id) {
		return Loaded
	}
	return NotLoaded
}

// LoadError returns the failure of the last load of h, or nil
func (s *Server) LoadError(h UntypedHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failures[taskKey{typ: h.Type(), id: h.Id()}]; ok {
		return err
	}
	return nil
}

// InFlight returns the number of loads started but not yet pumped
func (s *Server) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, entry := range s.tasks {
		if !entry.loaded {
			n++
		}
	}
	return n
}

// Close stops the worker pool, cancelling running loaders.
func (s *Server) Close() {
	if discarded := s.pool.Close(); discarded > 0 {
		s.logger.Debug().Int("discarded", discarded).Msg("asset server closed with queued loads")
	}
}
