package store

import (
	"errors"
	"sync/atomic"

	"github.com/ironvalemmo/server/cache"
	"github.com/ironvalemmo/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotInitialized is returned by every operation invoked before Init
// completes. Misuse never silently no-ops.
var ErrNotInitialized = errors.New("store: not initialized")

// Store owns the physical schema and exposes typed CRUD primitives.
// It carries no cross-entity business rules; those live in the
// lifecycle manager and the coordinator.
type Store struct {
	db     *gorm.DB
	cache  cache.Cache
	logger *zap.Logger
	ready  atomic.Bool
}

// New creates a Store. Init must be called before any other operation.
func New(db *gorm.DB, c cache.Cache, logger *zap.Logger) *Store {
	return &Store{db: db, cache: c, logger: logger}
}

// Init applies the migration set and seeds the item catalog. A
// migration failure is returned as-is; callers treat it as fatal at
// startup.
func (s *Store) Init() error {
	if err := model.Migrate(s.db); err != nil {
		return err
	}
	if err := s.seedItems(); err != nil {
		return err
	}
	s.ready.Store(true)
	return nil
}

// DB exposes the underlying handle for diagnostics endpoints and tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) checkReady() error {
	if !s.ready.Load() {
		return ErrNotInitialized
	}
	return nil
}
