package plugins

import (
	"database/sql"
	"sync"

	"github.com/waveform-labs/pluginhost/internal/logger"
)

// ScopedStorage is C4: a per-plugin key-to-value store. Reads are served
// synchronously from an in-memory map, which is always the source of truth
// — a Get immediately after a Set observes the new value even before the
// durable write below lands. Set queues an asynchronous durable write to a
// shared sqlite-backed store. Get never reads from sqlite, and the in-memory
// map is not reloaded from it, so values written before a process restart
// are not visible through Get afterwards.
type ScopedStorage struct {
	mu     sync.RWMutex
	memory map[string]map[string]string // pluginName -> key -> value

	backend *storageBackend
}

// NewScopedStorage builds scoped storage backed by db, or a no-op backend
// if db is nil (used in tests that don't need durability).
func NewScopedStorage(db *sql.DB) *ScopedStorage {
	return &ScopedStorage{
		memory:  make(map[string]map[string]string),
		backend: newStorageBackend(db),
	}
}

// Get returns the current value for (pluginName, key) and whether it exists.
func (s *ScopedStorage) Get(pluginName, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.memory[pluginName][key]
	return v, ok
}

// Set installs the value synchronously in memory and queues a durable
// write; it always reports success to the caller once the in-memory write
// lands, per the spec's "set persists asynchronously and returns success".
func (s *ScopedStorage) Set(pluginName, key, value string) bool {
	s.mu.Lock()
	if s.memory[pluginName] == nil {
		s.memory[pluginName] = make(map[string]string)
	}
	s.memory[pluginName][key] = value
	s.mu.Unlock()

	s.backend.enqueueWrite(pluginName, key, value)
	return true
}

// Clear removes every key for pluginName and returns the count removed.
// The in-memory map clears synchronously; the durable deletion is queued.
func (s *ScopedStorage) Clear(pluginName string) int {
	s.mu.Lock()
	n := len(s.memory[pluginName])
	delete(s.memory, pluginName)
	s.mu.Unlock()

	s.backend.enqueueClear(pluginName)
	return n
}

// storageBackend owns the asynchronous durable write path over sqlite. A
// single background goroutine drains queue so all durable mutation is
// serialized without blocking Set/Clear's synchronous in-memory half.
type storageBackend struct {
	db    *sql.DB
	queue chan storageOp
}

type storageOp struct {
	clear      bool
	pluginName string
	key        string
	value      string
}

func newStorageBackend(db *sql.DB) *storageBackend {
	b := &storageBackend{db: db, queue: make(chan storageOp, 256)}
	if db != nil {
		go b.run()
	}
	return b
}

func (b *storageBackend) run() {
	for op := range b.queue {
		if op.clear {
			if _, err := b.db.Exec(`DELETE FROM plugin_storage WHERE plugin = ?`, op.pluginName); err != nil {
				logger.Storage().Warn().Str("plugin", op.pluginName).Err(err).Msg("durable clear failed")
			}
			continue
		}
		_, err := b.db.Exec(
			`INSERT INTO plugin_storage (plugin, key, value) VALUES (?, ?, ?)
			 ON CONFLICT(plugin, key) DO UPDATE SET value = excluded.value`,
			op.pluginName, op.key, op.value,
		)
		if err != nil {
			logger.Storage().Warn().Str("plugin", op.pluginName).Str("key", op.key).Err(err).Msg("durable write failed")
		}
	}
}

func (b *storageBackend) enqueueWrite(pluginName, key, value string) {
	if b.db == nil {
		return
	}
	select {
	case b.queue <- storageOp{pluginName: pluginName, key: key, value: value}:
	default:
		logger.Storage().Warn().Str("plugin", pluginName).Msg("durable write queue full, dropping write")
	}
}

func (b *storageBackend) enqueueClear(pluginName string) {
	if b.db == nil {
		return
	}
	select {
	case b.queue <- storageOp{clear: true, pluginName: pluginName}:
	default:
		logger.Storage().Warn().Str("plugin", pluginName).Msg("durable write queue full, dropping clear")
	}
}

// Migrate creates the plugin_storage table if it does not already exist.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS plugin_storage (
		plugin TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (plugin, key)
	)`)
	return err
}
