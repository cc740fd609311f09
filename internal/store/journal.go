package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultJournalBuffer is how many entries may wait for the writer.
const DefaultJournalBuffer = 256

// maxBatch caps how many waiting entries go into one transaction.
const maxBatch = 64

// Journal writes entries to a Store from its own goroutine.
//
// Record never blocks: when the buffer is full the entry is dropped and
// counted. The engine loop calls Record; nothing else touches the buffer.
type Journal struct {
	store   *Store
	logger  *slog.Logger
	now     func() time.Time
	entries chan Entry
	done    chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	written atomic.Int64
}

// JournalOption configures a Journal.
type JournalOption func(*journalConfig)

type journalConfig struct {
	buffer int
	logger *slog.Logger
	now    func() time.Time
}

// WithBuffer sets the buffer size. Default: DefaultJournalBuffer.
func WithBuffer(n int) JournalOption {
	return func(c *journalConfig) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// WithJournalLogger sets the logger. Default: slog.Default().
func WithJournalLogger(l *slog.Logger) JournalOption {
	return func(c *journalConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithNow sets the wall clock used to stamp entries.
func WithNow(now func() time.Time) JournalOption {
	return func(c *journalConfig) {
		c.now = now
	}
}

// NewJournal starts a writer for s. Call Close to flush and stop it.
func NewJournal(s *Store, opts ...JournalOption) *Journal {
	cfg := journalConfig{
		buffer: DefaultJournalBuffer,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	j := &Journal{
		store:   s,
		logger:  cfg.logger,
		now:     cfg.now,
		entries: make(chan Entry, cfg.buffer),
		done:    make(chan struct{}),
	}
	go j.run()
	return j
}

// Record queues e for writing. It reports false when the entry was dropped
// because the buffer was full or the journal was closed.
func (j *Journal) Record(e Entry) bool {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = j.now()
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.dropped.Add(1)
		return false
	}

	select {
	case j.entries <- e:
		return true
	default:
		if j.dropped.Add(1) == 1 {
			j.logger.Warn("journal buffer full, dropping entries", "kind", e.Kind)
		}
		return false
	}
}

// Close flushes queued entries and stops the writer. Safe to call more
// than once.
func (j *Journal) Close() error {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.entries)
	}
	j.mu.Unlock()

	<-j.done
	return nil
}

// Dropped returns how many entries were not written.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// Written returns how many entries reached the store.
func (j *Journal) Written() int64 {
	return j.written.Load()
}

func (j *Journal) run() {
	defer close(j.done)

	batch := make([]Entry, 0, maxBatch)
	for e := range j.entries {
		batch = append(batch[:0], e)
	fill:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-j.entries:
				if !ok {
					break fill
				}
				batch = append(batch, next)
			default:
				break fill
			}
		}

		if err := j.store.AppendBatch(context.Background(), batch); err != nil {
			j.dropped.Add(int64(len(batch)))
			j.logger.Error("journal write failed", "entries", len(batch), "error", err)
			continue
		}
		j.written.Add(int64(len(batch)))
	}
}
