// Package audit records control-plane lifecycle events — credential
// refreshes, pool rotations, catalog reloads — to durable storage so an
// operator can reconstruct what the control plane did without relying on
// log retention alone.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is a single control-plane event.
type Entry struct {
	Component string          // "credential", "dbpool", "catalog"
	Action    string          // "refresh_storage", "refresh_database", "rotate", "reload"
	Outcome   string          // "success", "error"
	Detail    json.RawMessage // arbitrary structured context, may be nil
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// Writer is an async, buffered writer of control-plane events. Entries
// are sent to an internal channel and flushed by a background goroutine,
// so recording an event never blocks the caller on database I/O.
type Writer struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	entries chan Entry
	wg      sync.WaitGroup
}

// NewWriter creates a Writer. Call Start to begin processing entries.
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger) *Writer {
	return &Writer{
		pool:    pool,
		logger:  logger,
		entries: make(chan Entry, bufferSize),
	}
}

// Start begins the background flush loop in its own goroutine and
// returns immediately. The loop runs until Close is called or ctx is
// cancelled, flushing pending entries before it exits.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close stops accepting new entries and waits for the flush loop to
// drain the channel.
func (w *Writer) Close() {
	close(w.entries)
	w.wg.Wait()
}

// Log enqueues an event for async writing. It never blocks the caller;
// if the buffer is full the entry is dropped and a warning is logged,
// since audit recording must never become a backpressure source for the
// control plane's own operations.
func (w *Writer) Log(entry Entry) {
	select {
	case w.entries <- entry:
	default:
		if w.logger != nil {
			w.logger.Warn("audit buffer full, dropping entry",
				"component", entry.Component, "action", entry.Action)
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, flushBatch)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case entry, ok := <-w.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (w *Writer) flush(entries []Entry) {
	if w.pool == nil {
		if w.logger != nil {
			w.logger.Warn("dropping audit entries, no database pool configured", "count", len(entries))
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			"INSERT INTO control_plane_events (component, action, outcome, detail) VALUES ($1, $2, $3, $4)",
			e.Component, e.Action, e.Outcome, e.Detail,
		)
	}

	results := w.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		if _, err := results.Exec(); err != nil {
			if w.logger != nil {
				w.logger.Error("writing control-plane event", "error", err)
			}
		}
	}
}
