package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/paco-sync/internal/queue"
)

// DB is the subset of *pgxpool.Pool the writer uses.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// WriterConfig holds batching settings.
type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: 2 * time.Second,
	}
}

// WriterMetrics tracks writer performance.
type WriterMetrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
}

// eventRow is the database row form of an Event.
type eventRow struct {
	OccurredAt int64 // µs since epoch
	ViewID     string
	MatchKey   string
	Kind       string
	Detail     string
	HistoryLen int
	Seq        int64
	Value      int64
}

// Writer consumes Events from a buffer and writes them to sync_events.
type Writer struct {
	cfg    WriterConfig
	logger *slog.Logger

	input *queue.Buffer[Event]
	db    DB

	// Batching
	batch       []eventRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewWriter creates a new Writer.
func NewWriter(cfg WriterConfig, input *queue.Buffer[Event], db DB, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &Writer{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger.With("component", "journal"),
		batch:  make([]eventRow, 0, cfg.BatchSize),
	}
}

// EnsureSchema creates the sync_events table if it does not exist.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create sync_events: %w", err)
	}
	return nil
}

// Start begins consuming events and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains what is left in the input and flushes it.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
	}

	for _, ev := range w.input.Drain(0) {
		w.add(ev)
	}
	w.flushWith(ctx)

	w.logger.Info("journal writer stopped", "inserts", w.Stats().Inserts)
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		ev, ok := w.input.Receive(w.ctx)
		if !ok {
			return
		}
		if w.add(ev) {
			w.flushWith(w.ctx)
		}
	}
}

func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flushWith(w.ctx)
		}
	}
}

// add appends an event to the batch and reports whether it is full.
func (w *Writer) add(ev Event) bool {
	row := transform(ev)

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, row)
	return len(w.batch) >= w.cfg.BatchSize
}

func transform(ev Event) eventRow {
	return eventRow{
		OccurredAt: ev.OccurredAt.UnixMicro(),
		ViewID:     ev.ViewID,
		MatchKey:   ev.MatchKey,
		Kind:       string(ev.Kind),
		Detail:     ev.Detail,
		HistoryLen: ev.HistoryLen,
		Seq:        int64(ev.Seq),
		Value:      ev.Value,
	}
}

func (w *Writer) flushWith(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]eventRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	if err := w.batchInsert(ctx, batch); err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed sync events",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch.
func (w *Writer) batchInsert(ctx context.Context, rows []eventRow) error {
	if w.db == nil {
		return fmt.Errorf("no database")
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO sync_events (occurred_at, view_id, match_key, kind, detail, history_len, seq, value)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, r.OccurredAt, r.ViewID, r.MatchKey, r.Kind, r.Detail, r.HistoryLen, r.Seq, r.Value)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
