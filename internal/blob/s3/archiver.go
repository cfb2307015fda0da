package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
	"github.com/arguiot/arbitrage-bot-sub000/internal/graph"
)

// BlobWriter is the narrow upload interface the archiver needs; *Writer
// satisfies it.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// RateSource provides the current rate matrix; *graph.RateGraph satisfies it.
type RateSource interface {
	Snapshot() *graph.Matrix
}

// executionBatchSize bounds how many recent executions one archive upload
// carries.
const executionBatchSize = 500

// Archiver periodically uploads rate-matrix snapshots and execution history
// so decisions stay auditable after the hot stores roll over.
type Archiver struct {
	writer     BlobWriter
	rates      RateSource
	executions domain.ExecutionStore
	interval   time.Duration
	logger     *slog.Logger
}

func NewArchiver(writer BlobWriter, rates RateSource, executions domain.ExecutionStore, interval time.Duration, logger *slog.Logger) *Archiver {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Archiver{
		writer:     writer,
		rates:      rates,
		executions: executions,
		interval:   interval,
		logger:     logger.With(slog.String("component", "archiver")),
	}
}

// Run archives on a fixed cadence until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := time.Now().UTC()
			if err := a.ArchiveRates(ctx, now); err != nil {
				a.logger.Warn("rate snapshot failed", slog.Any("error", err))
			}
			if err := a.ArchiveExecutions(ctx, now); err != nil {
				a.logger.Warn("execution archive failed", slog.Any("error", err))
			}
		}
	}
}

// ArchiveRates uploads the current rate matrix as a timestamped JSON object
// under snapshots/rates/.
func (a *Archiver) ArchiveRates(ctx context.Context, at time.Time) error {
	matrix := a.rates.Snapshot()
	if matrix == nil || len(matrix.Tokens) == 0 {
		return nil
	}

	payload := map[string]any{
		"at":     at.Format(time.RFC3339),
		"tokens": matrix.Tokens,
		"rates":  matrix.Rates,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("s3blob: marshal rate snapshot: %w", err)
	}

	path := fmt.Sprintf("snapshots/rates/%s.json", at.Format("2006-01-02T15-04-05"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/json"); err != nil {
		return fmt.Errorf("s3blob: upload rate snapshot: %w", err)
	}
	a.logger.Debug("rate snapshot archived",
		slog.String("path", path),
		slog.Int("tokens", len(matrix.Tokens)))
	return nil
}

// ArchiveExecutions uploads the latest executions as JSONL, partitioned by
// year-month: archive/executions/2026-08.jsonl.
func (a *Archiver) ArchiveExecutions(ctx context.Context, at time.Time) error {
	if a.executions == nil {
		return nil
	}
	execs, err := a.executions.Recent(ctx, executionBatchSize)
	if err != nil {
		return fmt.Errorf("s3blob: query executions: %w", err)
	}
	if len(execs) == 0 {
		return nil
	}

	buf, err := marshalJSONL(execs)
	if err != nil {
		return fmt.Errorf("s3blob: marshal executions: %w", err)
	}

	path := fmt.Sprintf("archive/executions/%s.jsonl", at.Format("2006-01"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: upload executions: %w", err)
	}
	a.logger.Debug("executions archived",
		slog.String("path", path),
		slog.Int("count", len(execs)))
	return nil
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
