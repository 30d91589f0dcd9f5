package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/datadesk/datadesk/internal/cleaner"
	"github.com/datadesk/datadesk/internal/config"
	"github.com/datadesk/datadesk/internal/dataset"
	"github.com/datadesk/datadesk/internal/export"
	"github.com/datadesk/datadesk/internal/logging"
	"github.com/datadesk/datadesk/internal/report"
	"github.com/datadesk/datadesk/internal/session"
	"github.com/datadesk/datadesk/internal/visualize"
)

// Service coordinates the processing pipeline against the session registry.
// All methods are safe for concurrent use; per-table mutation is serialized
// by the session lock.
type Service struct {
	cfg      *config.Config
	sessions *session.Registry
	limiter  *Limiter
}

// NewService creates a pipeline service with the given configuration.
func NewService(cfg *config.Config) *Service {
	return &Service{
		cfg:      cfg,
		sessions: session.NewRegistry(cfg.Session.MaxSessions, cfg.Session.TTL),
		limiter:  NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
	}
}

// Registry exposes the session registry for lifecycle management (cleanup
// goroutine, tests).
func (s *Service) Registry() *session.Registry {
	return s.sessions
}

// WaitForIngest blocks until in-flight ingestion finishes, for graceful
// shutdown.
func (s *Service) WaitForIngest(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ActiveIngests returns how many files are currently being parsed.
func (s *Service) ActiveIngests() int {
	return s.limiter.ActiveCount()
}

// FileResult is the per-file outcome of a batch ingestion. Exactly one of
// Session or Error is set.
type FileResult struct {
	FileName string            `json:"file_name"`
	Session  *session.Snapshot `json:"session,omitempty"`
	Error    *UserMessage      `json:"error,omitempty"`
}

// IngestBatch loads each uploaded file into its own session. A file that
// fails to parse produces an error entry in the result list; it never aborts
// the rest of the batch. Files are processed sequentially in upload order.
func (s *Service) IngestBatch(ctx context.Context, files []dataset.SourceFile) []FileResult {
	results := make([]FileResult, 0, len(files))

	for _, file := range files {
		logger := logging.WithFields(ctx, "file", file.Name, "size", file.Size)
		snap, err := s.ingestOne(ctx, file)
		if err != nil {
			logger.Error("file ingestion failed", "error", err)
			msg := MapError(err)
			results = append(results, FileResult{FileName: file.Name, Error: &msg})
			continue
		}
		results = append(results, FileResult{FileName: file.Name, Session: snap})
	}

	return results
}

// ingestOne parses a single file and registers its session.
func (s *Service) ingestOne(ctx context.Context, file dataset.SourceFile) (*session.Snapshot, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if file.Size > s.cfg.Upload.MaxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (limit %d)", file.Size, s.cfg.Upload.MaxFileSize)
	}

	started := time.Now()
	table, err := dataset.Load(file)
	if err != nil {
		return nil, err
	}

	sess := session.New(table)
	if err := s.sessions.Add(sess); err != nil {
		return nil, err
	}

	logging.WithFields(ctx, "file", file.Name).Info("file loaded",
		"session_id", sess.ID,
		"rows", table.Nrow(),
		"cols", table.Ncol(),
		"duration_ms", time.Since(started).Milliseconds(),
	)

	snap := sess.Snapshot()
	return &snap, nil
}

// Snapshot returns the display summary for one session.
func (s *Service) Snapshot(id string) (session.Snapshot, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return session.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Snapshots returns summaries for all live sessions, oldest first.
func (s *Service) Snapshots() []session.Snapshot {
	all := s.sessions.All()
	out := make([]session.Snapshot, len(all))
	for i, sess := range all {
		out[i] = sess.Snapshot()
	}
	return out
}

// Remove discards a session and its table.
func (s *Service) Remove(id string) {
	s.sessions.Remove(id)
}

// Deduplicate removes exact-duplicate rows from the session's table.
func (s *Service) Deduplicate(id string) (cleaner.DedupeResult, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return cleaner.DedupeResult{}, err
	}

	var res cleaner.DedupeResult
	err = sess.Mutate(session.StateCleaned, func(t *dataset.Table) (*dataset.Table, error) {
		var opErr error
		res, opErr = cleaner.Deduplicate(t)
		return nil, opErr
	})
	if err == nil {
		slog.Info("deduplicated", "session_id", id, "removed", res.Removed)
	}
	return res, err
}

// Impute fills missing numeric values with column means.
func (s *Service) Impute(id string) (cleaner.ImputeResult, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return cleaner.ImputeResult{}, err
	}

	var res cleaner.ImputeResult
	err = sess.Mutate(session.StateCleaned, func(t *dataset.Table) (*dataset.Table, error) {
		var opErr error
		res, opErr = cleaner.Impute(t)
		return nil, opErr
	})
	if err == nil {
		slog.Info("imputed", "session_id", id, "filled", res.Filled)
	}
	return res, err
}

// Scale rescales numeric columns with the chosen strategy.
func (s *Service) Scale(id, strategy string) (cleaner.ScaleResult, error) {
	strat, err := cleaner.ParseStrategy(strategy)
	if err != nil {
		return cleaner.ScaleResult{}, err
	}

	sess, err := s.sessions.Get(id)
	if err != nil {
		return cleaner.ScaleResult{}, err
	}

	var res cleaner.ScaleResult
	err = sess.Mutate(session.StateCleaned, func(t *dataset.Table) (*dataset.Table, error) {
		var opErr error
		res, opErr = cleaner.Scale(t, strat)
		return nil, opErr
	})
	if err == nil {
		slog.Info("scaled", "session_id", id, "strategy", strat, "columns", len(res.Scaled))
	}
	return res, err
}

// Project restricts the session's table to the selected columns, in the
// order given.
func (s *Service) Project(id string, columns []string) (session.Snapshot, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return session.Snapshot{}, err
	}

	err = sess.Mutate(session.StateProjected, func(t *dataset.Table) (*dataset.Table, error) {
		return t.Project(columns)
	})
	if err != nil {
		return session.Snapshot{}, err
	}

	slog.Info("projected", "session_id", id, "columns", len(columns))
	return sess.Snapshot(), nil
}

// Chart validates and renders a chart against the session's current table.
func (s *Service) Chart(id, kind, x, y string) (*visualize.Chart, error) {
	parsedKind, err := visualize.ParseKind(kind)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	var chart *visualize.Chart
	err = sess.View(session.StateVisualized, func(t *dataset.Table) error {
		var opErr error
		chart, opErr = visualize.Render(t, visualize.Spec{Kind: parsedKind, X: x, Y: y},
			s.cfg.Chart.Width, s.cfg.Chart.Height)
		return opErr
	})
	if err != nil {
		return nil, err
	}

	slog.Info("chart rendered", "session_id", id, "kind", parsedKind, "bytes", len(chart.PNG))
	return chart, nil
}

// Report generates the descriptive-statistics document for the session's
// current table.
func (s *Service) Report(id string) (*report.Document, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	var doc *report.Document
	err = sess.View(session.StateReported, func(t *dataset.Table) error {
		var opErr error
		doc, opErr = report.Generate(t, report.Options{
			TopCategories:         s.cfg.Report.TopCategories,
			MaxCorrelationColumns: s.cfg.Report.MaxCorrelationColumns,
		})
		return opErr
	})
	if err != nil {
		return nil, err
	}

	slog.Info("report generated", "session_id", id, "bytes", len(doc.HTML))
	return doc, nil
}

// Export serializes the session's current table into the target format.
func (s *Service) Export(id, format string) (*export.Artifact, error) {
	parsedFormat, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	var artifact *export.Artifact
	err = sess.View(session.StateExported, func(t *dataset.Table) error {
		var opErr error
		artifact, opErr = export.Export(t, parsedFormat)
		return opErr
	})
	if err != nil {
		return nil, err
	}

	slog.Info("exported",
		"session_id", id,
		"format", parsedFormat,
		"file", artifact.FileName,
		"bytes", len(artifact.Data),
	)
	return artifact, nil
}
