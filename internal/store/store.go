package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/talkless/talkless/models"
)

// Store persists finalized run artifacts in Postgres.
type Store struct {
	DB *sql.DB
}

// New opens a connection pool and verifies it.
func New(ctx context.Context, dsn string, timeout time.Duration) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	pingCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

// Close releases the pool.
func (s *Store) Close() error { return s.DB.Close() }

// SaveRun upserts a run record. Counters only ever grow, so the upsert
// simply overwrites with the latest snapshot.
func (s *Store) SaveRun(ctx context.Context, run models.PipelineRun) error {
	_, err := s.DB.ExecContext(ctx, `
        INSERT INTO pipeline_runs (id, status, started_at, completed_at, articles_fetched, articles_grouped, summaries_generated, bias_indicators_found, errors)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (id) DO UPDATE SET
            status = EXCLUDED.status,
            completed_at = EXCLUDED.completed_at,
            articles_fetched = EXCLUDED.articles_fetched,
            articles_grouped = EXCLUDED.articles_grouped,
            summaries_generated = EXCLUDED.summaries_generated,
            bias_indicators_found = EXCLUDED.bias_indicators_found,
            errors = EXCLUDED.errors`,
		run.ID, string(run.Status), run.StartedAt, run.CompletedAt,
		run.ArticlesFetched, run.ArticlesGrouped, run.SummariesGenerated, run.BiasIndicatorsFound,
		pq.Array(run.Errors),
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun loads one run record.
func (s *Store) GetRun(ctx context.Context, id string) (models.PipelineRun, error) {
	var (
		run    models.PipelineRun
		status string
		errs   []string
	)
	err := s.DB.QueryRowContext(ctx, `
        SELECT id, status, started_at, completed_at, articles_fetched, articles_grouped, summaries_generated, bias_indicators_found, errors
        FROM pipeline_runs WHERE id = $1`, id).
		Scan(&run.ID, &status, &run.StartedAt, &run.CompletedAt,
			&run.ArticlesFetched, &run.ArticlesGrouped, &run.SummariesGenerated, &run.BiasIndicatorsFound,
			pq.Array(&errs))
	if errors.Is(err, sql.ErrNoRows) {
		return models.PipelineRun{}, models.ErrRunNotFound
	}
	if err != nil {
		return models.PipelineRun{}, fmt.Errorf("loading run %s: %w", id, err)
	}
	run.Status = models.RunStatus(status)
	run.Errors = errs
	return run, nil
}

// SaveSummaries stores the validated summaries produced by one run.
func (s *Store) SaveSummaries(ctx context.Context, runID string, summaries []models.Summary) error {
	for _, summary := range summaries {
		sources, err := json.Marshal(summary.Sources)
		if err != nil {
			return fmt.Errorf("encoding sources for group %s: %w", summary.GroupID, err)
		}
		perspectives, err := json.Marshal(summary.Perspectives)
		if err != nil {
			return fmt.Errorf("encoding perspectives for group %s: %w", summary.GroupID, err)
		}
		_, err = s.DB.ExecContext(ctx, `
            INSERT INTO summaries (run_id, group_id, topic, summary_text, sources, perspectives, confidence, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			runID, summary.GroupID, summary.Topic, summary.Text, sources, perspectives, summary.Confidence, summary.CreatedAt)
		if err != nil {
			return fmt.Errorf("saving summary for group %s: %w", summary.GroupID, err)
		}
	}
	return nil
}

// SaveIndicators stores the per-article bias indicators from one run.
func (s *Store) SaveIndicators(ctx context.Context, runID string, indicatorsByArticle map[string][]models.BiasIndicator) error {
	for articleID, indicators := range indicatorsByArticle {
		for _, ind := range indicators {
			_, err := s.DB.ExecContext(ctx, `
                INSERT INTO bias_indicators (run_id, article_id, indicator_type, description, confidence, examples, category, rationale)
                VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				runID, articleID, ind.Type, ind.Description, ind.Confidence, pq.Array(ind.Examples), ind.Category, ind.Rationale)
			if err != nil {
				return fmt.Errorf("saving indicator for article %s: %w", articleID, err)
			}
		}
	}
	return nil
}

// SaveReport stores the run's transparency report.
func (s *Store) SaveReport(ctx context.Context, runID string, report models.TransparencyReport) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding transparency report: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
        INSERT INTO transparency_reports (run_id, report, created_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (run_id) DO UPDATE SET report = EXCLUDED.report`,
		runID, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving transparency report: %w", err)
	}
	return nil
}

// ListSummaries returns the most recent summaries, newest first.
func (s *Store) ListSummaries(ctx context.Context, limit int) ([]models.Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
        SELECT group_id, topic, summary_text, sources, perspectives, confidence, created_at
        FROM summaries ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing summaries: %w", err)
	}
	defer rows.Close()

	var out []models.Summary
	for rows.Next() {
		var (
			summary      models.Summary
			sources      []byte
			perspectives []byte
		)
		if err := rows.Scan(&summary.GroupID, &summary.Topic, &summary.Text, &sources, &perspectives, &summary.Confidence, &summary.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		if err := json.Unmarshal(sources, &summary.Sources); err != nil {
			return nil, fmt.Errorf("decoding sources: %w", err)
		}
		if err := json.Unmarshal(perspectives, &summary.Perspectives); err != nil {
			return nil, fmt.Errorf("decoding perspectives: %w", err)
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// LatestRunTime returns the start time of the most recent run, zero
// when none exist. The scheduler uses it for due checks.
func (s *Store) LatestRunTime(ctx context.Context) (time.Time, error) {
	var started sql.NullTime
	err := s.DB.QueryRowContext(ctx, `SELECT MAX(started_at) FROM pipeline_runs`).Scan(&started)
	if err != nil {
		return time.Time{}, fmt.Errorf("loading latest run time: %w", err)
	}
	if !started.Valid {
		return time.Time{}, nil
	}
	return started.Time, nil
}
