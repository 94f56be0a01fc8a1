package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/gapradar/pkg/source"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Run is one persisted niche analysis. Report holds the serialized report
// exactly as the engine produced it.
type Run struct {
	ID           string          `db:"id" json:"id"`
	Niche        string          `db:"niche" json:"niche"`
	NicheKey     string          `db:"niche_key" json:"niche_key"`
	UnifiedScore int             `db:"unified_score" json:"unified_score"`
	ItemCount    int             `db:"item_count" json:"item_count"`
	ReportJSON   string          `db:"report" json:"-"`
	Report       json.RawMessage `db:"-" json:"report,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// RunListOpts controls run listing.
type RunListOpts struct {
	NicheKey string
	Since    time.Time
	MinScore int
	Limit    int
}

// Store is the persistence interface.
type Store interface {
	SaveRun(ctx context.Context, run *Run, items []source.Item) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, opts RunListOpts) ([]Run, error)
	DeleteRun(ctx context.Context, id string) error
	PruneRuns(ctx context.Context, before time.Time) (int64, error)
	ListRunItems(ctx context.Context, runID string) ([]source.Item, error)
	CountRunsByNiche(ctx context.Context) (map[string]int, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts or replaces a run together with the items it was built
// from. Items of a replaced run are dropped first.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run, items []source.Item) error {
	if run.ID == "" {
		return fmt.Errorf("save run: empty id")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	report := run.ReportJSON
	if report == "" && len(run.Report) > 0 {
		report = string(run.Report)
	}
	if report == "" {
		report = "{}"
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run %s: %w", run.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, niche, niche_key, unified_score, item_count, report, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			niche = excluded.niche,
			niche_key = excluded.niche_key,
			unified_score = excluded.unified_score,
			item_count = excluded.item_count,
			report = excluded.report,
			created_at = excluded.created_at
	`, run.ID, run.Niche, run.NicheKey, run.UnifiedScore, len(items), report, run.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert run %s: %w", run.ID, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM run_items WHERE run_id = ?", run.ID); err != nil {
		return fmt.Errorf("clear run items %s: %w", run.ID, err)
	}
	for i := range items {
		if err := insertItem(ctx, tx, run.ID, &items[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	run.ItemCount = len(items)
	run.ReportJSON = report
	run.Report = json.RawMessage(report)
	return nil
}

func insertItem(ctx context.Context, tx *sqlx.Tx, runID string, item *source.Item) error {
	discussionJSON, _ := json.Marshal(item.Discussion)
	if item.Discussion == nil {
		discussionJSON = []byte("[]")
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO run_items (run_id, id, source, external_id, title, url, description, author, score, comments, community, duration_ms, discussion, published_at, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO UPDATE SET
			score = excluded.score,
			comments = excluded.comments,
			discussion = excluded.discussion
	`, runID, item.ID, item.Source, item.ExternalID, item.Title, item.URL,
		item.Description, item.Author, item.Score, item.Comments, item.Community,
		item.Duration.Milliseconds(), string(discussionJSON),
		item.PublishedAt.UTC(), item.CollectedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert item %s for run %s: %w", item.ID, runID, err)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	run.Report = json.RawMessage(run.ReportJSON)
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts RunListOpts) ([]Run, error) {
	query := "SELECT * FROM runs WHERE 1=1"
	var args []any

	if opts.NicheKey != "" {
		query += " AND niche_key = ?"
		args = append(args, opts.NicheKey)
	}
	if !opts.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, opts.Since.UTC())
	}
	if opts.MinScore > 0 {
		query += " AND unified_score >= ?"
		args = append(args, opts.MinScore)
	}

	query += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var runs []Run
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	for i := range runs {
		runs[i].Report = json.RawMessage(runs[i].ReportJSON)
	}
	return runs, nil
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete run %s: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM run_items WHERE run_id = ?", id); err != nil {
		return fmt.Errorf("delete run items %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete run %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// PruneRuns deletes runs created before the cutoff and returns how many went.
func (s *SQLiteStore) PruneRuns(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune runs: %w", err)
	}
	defer tx.Rollback()

	cutoff := before.UTC()
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM run_items WHERE run_id IN (SELECT id FROM runs WHERE created_at < ?)", cutoff); err != nil {
		return 0, fmt.Errorf("prune run items: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune runs: %w", err)
	}
	return n, nil
}

type itemRow struct {
	RunID       string    `db:"run_id"`
	ID          string    `db:"id"`
	Source      string    `db:"source"`
	ExternalID  string    `db:"external_id"`
	Title       string    `db:"title"`
	URL         string    `db:"url"`
	Description string    `db:"description"`
	Author      string    `db:"author"`
	Score       int       `db:"score"`
	Comments    int       `db:"comments"`
	Community   string    `db:"community"`
	DurationMS  int64     `db:"duration_ms"`
	Discussion  string    `db:"discussion"`
	PublishedAt time.Time `db:"published_at"`
	CollectedAt time.Time `db:"collected_at"`
}

func (r itemRow) item() source.Item {
	item := source.Item{
		ID:          r.ID,
		Source:      source.SourceType(r.Source),
		ExternalID:  r.ExternalID,
		Title:       r.Title,
		URL:         r.URL,
		Description: r.Description,
		Author:      r.Author,
		Score:       r.Score,
		Comments:    r.Comments,
		Community:   r.Community,
		Duration:    time.Duration(r.DurationMS) * time.Millisecond,
		PublishedAt: r.PublishedAt,
		CollectedAt: r.CollectedAt,
	}
	if r.Discussion != "" && r.Discussion != "[]" {
		json.Unmarshal([]byte(r.Discussion), &item.Discussion)
	}
	return item
}

// ListRunItems returns the items a run was built from, highest score first.
func (s *SQLiteStore) ListRunItems(ctx context.Context, runID string) ([]source.Item, error) {
	var rows []itemRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM run_items WHERE run_id = ? ORDER BY score DESC, id", runID)
	if err != nil {
		return nil, fmt.Errorf("list items for run %s: %w", runID, err)
	}

	items := make([]source.Item, len(rows))
	for i, r := range rows {
		items[i] = r.item()
	}
	return items, nil
}

func (s *SQLiteStore) CountRunsByNiche(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT niche_key, COUNT(*) as cnt FROM runs GROUP BY niche_key")
	if err != nil {
		return nil, fmt.Errorf("count runs by niche: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var cnt int
		if err := rows.Scan(&key, &cnt); err != nil {
			return nil, err
		}
		counts[key] = cnt
	}
	return counts, rows.Err()
}
