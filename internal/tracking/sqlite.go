package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
	"github.com/saugatapaul1010/Vision-OPs/internal/domain/port"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS experiments (
	id TEXT PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	artifact_location TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	experiment_id TEXT NOT NULL REFERENCES experiments(id),
	name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'RUNNING',
	start_time INTEGER NOT NULL,
	end_time INTEGER
);
CREATE TABLE IF NOT EXISTS metrics (
	run_id TEXT NOT NULL REFERENCES runs(id),
	key TEXT NOT NULL,
	value REAL NOT NULL,
	step INTEGER NOT NULL,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS metrics_run_key ON metrics(run_id, key);
CREATE TABLE IF NOT EXISTS params (
	run_id TEXT NOT NULL REFERENCES runs(id),
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (run_id, key)
);
CREATE TABLE IF NOT EXISTS model_versions (
	name TEXT NOT NULL,
	version INTEGER NOT NULL,
	stage TEXT NOT NULL DEFAULT 'None',
	run_id TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (name, version)
);
`

// SQLiteStore — локальный трекер поверх файла SQLite, без внешнего сервера.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStore открывает (и при необходимости создаёт) файл хранилища.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open tracking store %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init tracking schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

var _ port.ExperimentTracker = (*SQLiteStore)(nil)

func (s *SQLiteStore) EnsureExperiment(ctx context.Context, name, artifactLocation string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	err := s.db.QueryRowContext(ctx, "SELECT id FROM experiments WHERE name = ?", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}
	id = uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO experiments (id, name, artifact_location) VALUES (?, ?, ?)",
		id, name, artifactLocation)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) StartRun(ctx context.Context, experimentID, runName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, experiment_id, name, start_time) VALUES (?, ?, ?, ?)",
		id, experimentID, runName, time.Now().UnixMilli())
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) EndRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET status = 'FINISHED', end_time = ? WHERE id = ?",
		time.Now().UnixMilli(), runID)
	return err
}

func (s *SQLiteStore) LogMetric(ctx context.Context, runID, key string, value float64, step int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO metrics (run_id, key, value, step, timestamp) VALUES (?, ?, ?, ?, ?)",
		runID, key, value, step, time.Now().UnixMilli())
	return err
}

func (s *SQLiteStore) LogParam(ctx context.Context, runID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO params (run_id, key, value) VALUES (?, ?, ?)",
		runID, key, value)
	return err
}

func (s *SQLiteStore) MetricHistory(ctx context.Context, runID, key string) ([]entity.MetricPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT step, value FROM metrics WHERE run_id = ? AND key = ? ORDER BY step, timestamp",
		runID, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []entity.MetricPoint
	for rows.Next() {
		var p entity.MetricPoint
		if err := rows.Scan(&p.Step, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *SQLiteStore) RegisterModel(ctx context.Context, runID, name, source string) (entity.ModelVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) + 1 FROM model_versions WHERE name = ?", name).Scan(&next)
	if err != nil {
		return entity.ModelVersion{}, err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO model_versions (name, version, stage, run_id, source) VALUES (?, ?, ?, ?, ?)",
		name, next, string(entity.StageNone), runID, source)
	if err != nil {
		return entity.ModelVersion{}, err
	}
	return entity.ModelVersion{Name: name, Version: next, Stage: entity.StageNone, RunID: runID, Source: source}, nil
}

func (s *SQLiteStore) LatestVersions(ctx context.Context, name string) ([]entity.ModelVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, version, stage, run_id, source FROM model_versions
		WHERE name = ? AND version IN (
			SELECT MAX(version) FROM model_versions WHERE name = ? GROUP BY stage
		) ORDER BY version`, name, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []entity.ModelVersion
	for rows.Next() {
		var v entity.ModelVersion
		var stage string
		if err := rows.Scan(&v.Name, &v.Version, &stage, &v.RunID, &v.Source); err != nil {
			return nil, err
		}
		v.Stage = entity.Stage(stage)
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("registered model %q not found", name)
	}
	return versions, nil
}

func (s *SQLiteStore) TransitionStage(ctx context.Context, name string, version int, stage entity.Stage) (entity.ModelVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE model_versions SET stage = ? WHERE name = ? AND version = ?",
		string(stage), name, version)
	if err != nil {
		return entity.ModelVersion{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return entity.ModelVersion{}, err
	}
	if affected == 0 {
		return entity.ModelVersion{}, fmt.Errorf("model %q version %d not found", name, version)
	}

	var v entity.ModelVersion
	var st string
	err = s.db.QueryRowContext(ctx,
		"SELECT name, version, stage, run_id, source FROM model_versions WHERE name = ? AND version = ?",
		name, version).Scan(&v.Name, &v.Version, &st, &v.RunID, &v.Source)
	if err != nil {
		return entity.ModelVersion{}, err
	}
	v.Stage = entity.Stage(st)
	return v, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
