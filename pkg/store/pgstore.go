package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/canonical"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/chunker"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/evaluation"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/relation"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

//go:embed migrations
var migrationsFS embed.FS

// PGConfig holds Postgres connection settings.
type PGConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PGStore is the Postgres-backed Store implementation. Its SQL surface is
// hand-written against the pgx driver, in place of code-generated queries,
// with schema managed through a golang-migrate migration flow.
type PGStore struct {
	db *sql.DB
}

// PGConfigFromEnv loads Postgres connection settings from the environment
// (DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME/DB_SSLMODE and the
// connection-pool tuning variables), falling back to sane defaults
// wherever a variable is unset.
func PGConfigFromEnv() (PGConfig, error) {
	port, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	if err != nil {
		return PGConfig{}, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	maxOpen, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_OPEN_CONNS", "25"))
	maxIdle, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_IDLE_CONNS", "10"))
	maxLifetime, err := time.ParseDuration(getEnvOrDefault("DB_CONN_MAX_LIFETIME", "1h"))
	if err != nil {
		return PGConfig{}, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}

	return PGConfig{
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault("DB_USER", "kgraph"),
		Password:        os.Getenv("DB_PASSWORD"),
		Database:        getEnvOrDefault("DB_NAME", "kgraph"),
		SSLMode:         getEnvOrDefault("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: maxLifetime,
	}, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// NewPGStore opens a connection pool, applies embedded migrations, and
// returns a ready-to-use PGStore.
func NewPGStore(ctx context.Context, cfg PGConfig) (*PGStore, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrProvider, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrProvider, err)
	}
	if err := applyMigrations(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", ErrProvider, err)
	}
	return &PGStore{db: db}, nil
}

func applyMigrations(db *sql.DB, dbName string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, dbName, driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return source.Close()
}

// Close releases the underlying connection pool.
func (s *PGStore) Close() error {
	return s.db.Close()
}

func (s *PGStore) SearchCanonicalObjects(ctx context.Context, filter ObjectFilter, limit int) ([]canonical.Object, error) {
	query := `SELECT payload FROM canonical_objects WHERE
 ($1 = '' OR platform = $1) AND
 ($2 = '' OR workspace = $2) AND
 ($3 = '' OR object_type = $3) AND
 (COALESCE(cardinality($5::text[]), 0) = 0 OR id = ANY($5::text[]))
 ORDER BY id LIMIT $4`
	if limit <= 0 {
		limit = 10000
	}
	rows, err := s.db.QueryContext(ctx, query, filter.Platform, filter.Workspace, filter.ObjectType, limit, filter.IDs)
	if err != nil {
		return nil, fmt.Errorf("%w: search canonical objects: %v", ErrProvider, err)
	}
	defer rows.Close()

	var out []canonical.Object
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("%w: scan canonical object: %v", ErrProvider, err)
		}
		var o canonical.Object
		if err := json.Unmarshal(payload, &o); err != nil {
			return nil, fmt.Errorf("%w: decode canonical object: %v", ErrProvider, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PGStore) UpsertExperiment(ctx context.Context, e ExperimentUpsert) (string, error) {
	paperIDs, _ := json.Marshal(e.PaperIDs)
	var id string
	err := s.db.QueryRowContext(ctx, `
 INSERT INTO experiments (name, description, config_json, is_baseline, paper_ids, git_commit, status)
 VALUES ($1, $2, $3, $4, $5, $6, $7)
 ON CONFLICT (name) DO UPDATE SET
 description = EXCLUDED.description,
 config_json = EXCLUDED.config_json,
 is_baseline = EXCLUDED.is_baseline,
 paper_ids = EXCLUDED.paper_ids,
 git_commit = EXCLUDED.git_commit,
 status = EXCLUDED.status
 RETURNING id`,
		e.Name, e.Description, e.ConfigJSON, e.IsBaseline, paperIDs, e.GitCommit, e.Status,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%w: upsert experiment: %v", ErrProvider, err)
	}
	return id, nil
}

func (s *PGStore) UpdateExperimentStatus(ctx context.Context, id, status string, runCompletedAt *time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE experiments SET status = $1, run_completed_at = COALESCE($2, run_completed_at) WHERE id = $3`,
		status, runCompletedAt, id,
	)
	if err != nil {
		return fmt.Errorf("%w: update experiment status: %v", ErrProvider, err)
	}
	return nil
}

func (s *PGStore) UpsertExperimentResult(ctx context.Context, r ExperimentResult) error {
	_, err := s.db.ExecContext(ctx, `
 INSERT INTO experiment_results
 (experiment_id, scenario, f1, precision, recall, tp, fp, fn, ground_truth_total, inferred_total, retrieval_time_ms)
 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
 ON CONFLICT (experiment_id, scenario) DO UPDATE SET
 f1 = EXCLUDED.f1, precision = EXCLUDED.precision, recall = EXCLUDED.recall,
 tp = EXCLUDED.tp, fp = EXCLUDED.fp, fn = EXCLUDED.fn,
 ground_truth_total = EXCLUDED.ground_truth_total,
 inferred_total = EXCLUDED.inferred_total,
 retrieval_time_ms = EXCLUDED.retrieval_time_ms`,
		r.ExperimentID, r.Scenario, r.F1, r.Precision, r.Recall, r.TP, r.FP, r.FN,
		r.GroundTruthTotal, r.InferredTotal, r.RetrievalTimeMs,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert experiment result: %v", ErrProvider, err)
	}
	return nil
}

func (s *PGStore) UpsertLayerMetrics(ctx context.Context, lm LayerMetrics) error {
	_, err := s.db.ExecContext(ctx, `
 INSERT INTO layer_metrics (experiment_id, layer, evaluation_method, metrics_json, duration_ms)
 VALUES ($1, $2, $3, $4, $5)
 ON CONFLICT (experiment_id, layer, evaluation_method) DO UPDATE SET
 metrics_json = EXCLUDED.metrics_json,
 duration_ms = EXCLUDED.duration_ms`,
		lm.ExperimentID, lm.Layer, lm.EvaluationMethod, lm.MetricsJSON, lm.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert layer metrics: %v", ErrProvider, err)
	}
	return nil
}

func (s *PGStore) InsertActivityLog(ctx context.Context, a ActivityLog) error {
	_, err := s.db.ExecContext(ctx, `
 INSERT INTO research_activity_log
 (operation_type, operation_name, description, status, triggered_by, details_json, git_commit, experiment_id)
 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.OperationType, a.OperationName, a.Description, a.Status, a.TriggeredBy, a.DetailsJSON, a.GitCommit, a.ExperimentID,
	)
	if err != nil {
		// LoggingError: the caller (pkg/activity) is expected to
		// swallow this, but the store still reports it so that decision stays
		// at the right layer.
		return fmt.Errorf("%w: insert activity log: %v", ErrProvider, err)
	}
	return nil
}

func (s *PGStore) DeleteChunksByObjectIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE canonical_object_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("%w: delete chunks: %v", ErrProvider, err)
	}
	return nil
}

func (s *PGStore) InsertChunk(ctx context.Context, c chunker.Chunk) error {
	metadata, _ := json.Marshal(c.Metadata)
	embedding, _ := json.Marshal(c.Embedding)
	_, err := s.db.ExecContext(ctx, `
 INSERT INTO chunks (id, canonical_object_id, chunk_index, content, method, metadata, embedding)
 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.CanonicalObjectID, c.ChunkIndex, c.Content, string(c.Method), metadata, embedding,
	)
	if err != nil {
		return fmt.Errorf("%w: insert chunk: %v", ErrProvider, err)
	}
	return nil
}

// NearestChunks fetches every chunk with a non-null embedding and ranks
// them in Go by cosine similarity. No approximate vector index is used —
// that's an explicit Non-goal — so this is a full scan,
// acceptable at the scale this pipeline targets.
func (s *PGStore) NearestChunks(ctx context.Context, queryEmbedding []float32, similarityMin float64, limit int) ([]NearestChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
 SELECT id, canonical_object_id, content, embedding FROM chunks WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("%w: nearest chunks: %v", ErrProvider, err)
	}
	defer rows.Close()

	var hits []NearestChunk
	for rows.Next() {
		var id, objectID, content string
		var embeddingJSON []byte
		if err := rows.Scan(&id, &objectID, &content, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("%w: scan chunk: %v", ErrProvider, err)
		}
		var embedding []float32
		if err := json.Unmarshal(embeddingJSON, &embedding); err != nil {
			slog.Warn("store: skipping chunk with malformed embedding", "chunk_id", id, "error", err)
			continue
		}
		sim := relation.CosineSimilarity(queryEmbedding, embedding)
		if sim < similarityMin {
			continue
		}
		hits = append(hits, NearestChunk{ChunkID: id, CanonicalObjectID: objectID, Content: content, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: nearest chunks: %v", ErrProvider, err)
	}

	sortBySimilarityDesc(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *PGStore) ListGroundTruthRelations(ctx context.Context, filter GroundTruthFilter) ([]evaluation.GroundTruthRelation, error) {
	rows, err := s.db.QueryContext(ctx, `
 SELECT from_id, to_id, relation_type, source, confidence, scenario
 FROM ground_truth_relations WHERE ($1 = '' OR scenario = $1)`, filter.Scenario)
	if err != nil {
		return nil, fmt.Errorf("%w: list ground truth relations: %v", ErrProvider, err)
	}
	defer rows.Close()

	var out []evaluation.GroundTruthRelation
	for rows.Next() {
		var r evaluation.GroundTruthRelation
		if err := rows.Scan(&r.FromID, &r.ToID, &r.RelationType, &r.Source, &r.Confidence, &r.Scenario); err != nil {
			return nil, fmt.Errorf("%w: scan ground truth relation: %v", ErrProvider, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) ListGroundTruthQueries(ctx context.Context, scenario string) ([]evaluation.GroundTruthQuery, error) {
	rows, err := s.db.QueryContext(ctx, `
 SELECT id, query_text, scenario, expected_results_json
 FROM ground_truth_queries WHERE ($1 = '' OR scenario = $1)`, scenario)
	if err != nil {
		return nil, fmt.Errorf("%w: list ground truth queries: %v", ErrProvider, err)
	}
	defer rows.Close()

	var out []evaluation.GroundTruthQuery
	for rows.Next() {
		var q evaluation.GroundTruthQuery
		var expectedJSON []byte
		if err := rows.Scan(&q.ID, &q.QueryText, &q.Scenario, &expectedJSON); err != nil {
			return nil, fmt.Errorf("%w: scan ground truth query: %v", ErrProvider, err)
		}
		if err := json.Unmarshal(expectedJSON, &q.ExpectedResults); err != nil {
			return nil, fmt.Errorf("%w: decode expected results: %v", ErrProvider, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func sortBySimilarityDesc(hits []NearestChunk) {
	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
}

var _ Store = (*PGStore)(nil)
