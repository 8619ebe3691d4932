package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medchain/internal/registry/models"
	"medchain/pkg/domain"
	"medchain/pkg/platform/sentinel"
)

// PostgresStore persists ledger state in PostgreSQL. Hashes are stored as
// their 0x-prefixed hex text so rows stay greppable during incident review.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed ledger store and ensures its
// schema exists.
func NewPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS drug_batches (
	hash           TEXT PRIMARY KEY,
	issuer         TEXT NOT NULL,
	registered_at  TIMESTAMPTZ NOT NULL,
	batch_id       TEXT NOT NULL,
	valid          BOOLEAN NOT NULL,
	verifications  BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS shortage_predictions (
	hash         TEXT PRIMARY KEY,
	drug_name    TEXT NOT NULL,
	location     TEXT NOT NULL,
	probability  INTEGER NOT NULL,
	recorded_at  TIMESTAMPTZ NOT NULL,
	oracle       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS ledger_counters (
	id                  BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
	total_registered    BIGINT NOT NULL,
	total_verifications BIGINT NOT NULL,
	height              BIGINT NOT NULL
);`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, hash domain.Hash) (models.DrugBatch, error) {
	const q = `SELECT hash, issuer, registered_at, batch_id, valid, verifications
		FROM drug_batches WHERE hash = $1`

	var (
		batch      models.DrugBatch
		hashText   string
		issuerText string
	)
	row := s.pool.QueryRow(ctx, q, hash.String())
	err := row.Scan(&hashText, &issuerText, &batch.RegisteredAt, &batch.BatchID, &batch.Valid, &batch.Verifications)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DrugBatch{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.DrugBatch{}, fmt.Errorf("get batch: %w", err)
	}
	if batch.Hash, err = domain.ParseHash(hashText); err != nil {
		return models.DrugBatch{}, fmt.Errorf("decode stored batch hash: %w", err)
	}
	batch.Issuer = domain.Identity(issuerText)
	return batch, nil
}

func (s *PostgresStore) GetPrediction(ctx context.Context, hash domain.Hash) (models.ShortagePrediction, error) {
	const q = `SELECT hash, drug_name, location, probability, recorded_at, oracle
		FROM shortage_predictions WHERE hash = $1`

	var (
		prediction models.ShortagePrediction
		hashText   string
		oracleText string
	)
	row := s.pool.QueryRow(ctx, q, hash.String())
	err := row.Scan(&hashText, &prediction.DrugName, &prediction.Location,
		&prediction.Probability, &prediction.RecordedAt, &oracleText)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ShortagePrediction{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.ShortagePrediction{}, fmt.Errorf("get prediction: %w", err)
	}
	if prediction.Hash, err = domain.ParseHash(hashText); err != nil {
		return models.ShortagePrediction{}, fmt.Errorf("decode stored prediction hash: %w", err)
	}
	prediction.Oracle = domain.Identity(oracleText)
	return prediction, nil
}

func (s *PostgresStore) Counters(ctx context.Context) (models.Stats, error) {
	const q = `SELECT total_registered, total_verifications, height FROM ledger_counters WHERE id`

	var stats models.Stats
	err := s.pool.QueryRow(ctx, q).Scan(&stats.TotalRegistered, &stats.TotalVerifications, &stats.Height)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Stats{}, nil
	}
	if err != nil {
		return models.Stats{}, fmt.Errorf("get counters: %w", err)
	}
	return stats, nil
}

// Apply runs the mutation's writes in one transaction.
func (s *PostgresStore) Apply(ctx context.Context, change Change) error {
	const upsertBatch = `INSERT INTO drug_batches (hash, issuer, registered_at, batch_id, valid, verifications)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hash) DO UPDATE SET
			issuer = EXCLUDED.issuer,
			registered_at = EXCLUDED.registered_at,
			batch_id = EXCLUDED.batch_id,
			valid = EXCLUDED.valid,
			verifications = EXCLUDED.verifications`
	const upsertPrediction = `INSERT INTO shortage_predictions (hash, drug_name, location, probability, recorded_at, oracle)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hash) DO UPDATE SET
			drug_name = EXCLUDED.drug_name,
			location = EXCLUDED.location,
			probability = EXCLUDED.probability,
			recorded_at = EXCLUDED.recorded_at,
			oracle = EXCLUDED.oracle`
	const upsertCounters = `INSERT INTO ledger_counters (id, total_registered, total_verifications, height)
		VALUES (TRUE, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			total_registered = EXCLUDED.total_registered,
			total_verifications = EXCLUDED.total_verifications,
			height = EXCLUDED.height`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin apply: %w", err)
	}
	defer tx.Rollback(ctx)

	if b := change.Batch; b != nil {
		if _, err := tx.Exec(ctx, upsertBatch,
			b.Hash.String(), b.Issuer.String(), b.RegisteredAt,
			b.BatchID, b.Valid, b.Verifications,
		); err != nil {
			return fmt.Errorf("put batch: %w", err)
		}
	}
	if p := change.Prediction; p != nil {
		if _, err := tx.Exec(ctx, upsertPrediction,
			p.Hash.String(), p.DrugName, p.Location,
			p.Probability, p.RecordedAt, p.Oracle.String(),
		); err != nil {
			return fmt.Errorf("put prediction: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, upsertCounters,
		change.Stats.TotalRegistered, change.Stats.TotalVerifications, change.Stats.Height,
	); err != nil {
		return fmt.Errorf("put counters: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit apply: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
