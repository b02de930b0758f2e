// Package registry implements the Job Registry (spec §4.1, C1): durable
// storage for job definitions, looked up by name before every detector and
// batcher pass.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/go-openapi/strfmt"
	"github.com/pkg/errors"

	"github.com/tembo-io/vectorize-core/internal/model"
)

// Store is the Job Registry's storage contract. The Postgres implementation
// is canonical; Spanner is wired as an alternate backend behind the same
// interface (see spannerstore.go).
type Store interface {
	Get(ctx context.Context, name string) (*model.Job, error)
	Create(ctx context.Context, job *model.Job) error
	UpdateLastCompletion(ctx context.Context, name string, completion *strfmt.DateTime) error
	Delete(ctx context.Context, name string) error
}

// PostgresStore is the canonical Store backend, modeled on the teacher's
// database/sql + pgx adapter pattern.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing *sql.DB (opened with the pgx stdlib
// driver) as a Store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, name string) (*model.Job, error) {
	var (
		job        model.Job
		paramsJSON []byte
		dist       string
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, name, job_type, transformer, search_alg, params, index_dist_type, model_dim, last_completion
		FROM vectorize.job WHERE name = $1
	`, name)
	if err := row.Scan(
		&job.Meta.JobID,
		&job.Meta.Name,
		&job.Meta.JobType,
		&job.Meta.Transformer,
		&job.Meta.SearchAlg,
		&paramsJSON,
		&dist,
		&job.ModelDim,
		&job.Meta.LastCompletion,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrJobNotFound
		}
		return nil, model.NewError(model.ErrKindDatabaseTransient, "registry.Get", err)
	}
	if err := json.Unmarshal(paramsJSON, &job.Meta.Params); err != nil {
		return nil, model.NewError(model.ErrKindSchemaMismatch, "registry.Get", err)
	}
	job.IndexDistType = model.IndexDistType(dist)
	return &job, nil
}

func (s *PostgresStore) Create(ctx context.Context, job *model.Job) error {
	paramsJSON, err := json.Marshal(job.Meta.Params)
	if err != nil {
		return model.NewError(model.ErrKindSchemaMismatch, "registry.Create", err)
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO vectorize.job (name, job_type, transformer, search_alg, params, index_dist_type, model_dim)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING job_id
	`, job.Meta.Name, job.Meta.JobType, job.Meta.Transformer, job.Meta.SearchAlg, paramsJSON, string(job.IndexDistType), job.ModelDim)
	if err := row.Scan(&job.Meta.JobID); err != nil {
		return model.NewError(model.ErrKindDatabaseTransient, "registry.Create", err)
	}
	return nil
}

func (s *PostgresStore) UpdateLastCompletion(ctx context.Context, name string, completion *strfmt.DateTime) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE vectorize.job SET last_completion = $2 WHERE name = $1
	`, name, completion)
	if err != nil {
		return model.NewError(model.ErrKindDatabaseTransient, "registry.UpdateLastCompletion", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vectorize.job WHERE name = $1`, name)
	if err != nil {
		return model.NewError(model.ErrKindDatabaseTransient, "registry.Delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.NewError(model.ErrKindDatabaseTransient, "registry.Delete", err)
	}
	if n == 0 {
		return model.ErrJobNotFound
	}
	return nil
}

// Registry resolves job definitions by name, backed by a Store. Transformer
// parsing lives in internal/transformer and model dimensions come from each
// provider's ModelDim; the Registry does neither.
type Registry struct {
	store Store
}

// New constructs a Registry over the given Store.
func New(store Store) *Registry {
	return &Registry{store: store}
}

// Get returns the named job's full definition.
func (r *Registry) Get(ctx context.Context, name string) (*model.Job, error) {
	return r.store.Get(ctx, name)
}

// Create registers a new job definition.
func (r *Registry) Create(ctx context.Context, job *model.Job) error {
	return r.store.Create(ctx, job)
}

// MarkCompleted records the job's last_completion timestamp. This is
// bookkeeping only: the change detector's queries do not read it.
func (r *Registry) MarkCompleted(ctx context.Context, name string, completion *strfmt.DateTime) error {
	return r.store.UpdateLastCompletion(ctx, name, completion)
}

// Drop removes a job definition.
func (r *Registry) Drop(ctx context.Context, name string) error {
	return r.store.Delete(ctx, name)
}
