package registry

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/spanner"
	"github.com/go-openapi/strfmt"
	"google.golang.org/api/iterator"

	"github.com/tembo-io/vectorize-core/internal/model"
)

// SpannerStore is an alternate Store backend for deployments that run the
// registry on Cloud Spanner instead of Postgres. The work queue (C4) and
// result applier (C6) remain Postgres-only — only job definitions move.
type SpannerStore struct {
	client *spanner.Client
}

// NewSpannerStore wraps an existing Spanner client as a Store.
func NewSpannerStore(client *spanner.Client) *SpannerStore {
	return &SpannerStore{client: client}
}

func (s *SpannerStore) Get(ctx context.Context, name string) (*model.Job, error) {
	stmt := spanner.Statement{
		SQL: `SELECT JobId, Name, JobType, Transformer, SearchAlg, Params, IndexDistType, ModelDim, LastCompletion
			  FROM Jobs WHERE Name = @name`,
		Params: map[string]interface{}{"name": name},
	}
	iter := s.client.Single().Query(ctx, stmt)
	defer iter.Stop()

	row, err := iter.Next()
	if err == iterator.Done {
		return nil, model.ErrJobNotFound
	}
	if err != nil {
		return nil, model.NewError(model.ErrKindDatabaseTransient, "registry.spanner.Get", err)
	}

	var (
		job        model.Job
		paramsJSON string
		dist       string
		lastCompl  spanner.NullTime
	)
	if err := row.Columns(
		&job.Meta.JobID,
		&job.Meta.Name,
		&job.Meta.JobType,
		&job.Meta.Transformer,
		&job.Meta.SearchAlg,
		&paramsJSON,
		&dist,
		&job.ModelDim,
		&lastCompl,
	); err != nil {
		return nil, model.NewError(model.ErrKindDatabaseTransient, "registry.spanner.Get", err)
	}
	if err := json.Unmarshal([]byte(paramsJSON), &job.Meta.Params); err != nil {
		return nil, model.NewError(model.ErrKindSchemaMismatch, "registry.spanner.Get", err)
	}
	job.IndexDistType = model.IndexDistType(dist)
	if lastCompl.Valid {
		dt := strfmt.DateTime(lastCompl.Time)
		job.Meta.LastCompletion = &dt
	}
	return &job, nil
}

func (s *SpannerStore) Create(ctx context.Context, job *model.Job) error {
	paramsJSON, err := json.Marshal(job.Meta.Params)
	if err != nil {
		return model.NewError(model.ErrKindSchemaMismatch, "registry.spanner.Create", err)
	}
	mutation := spanner.Insert("Jobs",
		[]string{"Name", "JobType", "Transformer", "SearchAlg", "Params", "IndexDistType", "ModelDim"},
		[]interface{}{job.Meta.Name, string(job.Meta.JobType), job.Meta.Transformer, job.Meta.SearchAlg, string(paramsJSON), string(job.IndexDistType), int64(job.ModelDim)},
	)
	if _, err := s.client.Apply(ctx, []*spanner.Mutation{mutation}); err != nil {
		return model.NewError(model.ErrKindDatabaseTransient, "registry.spanner.Create", err)
	}
	return nil
}

func (s *SpannerStore) UpdateLastCompletion(ctx context.Context, name string, completion *strfmt.DateTime) error {
	mutation := spanner.Update("Jobs",
		[]string{"Name", "LastCompletion"},
		[]interface{}{name, spanner.CommitTimestamp},
	)
	_ = completion // the registry always stamps server commit time on Spanner, not the caller's clock
	if _, err := s.client.Apply(ctx, []*spanner.Mutation{mutation}); err != nil {
		return model.NewError(model.ErrKindDatabaseTransient, "registry.spanner.UpdateLastCompletion", err)
	}
	return nil
}

func (s *SpannerStore) Delete(ctx context.Context, name string) error {
	mutation := spanner.Delete("Jobs", spanner.Key{name})
	if _, err := s.client.Apply(ctx, []*spanner.Mutation{mutation}); err != nil {
		return model.NewError(model.ErrKindDatabaseTransient, "registry.spanner.Delete", err)
	}
	return nil
}
