package registry

import (
	"context"
	"testing"

	"github.com/go-openapi/strfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tembo-io/vectorize-core/internal/model"
)

type fakeStore struct {
	jobs map[string]*model.Job
}

func newFakeStore() *fakeStore { return &fakeStore{jobs: map[string]*model.Job{}} }

func (f *fakeStore) Get(_ context.Context, name string) (*model.Job, error) {
	j, ok := f.jobs[name]
	if !ok {
		return nil, model.ErrJobNotFound
	}
	return j, nil
}

func (f *fakeStore) Create(_ context.Context, job *model.Job) error {
	job.Meta.JobID = int64(len(f.jobs) + 1)
	f.jobs[job.Meta.Name] = job
	return nil
}

func (f *fakeStore) UpdateLastCompletion(_ context.Context, name string, completion *strfmt.DateTime) error {
	j, ok := f.jobs[name]
	if !ok {
		return model.ErrJobNotFound
	}
	j.Meta.LastCompletion = completion
	return nil
}

func (f *fakeStore) Delete(_ context.Context, name string) error {
	if _, ok := f.jobs[name]; !ok {
		return model.ErrJobNotFound
	}
	delete(f.jobs, name)
	return nil
}

func TestRegistryCreateAndGet(t *testing.T) {
	r := New(newFakeStore())
	job := &model.Job{
		Meta: model.JobMeta{
			Name:        "product_search",
			JobType:     model.JobTypeColumns,
			Transformer: "openai/text-embedding-3-small",
			Params: model.JobParams{
				Schema: "public", Table: "products", Columns: []string{"title"},
				TableMethod: model.TableMethodJoin, PrimaryKey: "id", PkeyType: "bigint",
			},
		},
		IndexDistType: model.DistCosine,
		ModelDim:      1536,
	}
	require.NoError(t, r.Create(context.Background(), job))
	assert.NotZero(t, job.Meta.JobID)

	got, err := r.Get(context.Background(), "product_search")
	require.NoError(t, err)
	assert.Equal(t, "openai/text-embedding-3-small", got.Meta.Transformer)
}

func TestRegistryGetMissing(t *testing.T) {
	r := New(newFakeStore())
	_, err := r.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrJobNotFound)
}

func TestRegistryMarkCompletedAndDrop(t *testing.T) {
	r := New(newFakeStore())
	job := &model.Job{Meta: model.JobMeta{Name: "j1"}}
	require.NoError(t, r.Create(context.Background(), job))

	ts := strfmt.DateTime{}
	require.NoError(t, r.MarkCompleted(context.Background(), "j1", &ts))

	got, err := r.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.NotNil(t, got.Meta.LastCompletion)

	require.NoError(t, r.Drop(context.Background(), "j1"))
	_, err = r.Get(context.Background(), "j1")
	assert.ErrorIs(t, err, model.ErrJobNotFound)
}
