package worker

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-openapi/strfmt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tembo-io/vectorize-core/internal/applier"
	"github.com/tembo-io/vectorize-core/internal/detector"
	"github.com/tembo-io/vectorize-core/internal/model"
	"github.com/tembo-io/vectorize-core/internal/providers"
	"github.com/tembo-io/vectorize-core/internal/queue"
	"github.com/tembo-io/vectorize-core/internal/registry"
	"github.com/tembo-io/vectorize-core/internal/tokenizer"
)

func TestFilterByRecordIDPreservesOnlyWanted(t *testing.T) {
	inputs := []model.Input{{RecordID: "1"}, {RecordID: "2"}, {RecordID: "3"}}
	out := filterByRecordID(inputs, []string{"2"})
	require.Len(t, out, 1)
	assert.Equal(t, "2", out[0].RecordID)
}

type memStore struct{ jobs map[string]*model.Job }

func (m *memStore) Get(_ context.Context, name string) (*model.Job, error) {
	j, ok := m.jobs[name]
	if !ok {
		return nil, model.ErrJobNotFound
	}
	return j, nil
}
func (m *memStore) Create(_ context.Context, job *model.Job) error { m.jobs[job.Meta.Name] = job; return nil }
func (m *memStore) UpdateLastCompletion(context.Context, string, *strfmt.DateTime) error { return nil }
func (m *memStore) Delete(_ context.Context, name string) error { delete(m.jobs, name); return nil }

func TestHandleArchivesOnRetryExhaustionWithoutExecuting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO vectorize_jobs_archive`).WillReturnResult(sqlmock.NewResult(0, 1))

	q := queue.New(db, "vectorize_jobs", 180*time.Second)
	reg := registry.New(&memStore{jobs: map[string]*model.Job{}})
	est, err := tokenizer.NewEstimator()
	require.NoError(t, err)
	det := detector.New(db, est)
	app := applier.New(db)

	w := New(q, reg, det, app, providers.Config{}, 2, time.Second, 10*time.Second, 10, zerolog.Nop())

	msg := queue.Message{ID: "01J000000000000000000000", ReadCt: 3, Body: model.JobMessage{JobName: "job1"}}
	err = w.handle(context.Background(), msg)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleDeletesWhenHydratedInputsEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id::text, title FROM public\.products`).WillReturnRows(sqlmock.NewRows([]string{"id", "title"}))
	mock.ExpectExec(`DELETE FROM vectorize_jobs`).WillReturnResult(sqlmock.NewResult(0, 1))

	q := queue.New(db, "vectorize_jobs", 180*time.Second)
	jobs := map[string]*model.Job{
		"job1": {Meta: model.JobMeta{Name: "job1", Params: model.JobParams{
			Schema: "public", Table: "products", PrimaryKey: "id", Columns: []string{"title"},
		}}},
	}
	reg := registry.New(&memStore{jobs: jobs})
	est, err := tokenizer.NewEstimator()
	require.NoError(t, err)
	det := detector.New(db, est)
	app := applier.New(db)

	w := New(q, reg, det, app, providers.Config{}, 2, time.Second, 10*time.Second, 10, zerolog.Nop())

	msg := queue.Message{ID: "01J000000000000000000001", ReadCt: 1, Body: model.JobMessage{
		JobName: "job1", RecordIDs: []string{"does-not-exist"},
	}}
	err = w.handle(context.Background(), msg)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
