package triggers

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-openapi/strfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tembo-io/vectorize-core/internal/detector"
	"github.com/tembo-io/vectorize-core/internal/model"
	"github.com/tembo-io/vectorize-core/internal/queue"
	"github.com/tembo-io/vectorize-core/internal/registry"
	"github.com/tembo-io/vectorize-core/internal/tokenizer"
)

type store struct{ jobs map[string]*model.Job }

func (s *store) Get(_ context.Context, name string) (*model.Job, error) {
	j, ok := s.jobs[name]
	if !ok {
		return nil, model.ErrJobNotFound
	}
	return j, nil
}
func (s *store) Create(context.Context, *model.Job) error                                { return nil }
func (s *store) UpdateLastCompletion(context.Context, string, *strfmt.DateTime) error     { return nil }
func (s *store) Delete(context.Context, string) error                                    { return nil }

func TestRealtimeRejectsAppendLayout(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	jobs := map[string]*model.Job{
		"j1": {Meta: model.JobMeta{Name: "j1", Params: model.JobParams{TableMethod: model.TableMethodAppend}}},
	}
	reg := registry.New(&store{jobs: jobs})
	est, err := tokenizer.NewEstimator()
	require.NoError(t, err)
	det := detector.New(db, est)
	q := queue.New(db, "vectorize_jobs", 180*time.Second)

	tr := New(reg, det, q)
	err = tr.Realtime(context.Background(), "j1", []string{"1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRealtimeAppendUnsupported)
}

func TestRealtimeEnqueuesForJoinLayout(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO vectorize_jobs`).WillReturnResult(sqlmock.NewResult(0, 1))

	jobs := map[string]*model.Job{
		"j1": {Meta: model.JobMeta{Name: "j1", Params: model.JobParams{TableMethod: model.TableMethodJoin}}},
	}
	reg := registry.New(&store{jobs: jobs})
	est, err := tokenizer.NewEstimator()
	require.NoError(t, err)
	det := detector.New(db, est)
	q := queue.New(db, "vectorize_jobs", 180*time.Second)

	tr := New(reg, det, q)
	require.NoError(t, tr.Realtime(context.Background(), "j1", []string{"1", "2"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTickSendsOneMessagePerBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "title"}).AddRow("1", "hello")
	mock.ExpectQuery(`SELECT t0\.id::text, t0\.title FROM public\.products t0`).WillReturnRows(rows)
	mock.ExpectExec(`INSERT INTO vectorize_jobs`).WillReturnResult(sqlmock.NewResult(0, 1))

	jobs := map[string]*model.Job{
		"j1": {Meta: model.JobMeta{Name: "j1", Params: model.JobParams{
			Schema: "public", Table: "products", PrimaryKey: "id", Columns: []string{"title"},
			TableMethod: model.TableMethodJoin,
		}}},
	}
	reg := registry.New(&store{jobs: jobs})
	est, err := tokenizer.NewEstimator()
	require.NoError(t, err)
	det := detector.New(db, est)
	q := queue.New(db, "vectorize_jobs", 180*time.Second)

	tr := New(reg, det, q)
	n, err := tr.Tick(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
