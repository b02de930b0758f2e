package detector

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tembo-io/vectorize-core/internal/model"
	"github.com/tembo-io/vectorize-core/internal/tokenizer"
)

func newJob(schema, table, pkey string, cols []string) *model.Job {
	return &model.Job{
		Meta: model.JobMeta{
			Name: "job1",
			Params: model.JobParams{
				Schema: schema, Table: table, PrimaryKey: pkey, Columns: cols,
			},
		},
	}
}

func TestDetectFirstRunFullScan(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "title"}).
		AddRow("1", "hello world").
		AddRow("2", "another row")
	mock.ExpectQuery(`SELECT id::text, title FROM public\.products`).WillReturnRows(rows)

	est, err := tokenizer.NewEstimator()
	require.NoError(t, err)
	d := New(db, est)

	job := newJob("public", "products", "id", []string{"title"})
	out, err := d.Detect(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].RecordID)
	assert.Equal(t, "hello world", out[0].Inputs)
	assert.Greater(t, out[0].TokenEstimate, int32(0))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDetectRejectsInvalidIdentifier(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	est, err := tokenizer.NewEstimator()
	require.NoError(t, err)
	d := New(db, est)

	job := newJob("public; drop table x", "products", "id", []string{"title"})
	_, err = d.Detect(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, model.ErrKindSchemaMismatch, model.KindOf(err))
}

func TestDetectSkipsNullColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "title", "body"}).
		AddRow("1", nil, "only body")
	mock.ExpectQuery(`SELECT id::text, title, body FROM public\.products`).WillReturnRows(rows)

	est, err := tokenizer.NewEstimator()
	require.NoError(t, err)
	d := New(db, est)

	job := newJob("public", "products", "id", []string{"title", "body"})
	out, err := d.Detect(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "only body", out[0].Inputs)
}

func TestDetectJoinLayoutSelectsNeverEmbeddedOrStaleRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "title"}).AddRow("1", "hello world")
	mock.ExpectQuery(`SELECT t0\.id::text, t0\.title FROM public\.products t0 LEFT JOIN vectorize\._embeddings_job1 t1 USING \(id\) WHERE t1\.id IS NULL OR t0\.updated_at > COALESCE\(t1\.updated_at, 'epoch'::timestamp\)`).
		WillReturnRows(rows)

	est, err := tokenizer.NewEstimator()
	require.NoError(t, err)
	d := New(db, est)

	updateCol := "updated_at"
	job := newJob("public", "products", "id", []string{"title"})
	job.Meta.Params.TableMethod = model.TableMethodJoin
	job.Meta.Params.UpdateTimeCol = &updateCol

	out, err := d.Detect(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDetectAppendLayoutFiltersByOwnUpdatedAtColumn(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "title"}).AddRow("1", "hello world")
	mock.ExpectQuery(`SELECT id::text, title FROM public\.products WHERE updated_at > COALESCE\(job1_updated_at, 'epoch'::timestamp\)`).
		WillReturnRows(rows)

	est, err := tokenizer.NewEstimator()
	require.NoError(t, err)
	d := New(db, est)

	updateCol := "updated_at"
	job := newJob("public", "products", "id", []string{"title"})
	job.Meta.Params.UpdateTimeCol = &updateCol

	out, err := d.Detect(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
