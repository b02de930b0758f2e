package queue

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tembo-io/vectorize-core/internal/model"
)

func TestSendInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO vectorize_jobs`).WillReturnResult(sqlmock.NewResult(0, 1))

	q := New(db, "vectorize_jobs", 180*time.Second)
	id, err := q.Send(context.Background(), model.JobMessage{JobName: "job1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadLeasesAndIncrementsReadCt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"msg_id", "message", "read_ct"}).
		AddRow("01J000000000000000000000", []byte(`{"job_name":"job1"}`), 0)
	mock.ExpectQuery(`SELECT msg_id, message, read_ct`).WillReturnRows(rows)
	mock.ExpectExec(`UPDATE vectorize_jobs SET read_ct`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	q := New(db, "vectorize_jobs", 180*time.Second)
	msgs, err := q.Read(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "job1", msgs[0].Body.JobName)
	assert.Equal(t, 1, msgs[0].ReadCt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveMovesRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO vectorize_jobs_archive`).WillReturnResult(sqlmock.NewResult(0, 1))

	q := New(db, "vectorize_jobs", 180*time.Second)
	require.NoError(t, q.Archive(context.Background(), "01J000000000000000000000"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackoffGrowsWithReadCt(t *testing.T) {
	d0 := Backoff(0)
	d3 := Backoff(3)
	assert.Greater(t, d3, d0)
}
