// Package queue implements the durable Work Queue (spec §4.4, C4) atop
// Postgres: send, visibility-timeout-scoped read, archive, and delete.
// Leasing is grounded on the outbox worker's SELECT ... FOR UPDATE SKIP
// LOCKED pattern, generalized from "no visibility timeout, immediate
// commit" to an explicit locked_until column plus a separate archive table.
package queue

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid"

	"github.com/tembo-io/vectorize-core/internal/model"
)

const (
	selectReadySQL = `
SELECT msg_id, message, read_ct
FROM %[1]s
WHERE locked_until <= now()
ORDER BY msg_id ASC
FOR UPDATE SKIP LOCKED
LIMIT $1`

	leaseSQL = `
UPDATE %[1]s SET read_ct = read_ct + 1, locked_until = $2
WHERE msg_id = $1`

	deleteSQL = `DELETE FROM %[1]s WHERE msg_id = $1`

	archiveSQL = `
WITH moved AS (
	DELETE FROM %[1]s WHERE msg_id = $1
	RETURNING msg_id, message, read_ct, enqueued_at
)
INSERT INTO %[1]s_archive (msg_id, message, read_ct, enqueued_at, archived_at)
SELECT msg_id, message, read_ct, enqueued_at, now() FROM moved`

	sendSQL = `
INSERT INTO %[1]s (msg_id, message, read_ct, enqueued_at, locked_until)
VALUES ($1, $2, 0, now(), now())`

	setNextAttemptSQL = `UPDATE %[1]s SET locked_until = $2 WHERE msg_id = $1`
)

// Message is one leased work-queue row.
type Message struct {
	ID     string
	Body   model.JobMessage
	ReadCt int
}

// Queue is a single named Postgres-backed durable queue.
type Queue struct {
	db                *sql.DB
	table             string
	visibilityTimeout time.Duration
	entropy           *ulid.MonotonicEntropy
}

// New constructs a Queue bound to table, which must already exist with the
// schema documented in spec §4.4 (msg_id, message, read_ct, enqueued_at,
// locked_until) plus a sibling "<table>_archive" table.
func New(db *sql.DB, table string, visibilityTimeout time.Duration) *Queue {
	return &Queue{
		db:                db,
		table:             table,
		visibilityTimeout: visibilityTimeout,
		entropy:           ulid.Monotonic(rand.Reader, 0),
	}
}

// Send enqueues msg and returns its generated ULID message id. ULIDs keep
// archived rows naturally time-sortable without a separate sequence.
func (q *Queue) Send(ctx context.Context, msg model.JobMessage) (string, error) {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), q.entropy)
	body, err := json.Marshal(msg)
	if err != nil {
		return "", model.NewError(model.ErrKindSchemaMismatch, "queue.Send", err)
	}
	_, err = q.db.ExecContext(ctx, fmtTable(sendSQL, q.table), id.String(), body)
	if err != nil {
		return "", model.NewError(model.ErrKindDatabaseTransient, "queue.Send", err)
	}
	return id.String(), nil
}

// Read leases up to max messages whose visibility window has expired,
// incrementing each one's read_ct and extending locked_until by the
// queue's configured visibility timeout.
func (q *Queue) Read(ctx context.Context, max int) ([]Message, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, model.NewError(model.ErrKindDatabaseTransient, "queue.Read", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, fmtTable(selectReadySQL, q.table), max)
	if err != nil {
		return nil, model.NewError(model.ErrKindDatabaseTransient, "queue.Read", err)
	}

	type raw struct {
		id     string
		body   []byte
		readCt int
	}
	var leased []raw
	for rows.Next() {
		var r raw
		if err := rows.Scan(&r.id, &r.body, &r.readCt); err != nil {
			_ = rows.Close()
			return nil, model.NewError(model.ErrKindDatabaseTransient, "queue.Read", err)
		}
		leased = append(leased, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, model.NewError(model.ErrKindDatabaseTransient, "queue.Read", err)
	}
	_ = rows.Close()

	lockedUntil := time.Now().Add(q.visibilityTimeout)
	out := make([]Message, 0, len(leased))
	for _, r := range leased {
		if _, err := tx.ExecContext(ctx, fmtTable(leaseSQL, q.table), r.id, lockedUntil); err != nil {
			return nil, model.NewError(model.ErrKindDatabaseTransient, "queue.Read", err)
		}
		var body model.JobMessage
		if err := json.Unmarshal(r.body, &body); err != nil {
			return nil, model.NewError(model.ErrKindSchemaMismatch, "queue.Read", err)
		}
		out = append(out, Message{ID: r.id, Body: body, ReadCt: r.readCt + 1})
	}

	if err := tx.Commit(); err != nil {
		return nil, model.NewError(model.ErrKindDatabaseTransient, "queue.Read", err)
	}
	return out, nil
}

// Delete permanently removes a message, used after successful application.
func (q *Queue) Delete(ctx context.Context, id string) error {
	if _, err := q.db.ExecContext(ctx, fmtTable(deleteSQL, q.table), id); err != nil {
		return model.NewError(model.ErrKindDatabaseTransient, "queue.Delete", err)
	}
	return nil
}

// Archive moves a message to "<table>_archive", used on fatal errors and
// retry exhaustion so operators can inspect what failed (spec §9's resolved
// archive/delete worker ambiguity).
func (q *Queue) Archive(ctx context.Context, id string) error {
	if _, err := q.db.ExecContext(ctx, fmtTable(archiveSQL, q.table), id); err != nil {
		return model.NewError(model.ErrKindDatabaseTransient, "queue.Archive", err)
	}
	return nil
}

// Backoff computes the exponential backoff delay for a given read_ct: about
// 1s for read_ct 0, doubling with each read (with the library's default
// jitter) and capped at 5 minutes. The worker passes it to Defer as the
// message's next visibility window in place of the queue's flat visibility
// timeout.
func Backoff(readCt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxInterval = 5 * time.Minute
	var d time.Duration
	for i := 0; i <= readCt; i++ {
		d = b.NextBackOff()
	}
	if d == backoff.Stop {
		d = b.MaxInterval
	}
	return d
}

// Defer extends id's visibility window by delay, used by the worker to
// schedule a retry without incrementing read_ct a second time.
func (q *Queue) Defer(ctx context.Context, id string, delay time.Duration) error {
	next := time.Now().Add(delay)
	if _, err := q.db.ExecContext(ctx, fmtTable(setNextAttemptSQL, q.table), id, next); err != nil {
		return model.NewError(model.ErrKindDatabaseTransient, "queue.Defer", err)
	}
	return nil
}

func fmtTable(tmpl, table string) string {
	return fmt.Sprintf(tmpl, table)
}
