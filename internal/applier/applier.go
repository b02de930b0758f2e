// Package applier implements the Result Applier (spec §4.6, C6): writing a
// batch of PairedEmbedding results back to Postgres, either as upserts into
// a job-owned sidecar table (join layout) or as updates against the source
// table's own embedding columns (append layout).
package applier

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/tembo-io/vectorize-core/internal/model"
)

// identifierRx mirrors the detector's identifier guard: every schema/table/
// column/job name interpolated into SQL here passes through it first.
var identifierRx = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ErrInvalidIdentifier is returned when a job name or column identifier
// used to build SQL fails validation.
var ErrInvalidIdentifier = errors.New("applier: invalid identifier")

func validateIdentifier(name string) error {
	if !identifierRx.MatchString(name) {
		return errors.Wrapf(ErrInvalidIdentifier, "%q", name)
	}
	return nil
}

// bulkThreshold is the row count above which the append layout switches
// from individual UPDATE statements to the temp-table bulk path.
const bulkThreshold = 10

// Applier writes PairedEmbedding results to their destination table.
type Applier struct {
	db *sql.DB
}

// New constructs an Applier.
func New(db *sql.DB) *Applier {
	return &Applier{db: db}
}

// Apply writes embeddings for job to their configured destination,
// dispatching on job.Meta.Params.TableMethod.
func (a *Applier) Apply(ctx context.Context, job *model.Job, embeddings []model.PairedEmbedding) error {
	p := job.Meta.Params
	if err := validateIdentifier(p.PrimaryKey); err != nil {
		return model.NewError(model.ErrKindSchemaMismatch, "applier.Apply", err)
	}
	if err := validateIdentifier(job.Meta.Name); err != nil {
		return model.NewError(model.ErrKindSchemaMismatch, "applier.Apply", err)
	}

	switch p.TableMethod {
	case model.TableMethodJoin:
		return a.upsertJoinTable(ctx, job, embeddings)
	case model.TableMethodAppend:
		if len(embeddings) > bulkThreshold {
			return a.bulkUpdateAppendTable(ctx, job, embeddings)
		}
		return a.updateAppendTableRows(ctx, job, embeddings)
	default:
		return model.NewError(model.ErrKindConfig, "applier.Apply", fmt.Errorf("unknown table method %q", p.TableMethod))
	}
}

// upsertJoinTable inserts or updates rows in
// vectorize._embeddings_<job>(pkey, embeddings), one INSERT ... ON CONFLICT
// statement covering the whole batch, ported from
// build_upsert_query/upsert_embedding_table.
func (a *Applier) upsertJoinTable(ctx context.Context, job *model.Job, embeddings []model.PairedEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	p := job.Meta.Params
	if err := validateIdentifier(p.PkeyType); err != nil {
		return model.NewError(model.ErrKindSchemaMismatch, "applier.upsertJoinTable", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO vectorize._embeddings_%s (%s, embeddings) VALUES", job.Meta.Name, p.PrimaryKey)

	args := make([]interface{}, 0, len(embeddings)*2)
	for i, pair := range embeddings {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, " ($%d::%s, $%d::vector)", 2*i+1, p.PkeyType, 2*i+2)

		embJSON, err := json.Marshal(pair.Embedding)
		if err != nil {
			return model.NewError(model.ErrKindSchemaMismatch, "applier.upsertJoinTable", err)
		}
		args = append(args, pair.PrimaryKey, string(embJSON))
	}
	fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET embeddings = EXCLUDED.embeddings, updated_at = NOW()", p.PrimaryKey)

	if _, err := a.db.ExecContext(ctx, b.String(), args...); err != nil {
		return model.NewError(model.ErrKindDatabaseTransient, "applier.upsertJoinTable", err)
	}
	return nil
}

// updateAppendTableRows issues one UPDATE statement per row, used for
// append-layout batches of bulkThreshold rows or fewer, ported from
// update_append_table.
func (a *Applier) updateAppendTableRows(ctx context.Context, job *model.Job, embeddings []model.PairedEmbedding) error {
	p := job.Meta.Params
	if err := validateIdentifier(p.Schema); err != nil {
		return model.NewError(model.ErrKindSchemaMismatch, "applier.updateAppendTableRows", err)
	}
	if err := validateIdentifier(p.Table); err != nil {
		return model.NewError(model.ErrKindSchemaMismatch, "applier.updateAppendTableRows", err)
	}
	if err := validateIdentifier(p.PkeyType); err != nil {
		return model.NewError(model.ErrKindSchemaMismatch, "applier.updateAppendTableRows", err)
	}

	query := fmt.Sprintf(
		`UPDATE %s.%s SET %s_embeddings = $1::vector, %s_updated_at = NOW() WHERE %s = $2::%s`,
		p.Schema, p.Table, job.Meta.Name, job.Meta.Name, p.PrimaryKey, p.PkeyType,
	)

	for _, pair := range embeddings {
		embJSON, err := json.Marshal(pair.Embedding)
		if err != nil {
			return model.NewError(model.ErrKindSchemaMismatch, "applier.updateAppendTableRows", err)
		}
		if _, err := a.db.ExecContext(ctx, query, string(embJSON), pair.PrimaryKey); err != nil {
			return model.NewError(model.ErrKindDatabaseTransient, "applier.updateAppendTableRows", err)
		}
	}
	return nil
}

// bulkUpdateAppendTable creates an ON COMMIT DROP temp table, bulk-inserts
// every row into it in one INSERT, then updates the destination table via
// a join against the temp table — all within one transaction. Ported from
// bulk_update_embeddings.
func (a *Applier) bulkUpdateAppendTable(ctx context.Context, job *model.Job, embeddings []model.PairedEmbedding) error {
	p := job.Meta.Params
	if err := validateIdentifier(p.Schema); err != nil {
		return model.NewError(model.ErrKindSchemaMismatch, "applier.bulkUpdateAppendTable", err)
	}
	if err := validateIdentifier(p.Table); err != nil {
		return model.NewError(model.ErrKindSchemaMismatch, "applier.bulkUpdateAppendTable", err)
	}
	if err := validateIdentifier(p.PkeyType); err != nil {
		return model.NewError(model.ErrKindSchemaMismatch, "applier.bulkUpdateAppendTable", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return model.NewError(model.ErrKindDatabaseTransient, "applier.bulkUpdateAppendTable", err)
	}
	defer func() { _ = tx.Rollback() }()

	tmpTable := fmt.Sprintf("temp_embeddings_%s", job.Meta.Name)
	createTmp := fmt.Sprintf(
		`CREATE TEMP TABLE IF NOT EXISTS %s (pkey %s PRIMARY KEY, embeddings vector) ON COMMIT DROP`,
		tmpTable, p.PkeyType,
	)
	if _, err := tx.ExecContext(ctx, createTmp); err != nil {
		return model.NewError(model.ErrKindDatabaseTransient, "applier.bulkUpdateAppendTable", err)
	}

	var insert strings.Builder
	fmt.Fprintf(&insert, "INSERT INTO %s (pkey, embeddings) VALUES", tmpTable)
	args := make([]interface{}, 0, len(embeddings)*2)
	for i, pair := range embeddings {
		if i > 0 {
			insert.WriteString(", ")
		}
		fmt.Fprintf(&insert, "($%d::%s, $%d::vector)", 2*i+1, p.PkeyType, 2*i+2)
		embJSON, err := json.Marshal(pair.Embedding)
		if err != nil {
			return model.NewError(model.ErrKindSchemaMismatch, "applier.bulkUpdateAppendTable", err)
		}
		args = append(args, pair.PrimaryKey, string(embJSON))
	}
	if _, err := tx.ExecContext(ctx, insert.String(), args...); err != nil {
		return model.NewError(model.ErrKindDatabaseTransient, "applier.bulkUpdateAppendTable", err)
	}

	update := fmt.Sprintf(
		`UPDATE %[1]s.%[2]s SET %[3]s_embeddings = temp.embeddings, %[3]s_updated_at = NOW()
FROM %[4]s temp WHERE %[1]s.%[2]s.%[5]s::%[6]s = temp.pkey::%[6]s`,
		p.Schema, p.Table, job.Meta.Name, tmpTable, p.PrimaryKey, p.PkeyType,
	)
	if _, err := tx.ExecContext(ctx, update); err != nil {
		return model.NewError(model.ErrKindDatabaseTransient, "applier.bulkUpdateAppendTable", err)
	}

	if err := tx.Commit(); err != nil {
		return model.NewError(model.ErrKindDatabaseTransient, "applier.bulkUpdateAppendTable", err)
	}
	return nil
}
