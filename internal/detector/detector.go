// Package detector implements the Change Detector (spec §4.2, C2): it finds
// source rows a job has not yet embedded (or has not re-embedded since an
// update), concatenates the configured columns, and attaches a token
// estimate to each resulting Input.
package detector

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/tembo-io/vectorize-core/internal/model"
	"github.com/tembo-io/vectorize-core/internal/tokenizer"
)

// identifierRx is the sole defense against SQL injection through
// job-configured schema/table/column names, which this package must
// interpolate directly since database/sql cannot bind identifiers.
var identifierRx = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ErrInvalidIdentifier is returned when a job's schema, table, column, or
// primary key name fails identifier validation.
var ErrInvalidIdentifier = errors.New("detector: invalid identifier")

func validateIdentifier(name string) error {
	if !identifierRx.MatchString(name) {
		return errors.Wrapf(ErrInvalidIdentifier, "%q", name)
	}
	return nil
}

// Detector runs a job's row-selection query against its source table.
type Detector struct {
	db  *sql.DB
	est *tokenizer.Estimator
}

// New constructs a Detector.
func New(db *sql.DB, est *tokenizer.Estimator) *Detector {
	return &Detector{db: db, est: est}
}

// Detect selects rows pending embedding for job and returns them as Inputs
// with a precomputed token estimate. The watermark is per-row, not
// job-level: a row qualifies when it has never been embedded or when its
// update_time_col is newer than its own embedding's updated_at (append:
// the row's own "<job>_updated_at" column; join: the sidecar table's
// "updated_at" via LEFT JOIN), per spec §4.2.
func (d *Detector) Detect(ctx context.Context, job *model.Job) ([]model.Input, error) {
	p := job.Meta.Params

	if err := validateIdentifier(job.Meta.Name); err != nil {
		return nil, model.NewError(model.ErrKindSchemaMismatch, "detector.Detect", err)
	}
	if err := validateIdentifier(p.Schema); err != nil {
		return nil, model.NewError(model.ErrKindSchemaMismatch, "detector.Detect", err)
	}
	if err := validateIdentifier(p.Table); err != nil {
		return nil, model.NewError(model.ErrKindSchemaMismatch, "detector.Detect", err)
	}
	if err := validateIdentifier(p.PrimaryKey); err != nil {
		return nil, model.NewError(model.ErrKindSchemaMismatch, "detector.Detect", err)
	}
	for _, c := range p.Columns {
		if err := validateIdentifier(c); err != nil {
			return nil, model.NewError(model.ErrKindSchemaMismatch, "detector.Detect", err)
		}
	}
	if p.UpdateTimeCol != nil {
		if err := validateIdentifier(*p.UpdateTimeCol); err != nil {
			return nil, model.NewError(model.ErrKindSchemaMismatch, "detector.Detect", err)
		}
	}

	query := d.buildQuery(job.Meta.Name, p)

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, model.NewError(model.ErrKindSchemaMismatch, "detector.Detect", err)
		}
		return nil, model.NewError(model.ErrKindDatabaseTransient, "detector.Detect", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Input
	for rows.Next() {
		var pkey string
		cols := make([]sql.NullString, len(p.Columns))
		dest := make([]interface{}, 0, len(p.Columns)+1)
		dest = append(dest, &pkey)
		for i := range cols {
			dest = append(dest, &cols[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, model.NewError(model.ErrKindDatabaseTransient, "detector.Detect", err)
		}

		concatenated := concatColumns(cols)
		est, err := d.est.Estimate(concatenated)
		if err != nil {
			return nil, model.NewError(model.ErrKindTokenization, "detector.Detect", err)
		}

		out = append(out, model.Input{
			RecordID:      pkey,
			Inputs:        strings.TrimSpace(concatenated),
			TokenEstimate: est,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewError(model.ErrKindDatabaseTransient, "detector.Detect", err)
	}
	return out, nil
}

// buildQuery renders the append or join selection query per spec §4.2.
// Identifiers (including jobName) have already been validated by the
// caller.
//
// append: SELECT pk::text, cols FROM schema.table
//
//	[WHERE update_time_col > COALESCE(<job>_updated_at, epoch)]
//
// join: SELECT t0.pk::text, t0.cols FROM schema.table t0
//
//	LEFT JOIN vectorize._embeddings_<job> t1 USING (pk)
//	WHERE t1.pk IS NULL [OR t0.update_time_col > COALESCE(t1.updated_at, epoch)]
func (d *Detector) buildQuery(jobName string, p model.JobParams) string {
	qualified := fmt.Sprintf("%s.%s", p.Schema, p.Table)

	if p.TableMethod == model.TableMethodJoin {
		t0Cols := make([]string, len(p.Columns))
		for i, c := range p.Columns {
			t0Cols[i] = "t0." + c
		}
		embTable := fmt.Sprintf("vectorize._embeddings_%s", jobName)

		var b strings.Builder
		fmt.Fprintf(&b, "SELECT t0.%s::text, %s FROM %s t0 LEFT JOIN %s t1 USING (%s) WHERE t1.%s IS NULL",
			p.PrimaryKey, strings.Join(t0Cols, ", "), qualified, embTable, p.PrimaryKey, p.PrimaryKey)
		if p.UpdateTimeCol != nil {
			fmt.Fprintf(&b, " OR t0.%s > COALESCE(t1.updated_at, 'epoch'::timestamp)", *p.UpdateTimeCol)
		}
		return b.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s::text, %s FROM %s", p.PrimaryKey, strings.Join(p.Columns, ", "), qualified)
	if p.UpdateTimeCol != nil {
		fmt.Fprintf(&b, " WHERE %s > COALESCE(%s_updated_at, 'epoch'::timestamp)", *p.UpdateTimeCol, jobName)
	}
	return b.String()
}

// concatColumns joins the configured columns' values with ", ", skipping
// NULLs, matching spec §4.2's "concat(columns, ', ')" and the original
// implementation's collapse_to_csv separator.
func concatColumns(cols []sql.NullString) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		if c.Valid {
			parts = append(parts, c.String)
		}
	}
	return strings.Join(parts, ", ")
}

// isUndefinedTable reports whether err is Postgres's undefined_table
// SQLSTATE (42P01), raised when a job's source table has been dropped out
// from under it.
func isUndefinedTable(err error) bool {
	return strings.Contains(err.Error(), "42P01")
}
