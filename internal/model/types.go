// Package model holds the wire and in-memory shapes shared by every core
// component: jobs, queue messages, batching inputs, and applier outputs.
package model

import (
	"github.com/go-openapi/strfmt"
)

// JobType enumerates the kinds of vectorize job. Only "Columns" exists today;
// the field is kept as a string (not a closed Go enum) because the wire
// format must round-trip values this repo does not yet define.
type JobType string

const JobTypeColumns JobType = "Columns"

// TableMethod selects where embeddings are materialized.
type TableMethod string

const (
	TableMethodAppend TableMethod = "append"
	TableMethodJoin   TableMethod = "join"
)

// IndexDistType records the operator class the destination schema was
// created with. The applier is agnostic to it; it is carried for the
// administrative surface (out of scope here) to read back.
type IndexDistType string

const (
	DistCosine       IndexDistType = "cosine"
	DistL2           IndexDistType = "l2"
	DistInnerProduct IndexDistType = "ip"
	DistDiskANNCosine IndexDistType = "diskann_cosine"
)

// JobParams is the job's `params` column, embedded verbatim into every
// JobMessage so a worker never needs to re-read the registry mid-flight.
type JobParams struct {
	Schema        string      `json:"schema"`
	Table         string      `json:"table"`
	Columns       []string    `json:"columns"`
	UpdateTimeCol *string     `json:"update_time_col,omitempty"`
	TableMethod   TableMethod `json:"table_method"`
	PrimaryKey    string      `json:"primary_key"`
	PkeyType      string      `json:"pkey_type"`
	APIKey        *string     `json:"api_key,omitempty"`
	Schedule      string      `json:"schedule"`
}

// IsRealtime reports whether the job is wired to trigger-driven enqueue.
func (p JobParams) IsRealtime() bool { return p.Schedule == "realtime" }

// JobMeta is the registry snapshot carried inside a JobMessage. SearchAlg is
// deprecated (see spec §9) but still serialized for wire compatibility; no
// operation in this repo reads it.
type JobMeta struct {
	JobID          int64            `json:"job_id"`
	Name           string           `json:"name"`
	JobType        JobType          `json:"job_type"`
	Transformer    string           `json:"transformer"`
	SearchAlg      string           `json:"search_alg"`
	Params         JobParams        `json:"params"`
	LastCompletion *strfmt.DateTime `json:"last_completion,omitempty"`
}

// Job is the registry's authoritative record (C1). IndexDistType is stored
// alongside the params that were live at registration time.
type Job struct {
	Meta          JobMeta
	IndexDistType IndexDistType
	ModelDim      uint32
}

// Input is one row queued for embedding: primary key rendered as text, the
// concatenated column text, and a precomputed token estimate.
type Input struct {
	RecordID      string `json:"record_id"`
	Inputs        string `json:"inputs"`
	TokenEstimate int32  `json:"token_estimate"`
}

// JobMessage is the unit of work placed on the work queue. The canonical
// form carries Inputs directly; RecordIDs exists for the realtime path,
// where the trigger emits only keys and the worker must hydrate them via
// the change detector before dispatch.
type JobMessage struct {
	JobName   string   `json:"job_name"`
	JobMeta   JobMeta  `json:"job_meta"`
	Inputs    []Input  `json:"inputs,omitempty"`
	RecordIDs []string `json:"record_ids,omitempty"`
}

// NeedsHydration reports whether this message carries only keys (form b)
// and must be expanded into Inputs by the change detector before dispatch.
func (m JobMessage) NeedsHydration() bool {
	return len(m.Inputs) == 0 && len(m.RecordIDs) > 0
}

// PairedEmbedding zips one Input's primary key with the provider's
// corresponding embedding, in response order.
type PairedEmbedding struct {
	PrimaryKey string
	Embedding  []float64
}

// GenericEmbeddingRequest is the uniform shape every provider accepts.
type GenericEmbeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// GenericEmbeddingResponse is the uniform shape every provider returns.
// Embeddings[i] corresponds to the i-th entry of the request's Input.
type GenericEmbeddingResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}
