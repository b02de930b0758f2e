// Package triggers implements the Enqueue Triggers (spec §4.8, C8): the two
// entry points that turn a job's pending work into messages on the work
// queue — a scheduled cron tick, driven by the change detector, and a
// realtime hook fired by an external writer.
package triggers

import (
	"context"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/pkg/errors"

	"github.com/tembo-io/vectorize-core/internal/batcher"
	"github.com/tembo-io/vectorize-core/internal/detector"
	"github.com/tembo-io/vectorize-core/internal/model"
	"github.com/tembo-io/vectorize-core/internal/queue"
	"github.com/tembo-io/vectorize-core/internal/registry"
)

// ErrRealtimeAppendUnsupported is returned when a realtime trigger fires
// against a job configured with the append table method, which has no
// stable per-row embedding column to update from an external writer's
// change notification (spec §4.8's realtime+append rejection rule).
var ErrRealtimeAppendUnsupported = errors.New("triggers: realtime enqueue is not supported for append-layout jobs")

// DefaultTokenBudget bounds how many tokens' worth of inputs land in a
// single work-queue message before the batcher splits them, matching
// spec §4.8's BATCH_SIZE default.
const DefaultTokenBudget = 10000

// Triggers wires the detector, batcher, and queue together for both entry
// points.
type Triggers struct {
	registry *registry.Registry
	detector *detector.Detector
	queue    *queue.Queue
	budget   int32
}

// New constructs a Triggers.
func New(reg *registry.Registry, det *detector.Detector, q *queue.Queue) *Triggers {
	return &Triggers{registry: reg, detector: det, queue: q, budget: DefaultTokenBudget}
}

// Tick runs one cron-driven cycle for jobName: detect pending rows, batch
// them by token budget, send one message per batch, and record the job's
// last_completion timestamp so operators can see when a job was last
// checked (spec §3's Job.last_completion field).
func (t *Triggers) Tick(ctx context.Context, jobName string) (int, error) {
	job, err := t.registry.Get(ctx, jobName)
	if err != nil {
		return 0, err
	}

	inputs, err := t.detector.Detect(ctx, job)
	if err != nil {
		return 0, err
	}

	n := 0
	if len(inputs) > 0 {
		batches := batcher.Split(inputs, t.budget)
		for _, batch := range batches {
			msg := model.JobMessage{JobName: job.Meta.Name, JobMeta: job.Meta, Inputs: batch}
			if _, err := t.queue.Send(ctx, msg); err != nil {
				return 0, err
			}
		}
		n = len(batches)
	}

	completion := strfmt.DateTime(time.Now().UTC())
	if err := t.registry.MarkCompleted(ctx, jobName, &completion); err != nil {
		return n, err
	}
	return n, nil
}

// Realtime enqueues a hydration-needed message carrying only recordIDs, for
// jobs an external writer notifies about directly instead of waiting for
// the next cron tick. Only join-layout jobs support this path.
func (t *Triggers) Realtime(ctx context.Context, jobName string, recordIDs []string) error {
	job, err := t.registry.Get(ctx, jobName)
	if err != nil {
		return err
	}
	if job.Meta.Params.TableMethod == model.TableMethodAppend {
		return model.NewError(model.ErrKindConfig, "triggers.Realtime", ErrRealtimeAppendUnsupported)
	}
	if len(recordIDs) == 0 {
		return nil
	}

	msg := model.JobMessage{JobName: job.Meta.Name, JobMeta: job.Meta, RecordIDs: recordIDs}
	_, err = t.queue.Send(ctx, msg)
	return err
}
