// Package worker implements the Worker Loop (spec §4.7, C7): read a batch
// of messages from the work queue, dispatch each to its provider, apply the
// resulting embeddings, and decide whether to delete, archive, or defer the
// message based on the error taxonomy in spec §7.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tembo-io/vectorize-core/internal/applier"
	"github.com/tembo-io/vectorize-core/internal/detector"
	"github.com/tembo-io/vectorize-core/internal/metrics"
	"github.com/tembo-io/vectorize-core/internal/model"
	"github.com/tembo-io/vectorize-core/internal/providers"
	"github.com/tembo-io/vectorize-core/internal/queue"
	"github.com/tembo-io/vectorize-core/internal/registry"
	"github.com/tembo-io/vectorize-core/internal/transformer"
)

// Worker polls the work queue and drives messages to completion. Grounded
// on the outbox worker's ticker-driven Run/processOnce shape, generalized
// per spec §9's resolved archive/delete ambiguity: fatal error kinds and
// retry-exhaustion archive immediately; transient kinds are left for
// visibility-timeout expiry while attempts remain.
type Worker struct {
	queue             *queue.Queue
	registry          *registry.Registry
	detector          *detector.Detector
	applier           *applier.Applier
	providerCfg       providers.Config
	maxRetries        int
	pollInterval      time.Duration
	pollIntervalError time.Duration
	batchSize         int
	log               zerolog.Logger
}

// New constructs a Worker.
func New(
	q *queue.Queue,
	reg *registry.Registry,
	det *detector.Detector,
	app *applier.Applier,
	providerCfg providers.Config,
	maxRetries int,
	pollInterval, pollIntervalError time.Duration,
	batchSize int,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		queue: q, registry: reg, detector: det, applier: app,
		providerCfg: providerCfg, maxRetries: maxRetries,
		pollInterval: pollInterval, pollIntervalError: pollIntervalError,
		batchSize: batchSize, log: log,
	}
}

// Run polls the queue until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Dur("poll_interval", w.pollInterval).Int("batch", w.batchSize).Msg("worker starting")
	interval := w.pollInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker stopping")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.processOnce(ctx)
			next := w.pollInterval
			if err != nil {
				w.log.Error().Err(err).Msg("processOnce")
				next = w.pollIntervalError
			}
			if next != interval {
				interval = next
				ticker.Reset(interval)
			}
			_ = n
		}
	}
}

// processOnce reads one batch and handles each message independently,
// returning the count handled without error.
func (w *Worker) processOnce(ctx context.Context) (int, error) {
	msgs, err := w.queue.Read(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	ok := 0
	for _, msg := range msgs {
		if err := w.handle(ctx, msg); err != nil {
			w.log.Error().Err(err).Str("job", msg.Body.JobName).Str("msg_id", msg.ID).Msg("handle failed")
			continue
		}
		ok++
	}
	return ok, nil
}

// handle dispatches a single message through hydration (if needed),
// provider embedding, application, and the terminal queue decision.
func (w *Worker) handle(ctx context.Context, msg queue.Message) error {
	if msg.ReadCt > w.maxRetries {
		metrics.MessagesArchivedTotal.WithLabelValues(msg.Body.JobName, "retries_exhausted").Inc()
		metrics.MessagesProcessedTotal.WithLabelValues(msg.Body.JobName, "archived").Inc()
		return w.queue.Archive(ctx, msg.ID)
	}

	job, err := w.registry.Get(ctx, msg.Body.JobName)
	if err != nil {
		return w.finish(ctx, msg, err)
	}

	inputs := msg.Body.Inputs
	if msg.Body.NeedsHydration() {
		hydrated, err := w.detector.Detect(ctx, job)
		if err != nil {
			return w.finish(ctx, msg, err)
		}
		inputs = filterByRecordID(hydrated, msg.Body.RecordIDs)
	}
	if len(inputs) == 0 {
		return w.queue.Delete(ctx, msg.ID)
	}

	parsedModel, err := transformer.Parse(job.Meta.Transformer)
	if err != nil {
		return w.finish(ctx, msg, model.NewError(model.ErrKindTransformerInvalid, "worker.handle", err))
	}

	provider, err := providers.Get(parsedModel.Source, w.providerCfg)
	if err != nil {
		return w.finish(ctx, msg, err)
	}

	texts := providers.TrimInputs(inputs)
	start := time.Now()
	resp, err := provider.GenerateEmbeddings(ctx, model.GenericEmbeddingRequest{
		Input: texts,
		Model: parsedModel.Name,
	})
	metrics.EmbeddingRequestDuration.WithLabelValues(string(parsedModel.Source)).Observe(time.Since(start).Seconds())
	if err != nil {
		return w.finish(ctx, msg, err)
	}
	if len(resp.Embeddings) != len(inputs) {
		return w.finish(ctx, msg, model.NewError(model.ErrKindProviderProtocol, "worker.handle", errEmbeddingCountMismatch(len(inputs), len(resp.Embeddings))))
	}

	paired := make([]model.PairedEmbedding, len(inputs))
	for i, in := range inputs {
		paired[i] = model.PairedEmbedding{PrimaryKey: in.RecordID, Embedding: resp.Embeddings[i]}
	}

	if err := w.applier.Apply(ctx, job, paired); err != nil {
		return w.finish(ctx, msg, err)
	}

	metrics.BatchSize.Observe(float64(len(inputs)))
	metrics.MessagesProcessedTotal.WithLabelValues(job.Meta.Name, "success").Inc()
	return w.queue.Delete(ctx, msg.ID)
}

// finish applies the archive/delete/defer decision for a failed message.
func (w *Worker) finish(ctx context.Context, msg queue.Message, cause error) error {
	kind := model.KindOf(cause)
	jobName := msg.Body.JobName

	if kind.Retryable() && msg.ReadCt <= w.maxRetries {
		metrics.MessagesProcessedTotal.WithLabelValues(jobName, "deferred").Inc()
		return w.queue.Defer(ctx, msg.ID, queue.Backoff(msg.ReadCt))
	}

	metrics.MessagesArchivedTotal.WithLabelValues(jobName, string(kind)).Inc()
	metrics.MessagesProcessedTotal.WithLabelValues(jobName, "archived").Inc()
	if archErr := w.queue.Archive(ctx, msg.ID); archErr != nil {
		return archErr
	}
	return cause
}

func filterByRecordID(inputs []model.Input, wanted []string) []model.Input {
	want := make(map[string]bool, len(wanted))
	for _, id := range wanted {
		want[id] = true
	}
	out := make([]model.Input, 0, len(wanted))
	for _, in := range inputs {
		if want[in.RecordID] {
			out = append(out, in)
		}
	}
	return out
}

func errEmbeddingCountMismatch(want, got int) error {
	return &countMismatchError{want: want, got: got}
}

type countMismatchError struct{ want, got int }

func (e *countMismatchError) Error() string {
	return fmt.Sprintf("worker: provider returned %d embeddings for %d inputs", e.got, e.want)
}
