package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"pantry/internal/blob"
	"pantry/internal/domain"
	"pantry/internal/imaging"
	"pantry/internal/metrics"
	"pantry/internal/vision"
)

var ErrBusy = errors.New("too many ingestions in progress")

// ErrorKind classifies why an ingestion run failed.
type ErrorKind string

const (
	KindUnsupportedFormat  ErrorKind = "unsupported_format"
	KindProcessingFailure  ErrorKind = "processing_failure"
	KindStorageUnavailable ErrorKind = "storage_unavailable"
	KindInferenceFailure   ErrorKind = "inference_failure"
	KindParseFailure       ErrorKind = "parse_failure"
	KindMergeFailure       ErrorKind = "merge_failure"
	KindTimeout            ErrorKind = "timeout"
	KindCanceled           ErrorKind = "canceled"
)

// KindOf maps a stage error to its kind. Timeouts and cancellation win over
// the underlying cause.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrStageTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, blob.ErrStorageUnavailable):
		return KindStorageUnavailable
	case errors.Is(err, vision.ErrInferenceFailure):
		return KindInferenceFailure
	case errors.Is(err, vision.ErrParseFailure):
		return KindParseFailure
	case errors.Is(err, ErrMergeFailure):
		return KindMergeFailure
	default:
		return KindProcessingFailure
	}
}

// PipelineError reports a failed run. Stage is the stage the run was trying
// to reach; RawText carries the model output when parsing it failed.
type PipelineError struct {
	Stage   domain.IngestionStage
	Kind    ErrorKind
	RawText string
	Err     error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("ingestion failed at %s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IngestionReport describes a completed run. Applied is empty unless the
// detected items were merged.
type IngestionReport struct {
	Stage    domain.IngestionStage
	ImageURL string
	RawText  string
	Items    domain.IngestionResult
	Merged   bool
	Applied  []*domain.InventoryItem
}

type PipelineOptions struct {
	Constraints      imaging.Constraints
	Prompt           string
	AutoMerge        bool
	UploadTimeout    time.Duration
	InferenceTimeout time.Duration
	MaxConcurrent    int
}

type IngestionPipeline struct {
	blobs     blob.Store
	vision    vision.Inferrer
	inventory *InventoryService
	logger    Logger
	opts      PipelineOptions
	sem       *semaphore.Weighted
}

func NewIngestionPipeline(blobs blob.Store, inferrer vision.Inferrer, inventory *InventoryService, logger Logger, opts PipelineOptions) *IngestionPipeline {
	if opts.Constraints.MaxDimension <= 0 {
		opts.Constraints = imaging.DefaultConstraints()
	}
	p := &IngestionPipeline{
		blobs:     blobs,
		vision:    inferrer,
		inventory: inventory,
		logger:    logger,
		opts:      opts,
	}
	if opts.MaxConcurrent > 0 {
		p.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	return p
}

// Ingest runs one photo through normalize, store, infer, parse and, in auto
// merge mode, merge. Stages run strictly in order and the first failure ends
// the run. A blob stored by a failed run is deleted before returning.
func (p *IngestionPipeline) Ingest(ctx context.Context, req domain.IngestionRequest) (*IngestionReport, error) {
	if p.sem != nil {
		if !p.sem.TryAcquire(1) {
			return nil, ErrBusy
		}
		defer p.sem.Release(1)
	}

	run := &ingestionRun{pipeline: p, report: &IngestionReport{Stage: domain.StageReceived}, last: time.Now()}

	img, err := imaging.Normalize(req.Data, p.opts.Constraints)
	if err != nil {
		return run.fail(ctx, domain.StageNormalized, err)
	}
	run.advance(domain.StageNormalized)

	obj, err := withTimeout(ctx, p.opts.UploadTimeout, func(ctx context.Context) (*blob.Object, error) {
		return p.blobs.Upload(ctx, img.Data, img.ContentType, req.Filename)
	})
	if err != nil {
		return run.fail(ctx, domain.StageStored, err)
	}
	run.object = obj
	run.report.ImageURL = obj.URL
	run.advance(domain.StageStored)

	raw, err := withTimeout(ctx, p.opts.InferenceTimeout, func(ctx context.Context) (string, error) {
		return p.vision.Infer(ctx, obj.URL, p.opts.Prompt)
	})
	if err != nil {
		return run.fail(ctx, domain.StageInferred, err)
	}
	run.report.RawText = raw
	run.advance(domain.StageInferred)

	items, err := vision.ParseQuantities(raw)
	if err != nil {
		return run.fail(ctx, domain.StageParsed, err)
	}
	run.report.Items = items
	run.advance(domain.StageParsed)

	if p.opts.AutoMerge {
		applied, err := p.inventory.Merge(ctx, items)
		run.report.Applied = applied
		if err != nil {
			if !errors.Is(err, ErrMergeFailure) {
				err = fmt.Errorf("%w: %w", ErrMergeFailure, err)
			}
			return run.fail(ctx, domain.StageMerged, err)
		}
		run.report.Merged = true
		run.advance(domain.StageMerged)
	}

	run.advance(domain.StageCompleted)
	metrics.IngestionFinished(string(domain.StageCompleted), "")
	if p.logger != nil {
		p.logger.Infof("[Ingestion] completed %s: %d item(s), merged=%t", obj.Key, len(items), run.report.Merged)
	}
	return run.report, nil
}

type ingestionRun struct {
	pipeline *IngestionPipeline
	report   *IngestionReport
	object   *blob.Object
	last     time.Time
}

func (r *ingestionRun) advance(stage domain.IngestionStage) {
	now := time.Now()
	metrics.ObserveStage(string(stage), now.Sub(r.last))
	r.last = now
	r.report.Stage = stage
}

func (r *ingestionRun) fail(ctx context.Context, stage domain.IngestionStage, err error) (*IngestionReport, error) {
	kind := KindOf(err)
	// Backends do not always wrap the context error they saw.
	if kind != KindTimeout && errors.Is(ctx.Err(), context.Canceled) {
		kind = KindCanceled
	}
	perr := &PipelineError{
		Stage:   stage,
		Kind:    kind,
		RawText: r.report.RawText,
		Err:     err,
	}
	metrics.IngestionFinished(string(domain.StageFailed), string(perr.Kind))

	p := r.pipeline
	if p.logger != nil {
		p.logger.Errorf("[Ingestion] %v", perr)
	}
	if r.object != nil {
		p.discard(r.object)
	}
	return nil, perr
}

// discard removes a blob left behind by a failed run. It runs detached from
// the request context, which may already be cancelled; leftovers are picked
// up by the blob sweeper.
func (p *IngestionPipeline) discard(obj *blob.Object) {
	timeout := p.opts.UploadTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := p.blobs.Delete(ctx, obj.Key); err != nil && p.logger != nil {
		p.logger.Errorf("[Ingestion] discard blob %s: %v", obj.Key, err)
	}
}
