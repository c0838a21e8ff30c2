// Package pipeline provides the high-level orchestration for one analysis
// job: stage the payload, wait for readiness, evaluate with model fallback,
// record the outcome, and always release the staged file.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/media-screener/internal/ledger"
	"github.com/jonathan/media-screener/internal/llm"
	"github.com/jonathan/media-screener/internal/publish"
	"github.com/jonathan/media-screener/internal/rubric"
	"github.com/jonathan/media-screener/internal/staging"
)

// releaseTimeout bounds the best-effort staged-file delete so a hung provider
// cannot block job completion.
const releaseTimeout = 30 * time.Second

// Stager is the staging contract the pipeline drives. *staging.Client
// satisfies it.
type Stager interface {
	Stage(ctx context.Context, payload []byte, mimeType, displayName string) (*staging.Descriptor, error)
	AwaitActive(ctx context.Context, desc *staging.Descriptor, timeout, interval time.Duration) (*staging.Descriptor, error)
	Release(ctx context.Context, desc *staging.Descriptor)
}

// Options carries the explicit configuration for pipeline construction.
// Nothing here is read from ambient process state during a run.
type Options struct {
	Candidates             []string
	ScoreThreshold         float64
	Rubric                 rubric.Rubric
	StagingTransferTimeout time.Duration
	ReadinessTimeout       time.Duration
	PollInterval           time.Duration
	EvaluationTimeout      time.Duration
}

// Input is one ingested analysis request.
type Input struct {
	JobID    string
	Payload  []byte
	FileName string
	MIMEType string
}

// Outcome is the result of a completed analysis.
type Outcome struct {
	Report    *rubric.Report
	Qualifies bool
	Threshold float64
}

// Pipeline runs analysis jobs. Each call to Run drives exactly one job,
// sequentially; concurrent jobs come from concurrent callers and share
// nothing but the ledger store.
type Pipeline struct {
	stager Stager
	client llm.Client
	store  ledger.Store
	opts   Options
}

// New creates a pipeline over the given collaborators.
func New(stager Stager, client llm.Client, store ledger.Store, opts Options) *Pipeline {
	return &Pipeline{stager: stager, client: client, store: store, opts: opts}
}

// Run executes the full analysis pipeline for one job. The ledger record is
// created eagerly so readers polling by job id can observe in-flight state;
// it then transitions exactly once to done or error. The staged file is
// released on every exit path.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Outcome, error) {
	meta := ledger.JobMetadata{FileName: in.FileName, FileSize: int64(len(in.Payload)), MIMEType: in.MIMEType}
	if err := p.store.CreateJob(ctx, in.JobID, meta); err != nil {
		return nil, fmt.Errorf("failed to create ledger record: %w", err)
	}

	report, err := p.analyze(ctx, in)
	if err != nil {
		if markErr := p.store.MarkError(ctx, in.JobID, err.Error()); markErr != nil {
			log.Printf("Failed to record error for job %s: %v", in.JobID, markErr)
		}
		return nil, err
	}

	qualifies := publish.Qualifies(report.Score, p.opts.ScoreThreshold)
	if err := p.store.MarkDone(ctx, in.JobID, report, qualifies, p.opts.ScoreThreshold); err != nil {
		return nil, fmt.Errorf("failed to record result: %w", err)
	}

	return &Outcome{Report: report, Qualifies: qualifies, Threshold: p.opts.ScoreThreshold}, nil
}

// analyze stages the payload, waits for it to become active, and runs the
// rubric evaluation across the candidate models. The staged file is owned by
// this call and released before it returns.
func (p *Pipeline) analyze(ctx context.Context, in Input) (*rubric.Report, error) {
	stageCtx, cancel := context.WithTimeout(ctx, p.opts.StagingTransferTimeout)
	defer cancel()

	displayName := fmt.Sprintf("%s-%s", in.JobID, uuid.New().String())
	desc, err := p.stager.Stage(stageCtx, in.Payload, in.MIMEType, displayName)
	if err != nil {
		return nil, err
	}

	defer func() {
		// Release must run even when the surrounding context is already
		// cancelled or past its deadline.
		relCtx, relCancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer relCancel()
		p.stager.Release(relCtx, desc)
	}()

	active, err := p.stager.AwaitActive(ctx, desc, p.opts.ReadinessTimeout, p.opts.PollInterval)
	if err != nil {
		return nil, err
	}

	evalCtx, evalCancel := context.WithTimeout(ctx, p.opts.EvaluationTimeout)
	defer evalCancel()

	prompt := rubric.BuildPrompt(p.opts.Rubric)
	file := llm.FileRef{URI: active.RemoteURI, MIMEType: active.MIMEType}
	raw, err := llm.Invoke(evalCtx, p.opts.Candidates, func(ctx context.Context, model string) (string, error) {
		return p.client.GenerateFileJSON(ctx, model, file, prompt)
	})
	if err != nil {
		return nil, err
	}

	return rubric.Decode(raw)
}
