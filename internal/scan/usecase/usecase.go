package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/shandysiswandi/scriptscan/internal/pkg/pkgerror"
	"github.com/shandysiswandi/scriptscan/internal/pkg/pkguid"
	"github.com/shandysiswandi/scriptscan/internal/scan/analyzer"
	"github.com/shandysiswandi/scriptscan/internal/scan/entity"
)

// PartReader yields multipart parts until io.EOF. *multipart.Reader satisfies it.
type PartReader interface {
	NextPart() (*multipart.Part, error)
}

type ArtifactStore interface {
	Put(ctx context.Context, data []byte) (entity.StoredArtifact, error)
	Remove(ctx context.Context, a entity.StoredArtifact) error
}

type Analyzer interface {
	Run(ctx context.Context, artifactPath string) (entity.AnalyzerOutput, error)
}

type Store interface {
	CreateRun(ctx context.Context, meta entity.RunMeta) error
	UpdateRun(ctx context.Context, runID string, fn func(meta *entity.RunMeta)) error
	GetRun(ctx context.Context, runID string) (entity.RunMeta, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event entity.RunFailedEvent) error
}

type Runner interface {
	Run(ctx context.Context, f func(ctx context.Context) error) error
}

type Clock interface {
	Now() time.Time
}

type Dependency struct {
	Artifacts ArtifactStore
	Analyzer  Analyzer
	Store     Store
	Events    EventPublisher
	Runner    Runner
	Clock     Clock
	ID        pkguid.StringID
	RunID     pkguid.NumberID
}

type Usecase struct {
	artifacts ArtifactStore
	analyzer  Analyzer
	store     Store
	events    EventPublisher
	runner    Runner
	clock     Clock
	id        pkguid.StringID
	runID     pkguid.NumberID
}

func New(dep Dependency) *Usecase {
	clock := dep.Clock
	if clock == nil {
		clock = realClock{}
	}

	runner := dep.Runner
	if runner == nil {
		runner = inlineRunner{}
	}

	return &Usecase{
		artifacts: dep.Artifacts,
		analyzer:  dep.Analyzer,
		store:     dep.Store,
		events:    dep.Events,
		runner:    runner,
		clock:     clock,
		id:        dep.ID,
		runID:     dep.RunID,
	}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

type inlineRunner struct{}

func (inlineRunner) Run(ctx context.Context, f func(ctx context.Context) error) error {
	return f(ctx)
}

// run tracks one Analyze call for logging and the run ledger.
type run struct {
	id       string
	fileName string
}

// Analyze runs the pipeline for one request: pick the first file part with an
// allowed extension, store it, run the analyzer on it and parse the output.
//
// The stored artifact is removed before Analyze returns, whatever the outcome.
// On failure the returned error is a *pkgerror.Error with a generic message;
// the cause wraps one of the Err* sentinels of this package.
func (u *Usecase) Analyze(ctx context.Context, parts PartReader) (AnalyzeResult, error) {
	if u.artifacts == nil || u.analyzer == nil {
		return AnalyzeResult{}, pkgerror.NewServer(errors.New("missing dependency"))
	}

	r := run{id: u.newRunID()}
	u.createRun(ctx, entity.RunMeta{
		ID:        r.id,
		Status:    entity.RunStatusValidating,
		StartedAt: u.clock.Now().Unix(),
	})

	upload, err := u.selectUpload(ctx, parts)
	switch {
	case errors.Is(err, ErrMalformedUpload):
		u.finishRun(ctx, r, entity.RunStatusFailed, entity.OutcomeNoFileProvided, 0)
		slog.WarnContext(ctx, "malformed upload", "run_id", r.id, "error", err)
		return AnalyzeResult{RunID: r.id}, pkgerror.NewInvalidFormat()
	case errors.Is(err, ErrNoFileProvided):
		return AnalyzeResult{RunID: r.id}, u.fail(ctx, r, entity.OutcomeNoFileProvided, err)
	case err != nil:
		r.fileName = upload.FileName
		return AnalyzeResult{RunID: r.id}, u.fail(ctx, r, entity.OutcomeRejectedExtension, err)
	}

	r.fileName = upload.FileName
	u.updateStatus(ctx, r, entity.RunStatusStoring)
	slog.InfoContext(ctx, "file part accepted",
		"run_id", r.id,
		"form_name", upload.FormName,
		"file_name", upload.FileName,
		"content_type", upload.ContentType,
		"bytes", len(upload.Data),
	)

	stored, err := u.artifacts.Put(ctx, upload.Data)
	if err != nil {
		return AnalyzeResult{RunID: r.id}, u.fail(ctx, r, entity.OutcomeStorageFailed, fmt.Errorf("%w: %w", ErrStorageFailed, err))
	}
	defer func() {
		if rmErr := u.artifacts.Remove(context.WithoutCancel(ctx), stored); rmErr != nil {
			slog.ErrorContext(ctx, "failed to remove artifact", "run_id", r.id, "path", stored.Path, "error", rmErr)
		}
	}()

	u.updateStatus(ctx, r, entity.RunStatusInvoking)

	var out entity.AnalyzerOutput
	err = u.runner.Run(ctx, func(ctx context.Context) error {
		var runErr error
		out, runErr = u.analyzer.Run(ctx, stored.Path)
		return runErr
	})
	if err != nil {
		return AnalyzeResult{RunID: r.id}, u.fail(ctx, r, entity.OutcomeInvocationFailed, fmt.Errorf("%w: %w", ErrInvocationFailed, err))
	}

	u.updateStatus(ctx, r, entity.RunStatusParsing)

	findings, err := ParseFindings(out.Stdout)
	if err != nil {
		return AnalyzeResult{RunID: r.id}, u.fail(ctx, r, entity.OutcomeParseFailed, fmt.Errorf("%w: %w", ErrParseFailed, err))
	}

	u.finishRun(ctx, r, entity.RunStatusDone, entity.OutcomeSucceeded, int64(len(findings)))
	slog.InfoContext(ctx, "analysis succeeded",
		"run_id", r.id,
		"file_name", r.fileName,
		"findings", len(findings),
		"analyzer_ms", out.Duration.Milliseconds(),
	)

	return AnalyzeResult{
		RunID:    r.id,
		FileName: upload.FileName,
		Findings: findings,
	}, nil
}

// Analysis returns the ledger entry of a previous run.
func (u *Usecase) Analysis(ctx context.Context, runID string) (AnalysisResult, error) {
	if runID == "" {
		return AnalysisResult{}, pkgerror.NewInvalidInput(errors.New("analysis id is required"))
	}
	if u.store == nil {
		return AnalysisResult{}, pkgerror.NewServer(errors.New("missing dependency"))
	}

	meta, err := u.store.GetRun(ctx, runID)
	if err != nil {
		return AnalysisResult{}, mapStoreErr(err)
	}

	return AnalysisResult{
		RunID:     meta.ID,
		FileName:  meta.FileName,
		Status:    meta.Status,
		Outcome:   meta.Outcome,
		Findings:  meta.Findings,
		StartedAt: meta.StartedAt,
		EndedAt:   meta.EndedAt,
	}, nil
}

// selectUpload scans parts in order and returns the first file part with an
// allowed extension. Parts without a file name are skipped. When every file
// part is rejected the returned Upload carries the last rejected name.
func (u *Usecase) selectUpload(ctx context.Context, parts PartReader) (Upload, error) {
	rejected := 0
	lastRejected := ""

	for {
		part, err := parts.NextPart()
		if errors.Is(err, io.EOF) {
			if rejected == 0 {
				return Upload{}, ErrNoFileProvided
			}
			return Upload{FileName: lastRejected}, fmt.Errorf("%w: %d file part(s) rejected", ErrRejectedExtension, rejected)
		}
		if err != nil {
			return Upload{}, fmt.Errorf("%w: %w", ErrMalformedUpload, err)
		}

		fileName := part.FileName()
		if fileName == "" {
			_ = part.Close()
			continue
		}

		if !IsValidExtension(fileName) {
			rejected++
			lastRejected = fileName
			slog.InfoContext(ctx, "file part rejected", "form_name", part.FormName(), "file_name", fileName)
			_ = part.Close()
			continue
		}

		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return Upload{}, fmt.Errorf("%w: %w", ErrMalformedUpload, err)
		}

		return Upload{
			FormName:    part.FormName(),
			FileName:    fileName,
			ContentType: part.Header.Get("Content-Type"),
			Data:        data,
		}, nil
	}
}

// fail logs the failure with its operator-only details, records it and
// returns the client-facing error.
func (u *Usecase) fail(ctx context.Context, r run, outcome entity.Outcome, cause error) error {
	attrs := []any{"run_id", r.id, "outcome", outcome, "file_name", r.fileName, "error", cause}

	event := entity.RunFailedEvent{
		RunID:    r.id,
		Outcome:  outcome,
		FileName: r.fileName,
		Cause:    cause.Error(),
		ExitCode: -1,
	}

	var ierr *analyzer.InvocationError
	if errors.As(cause, &ierr) {
		attrs = append(attrs, "reason", ierr.Reason, "exit_code", ierr.ExitCode, "stderr", ierr.Stderr)
		event.ExitCode = ierr.ExitCode
		event.Stderr = ierr.Stderr
	}

	var perr *ParseError
	if errors.As(cause, &perr) {
		attrs = append(attrs, "line_no", perr.Line, "line", perr.Text)
	}

	u.finishRun(ctx, r, entity.RunStatusFailed, outcome, 0)

	if isUserError(outcome) {
		slog.WarnContext(ctx, "analysis rejected", attrs...)
		return outcomeError(outcome, cause)
	}

	slog.ErrorContext(ctx, "analysis failed", attrs...)

	if u.events != nil {
		if u.id != nil {
			event.EventID = u.id.Generate()
		}
		if pubErr := u.events.Publish(ctx, event); pubErr != nil {
			slog.WarnContext(ctx, "failed to publish event", "run_id", r.id, "event_id", event.EventID, "error", pubErr)
		}
	}

	return outcomeError(outcome, cause)
}

func (u *Usecase) newRunID() string {
	if u.runID != nil {
		return strconv.FormatInt(u.runID.Generate(), 10)
	}
	if u.id != nil {
		return u.id.Generate()
	}
	return strconv.FormatInt(u.clock.Now().UnixNano(), 10)
}

// The run ledger is informational: its errors are logged, never returned.

func (u *Usecase) createRun(ctx context.Context, meta entity.RunMeta) {
	if u.store == nil {
		return
	}
	if err := u.store.CreateRun(ctx, meta); err != nil {
		slog.WarnContext(ctx, "failed to record run", "run_id", meta.ID, "error", err)
	}
}

func (u *Usecase) updateStatus(ctx context.Context, r run, status entity.RunStatus) {
	if u.store == nil {
		return
	}
	if err := u.store.UpdateRun(ctx, r.id, func(meta *entity.RunMeta) {
		meta.Status = status
		meta.FileName = r.fileName
	}); err != nil {
		slog.WarnContext(ctx, "failed to update run", "run_id", r.id, "error", err)
	}
}

func (u *Usecase) finishRun(ctx context.Context, r run, status entity.RunStatus, outcome entity.Outcome, findings int64) {
	if u.store == nil {
		return
	}
	endedAt := u.clock.Now().Unix()
	if err := u.store.UpdateRun(ctx, r.id, func(meta *entity.RunMeta) {
		meta.Status = status
		meta.Outcome = outcome
		meta.FileName = r.fileName
		meta.Findings = findings
		meta.EndedAt = endedAt
	}); err != nil {
		slog.WarnContext(ctx, "failed to update run", "run_id", r.id, "error", err)
	}
}
