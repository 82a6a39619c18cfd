package inbound

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/shandysiswandi/scriptscan/internal/pkg/pkgerror"
	"github.com/shandysiswandi/scriptscan/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/scriptscan/internal/scan/entity"
)

type HTTPEndpoint struct {
	uc             uc
	maxUploadBytes int64
}

// Upload streams the multipart body into the pipeline. Only Content-Type
// multipart/form-data is accepted.
func (h *HTTPEndpoint) Upload(ctx context.Context, r *http.Request) (any, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, h.maxUploadBytes)

	reader, err := r.MultipartReader()
	if err != nil {
		return nil, pkgerror.NewInvalidFormat()
	}

	result, err := h.uc.Analyze(ctx, reader)
	if err != nil {
		return nil, err
	}

	findings := result.Findings
	if findings == nil {
		findings = []entity.Finding{}
	}

	return AnalyzeResponse{
		AnalysisID: result.RunID,
		FileName:   result.FileName,
		Findings:   findings,
	}, nil
}

func (h *HTTPEndpoint) Analysis(ctx context.Context, r *http.Request) (any, error) {
	runID := strings.TrimSpace(pkgrouter.GetParam(ctx, "id"))
	if runID == "" {
		return nil, pkgerror.NewInvalidInput(errors.New("id is required"))
	}

	result, err := h.uc.Analysis(ctx, runID)
	if err != nil {
		return nil, err
	}

	return AnalysisResponse{
		AnalysisID: result.RunID,
		FileName:   result.FileName,
		Status:     result.Status,
		Outcome:    result.Outcome,
		Findings:   result.Findings,
		StartedAt:  result.StartedAt,
		EndedAt:    result.EndedAt,
	}, nil
}
