package inbound

import (
	"context"

	"github.com/shandysiswandi/scriptscan/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/scriptscan/internal/scan/usecase"
)

// DefaultMaxUploadBytes caps the request body of POST /upload.
const DefaultMaxUploadBytes int64 = 10 << 20

type uc interface {
	Analyze(ctx context.Context, parts usecase.PartReader) (usecase.AnalyzeResult, error)
	Analysis(ctx context.Context, runID string) (usecase.AnalysisResult, error)
}

func RegisterHTTPEndpoint(r *pkgrouter.Router, uc uc, maxUploadBytes int64) {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}

	end := &HTTPEndpoint{uc: uc, maxUploadBytes: maxUploadBytes}

	r.POST("/upload", end.Upload)
	r.GET("/analyses/:id", end.Analysis)
}
