package inbound

import (
	"net/http"

	"github.com/shandysiswandi/scriptscan/internal/scan/entity"
)

type AnalyzeResponse struct {
	AnalysisID string           `json:"analysis_id"`
	FileName   string           `json:"file_name"`
	Findings   []entity.Finding `json:"findings"`
}

func (AnalyzeResponse) StatusCode() int {
	return http.StatusOK
}

func (AnalyzeResponse) Message() string {
	return "analysis completed"
}

func (r AnalyzeResponse) Meta() map[string]any {
	return map[string]any{
		"total": len(r.Findings),
	}
}

type AnalysisResponse struct {
	AnalysisID string           `json:"analysis_id"`
	FileName   string           `json:"file_name"`
	Status     entity.RunStatus `json:"status"`
	Outcome    entity.Outcome   `json:"outcome,omitempty"`
	Findings   int64            `json:"findings"`
	StartedAt  int64            `json:"started_at"`
	EndedAt    int64            `json:"ended_at,omitempty"`
}
