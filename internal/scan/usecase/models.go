package usecase

import "github.com/shandysiswandi/scriptscan/internal/scan/entity"

// Upload is one file part taken from the request.
type Upload struct {
	FormName    string
	FileName    string
	ContentType string
	Data        []byte
}

type AnalyzeResult struct {
	RunID    string
	FileName string
	Findings []entity.Finding
}

type AnalysisResult struct {
	RunID     string
	FileName  string
	Status    entity.RunStatus
	Outcome   entity.Outcome
	Findings  int64
	StartedAt int64
	EndedAt   int64
}
