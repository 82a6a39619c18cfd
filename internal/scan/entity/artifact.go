package entity

import "time"

// StoredArtifact is an uploaded file written to disk for the analyzer to read.
type StoredArtifact struct {
	Name string
	Path string
	Size int64
}

// AnalyzerOutput is what one analyzer process produced.
type AnalyzerOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}
