package entity

type RunMeta struct {
	ID        string
	FileName  string
	Status    RunStatus
	Outcome   Outcome
	StartedAt int64
	EndedAt   int64

	// Count only, findings themselves are not kept
	Findings int64
}

type RunFailedEvent struct {
	EventID  string
	RunID    string
	Outcome  Outcome
	FileName string
	Cause    string
	ExitCode int
	Stderr   string
}
