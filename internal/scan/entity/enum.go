package entity

// RunStatus is the lifecycle state of one analysis run.
type RunStatus string

const (
	RunStatusValidating RunStatus = "VALIDATING"
	RunStatusStoring    RunStatus = "STORING"
	RunStatusInvoking   RunStatus = "INVOKING"
	RunStatusParsing    RunStatus = "PARSING"
	RunStatusDone       RunStatus = "DONE"
	RunStatusFailed     RunStatus = "FAILED"
)

// Outcome is the terminal result of one analysis run.
type Outcome string

const (
	OutcomeSucceeded         Outcome = "SUCCEEDED"
	OutcomeRejectedExtension Outcome = "REJECTED_EXTENSION"
	OutcomeNoFileProvided    Outcome = "NO_FILE_PROVIDED"
	OutcomeStorageFailed     Outcome = "STORAGE_FAILED"
	OutcomeInvocationFailed  Outcome = "INVOCATION_FAILED"
	OutcomeParseFailed       Outcome = "PARSE_FAILED"
)
