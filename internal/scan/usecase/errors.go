package usecase

import (
	"errors"

	"github.com/shandysiswandi/scriptscan/internal/pkg/pkgerror"
	"github.com/shandysiswandi/scriptscan/internal/scan/entity"
)

// Sentinels carried by the cause of every failed Analyze call.
var (
	ErrRejectedExtension = errors.New("no file part with an allowed extension")
	ErrNoFileProvided    = errors.New("no file part provided")
	ErrStorageFailed     = errors.New("artifact could not be stored")
	ErrInvocationFailed  = errors.New("analyzer invocation failed")
	ErrParseFailed       = errors.New("analyzer output could not be parsed")
	ErrMalformedUpload   = errors.New("malformed multipart upload")
)

// MsgFailed is the only message clients see for a failed analysis. The
// outcome itself stays in logs and the run ledger.
const MsgFailed = "analysis could not be completed"

// outcomeError maps a terminal outcome to the error handed to the HTTP layer.
func outcomeError(outcome entity.Outcome, cause error) error {
	switch outcome {
	case entity.OutcomeSucceeded:
		return nil
	case entity.OutcomeRejectedExtension,
		entity.OutcomeNoFileProvided,
		entity.OutcomeStorageFailed,
		entity.OutcomeInvocationFailed,
		entity.OutcomeParseFailed:
		return pkgerror.WrapBusiness(cause, MsgFailed, pkgerror.CodeNotFound)
	default:
		return pkgerror.NewServer(cause)
	}
}

// isUserError reports whether the outcome was caused by the request rather than the environment.
func isUserError(outcome entity.Outcome) bool {
	return outcome == entity.OutcomeRejectedExtension || outcome == entity.OutcomeNoFileProvided
}

func mapStoreErr(err error) error {
	if errors.Is(err, pkgerror.ErrNotFound) {
		return pkgerror.NewBusiness("analysis not found", pkgerror.CodeNotFound)
	}
	return normalizeErr(err)
}

func normalizeErr(err error) error {
	var perr *pkgerror.Error
	if errors.As(err, &perr) {
		return perr
	}
	return pkgerror.NewServer(err)
}
