package schema

import "fmt"

// Code identifies a stable, machine-readable failure class. Codes are part of
// the daemon's contract: callers branch on them, log sinks index them, and
// they never change meaning between releases.
type Code string

const (
	// Session extractor.
	CodeExtractorInvalidContext Code = "SESSION_EXTRACTOR_INVALID_CONTEXT"
	CodeExtractorPersistFailed  Code = "SESSION_EXTRACTOR_PERSIST_FAILED"

	// Compaction preservation hook and manager.
	CodePreservationExtractFailed Code = "COMPACTION_PRESERVATION_EXTRACT_FAILED"
	CodePreservationPersistFailed Code = "COMPACTION_PRESERVATION_PERSIST_FAILED"
	CodeCompactionInvalidContext  Code = "COMPACTION_MANAGER_INVALID_CONTEXT"
	CodeCompactionHookFailed      Code = "COMPACTION_MANAGER_HOOK_FAILED"

	// Consolidation pipeline.
	CodeSelectionFailed       Code = "CONSOLIDATION_SELECTION_FAILED"
	CodeProviderFailed        Code = "DISTILLATION_PROVIDER_FAILED"
	CodeMergeFailed           Code = "MEMORY_CONSOLIDATION_MERGE_FAILED"
	CodeRunSelectFailed       Code = "CONSOLIDATION_RUN_SELECT_FAILED"
	CodeRunDistillFailed      Code = "CONSOLIDATION_RUN_DISTILL_FAILED"
	CodeRunLtmFetchFailed     Code = "CONSOLIDATION_RUN_LTM_FETCH_FAILED"
	CodeRunMergeFailed        Code = "CONSOLIDATION_RUN_MERGE_FAILED"
	CodeRunWriteFailed        Code = "CONSOLIDATION_RUN_WRITE_FAILED"
	CodeRunRetryExhausted     Code = "CONSOLIDATION_RUN_RETRY_EXHAUSTED"

	// Background jobs.
	CodeBriefingJobDisabled             Code = "BRIEFING_JOB_DISABLED"
	CodeBriefingJobInvalidInterval      Code = "BRIEFING_JOB_INVALID_INTERVAL"
	CodeBriefingJobAlreadyRunning       Code = "BRIEFING_JOB_ALREADY_RUNNING"
	CodeBriefingJobRunFailed            Code = "BRIEFING_JOB_RUN_FAILED"
	CodeBriefingJobUnexpected           Code = "BRIEFING_JOB_UNEXPECTED_ERROR"
	CodeConsolidationJobDisabled        Code = "CONSOLIDATION_JOB_DISABLED"
	CodeConsolidationJobInvalidInterval Code = "CONSOLIDATION_JOB_INVALID_INTERVAL"
	CodeConsolidationJobAlreadyRunning  Code = "CONSOLIDATION_JOB_ALREADY_RUNNING"

	// Daemon wiring.
	CodeMemoryNotReady         Code = "DAEMON_MEMORY_NOT_READY"
	CodeCronRegistrationFailed Code = "DAEMON_CRON_REGISTRATION_FAILED"

	// Briefing service.
	CodeBriefingRetrievalFailed Code = "MORNING_BRIEFING_RETRIEVAL_FAILED"
)

// Error is a failure with a stable code. The underlying cause, when present,
// is preserved for logging and errors.Is/As chains.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two coded errors by code alone, so callers can write
// errors.Is(err, &schema.Error{Code: schema.CodeMemoryNotReady}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError builds a coded error without a cause.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError builds a coded error around a cause.
func WrapError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the code from err, walking the unwrap chain.
// Returns "" when err carries no code.
func CodeOf(err error) Code {
	for err != nil {
		if ce, ok := err.(*Error); ok {
			return ce.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
