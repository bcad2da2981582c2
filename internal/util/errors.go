package util

import "errors"

var (
	ErrUnknownTool       = errors.New("recommended tool is not registered")
	ErrUnmetDependency   = errors.New("tool dependency unavailable")
	ErrTypeMismatch      = errors.New("document id does not resolve to an integer key")
	ErrLLMParse          = errors.New("llm response did not match the expected schema")
	ErrDuplicateRun      = errors.New("run already in progress")
	ErrNoExtractableText = errors.New("no extractable text found in PDF")
)

// Error type tags stored on error-status tool invocations and carried as
// Temporal application error types so the API layer can route them.
const (
	ErrTypeUnknownTool     = "UnknownToolError"
	ErrTypeUnmetDependency = "UnmetDependencyError"
	ErrTypeLLMParse        = "LLMParseError"
	ErrTypeLLMTransient    = "LLMTransientError"
	ErrTypeTypeMismatch    = "TypeMismatchError"
	ErrTypeDuplicateRun    = "DuplicateRunError"
)

// InvocationErrorType maps a tool execution failure onto the taxonomy tag
// recorded on the invocation row. Unrecognized failures stay untagged so
// the raw detail is the only signal.
func InvocationErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownTool):
		return ErrTypeUnknownTool
	case errors.Is(err, ErrUnmetDependency):
		return ErrTypeUnmetDependency
	case errors.Is(err, ErrTypeMismatch):
		return ErrTypeTypeMismatch
	default:
		return ""
	}
}
