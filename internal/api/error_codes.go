// internal/api/error_codes.go
package api

// API error codes. Codes carried by an AppError pass through unchanged; these cover
// failures detected in the HTTP layer itself.
const (
	// General
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"

	// Sessions
	ErrorSessionNotFound = "SESSION_NOT_FOUND"
	ErrorInvalidScope    = "INVALID_SCOPE"
	ErrorInvalidArtifact = "INVALID_ARTIFACT_TYPE"

	// Generation
	ErrorGenerationFailed = "GENERATION_FAILED"

	// LLM
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"

	// Export
	ErrorExportFailed        = "EXPORT_FAILED"
	ErrorExportFormatInvalid = "EXPORT_FORMAT_INVALID"
	ErrorCopyFailed          = "COPY_FAILED"
)
