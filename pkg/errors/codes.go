package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes follow the pattern <MODULE>_<NNN> so that logs and metrics can be
// grouped by the module prefix.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes shared by every layer.
const (
	ErrCodeUnknown            ErrorCode = "COMMON_000"
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_015"
)

// Short aliases used at call sites throughout the codebase.
const (
	CodeUnknown        = ErrCodeUnknown
	CodeOK             = ErrorCode("OK")
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeUnauthorized   = ErrCodeUnauthorized
	CodeForbidden      = ErrCodeForbidden
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeRateLimit      = ErrCodeTooManyRequests
	CodeNotImplemented = ErrCodeNotImplemented

	CodeGameNotFound       = ErrCodeGameNotFound
	CodeAssessmentNotFound = ErrCodeAssessmentNotFound
)

// Game ingestion error codes.
const (
	ErrCodeGameNotFound      ErrorCode = "GAME_001"
	ErrCodePGNParseFailed    ErrorCode = "GAME_002"
	ErrCodePGNEmpty          ErrorCode = "GAME_003"
	ErrCodePGNTooLarge       ErrorCode = "GAME_004"
	ErrCodeMoveIllegal       ErrorCode = "GAME_005"
	ErrCodeClockParseFailed  ErrorCode = "GAME_006"
	ErrCodeGameAlreadyExists ErrorCode = "GAME_007"
)

// Engine oracle error codes.
const (
	ErrCodeEngineUnavailable   ErrorCode = "ENGINE_001"
	ErrCodeEngineStartFailed   ErrorCode = "ENGINE_002"
	ErrCodeEngineProtocol      ErrorCode = "ENGINE_003"
	ErrCodeEngineEvalFailed    ErrorCode = "ENGINE_004"
	ErrCodeEnginePoolExhausted ErrorCode = "ENGINE_005"
	ErrCodeEngineDepthInvalid  ErrorCode = "ENGINE_006"
)

// Opening-theory oracle error codes.
const (
	ErrCodeTheoryUnavailable ErrorCode = "THEORY_001"
	ErrCodeTheoryRateLimited ErrorCode = "THEORY_002"
	ErrCodeTheoryBadResponse ErrorCode = "THEORY_003"
)

// Assessment pipeline error codes.
const (
	ErrCodeAssessmentNotFound ErrorCode = "ASSESS_001"
	ErrCodeAnalysisFailed     ErrorCode = "ASSESS_002"
	ErrCodeAnalysisAborted    ErrorCode = "ASSESS_003"
	ErrCodeJobPublishFailed   ErrorCode = "ASSESS_004"
	ErrCodeJobPayloadInvalid  ErrorCode = "ASSESS_005"
)

// Storage error codes.
const (
	ErrCodeObjectStoreFailed   ErrorCode = "STORE_001"
	ErrCodeObjectNotFound      ErrorCode = "STORE_002"
	ErrCodeBucketInitFailed    ErrorCode = "STORE_003"
	ErrCodeMigrationFailed     ErrorCode = "STORE_004"
	ErrCodeRepositoryConflict  ErrorCode = "STORE_005"
	ErrCodeConnectionPoolError ErrorCode = "STORE_006"
)

// Messaging error codes.
const (
	ErrCodeMessagingError   ErrorCode = "MSG_001"
	ErrCodeProducerClosed   ErrorCode = "MSG_002"
	ErrCodeConsumerConflict ErrorCode = "MSG_003"
	ErrCodeMessageTooLarge  ErrorCode = "MSG_004"
)

// ErrorCodeHTTPStatus maps each code to the HTTP status the API layer returns.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeUnknown:            http.StatusInternalServerError,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeGameNotFound:      http.StatusNotFound,
	ErrCodePGNParseFailed:    http.StatusBadRequest,
	ErrCodePGNEmpty:          http.StatusBadRequest,
	ErrCodePGNTooLarge:       http.StatusRequestEntityTooLarge,
	ErrCodeMoveIllegal:       http.StatusBadRequest,
	ErrCodeClockParseFailed:  http.StatusBadRequest,
	ErrCodeGameAlreadyExists: http.StatusConflict,

	ErrCodeEngineUnavailable:   http.StatusServiceUnavailable,
	ErrCodeEngineStartFailed:   http.StatusServiceUnavailable,
	ErrCodeEngineProtocol:      http.StatusBadGateway,
	ErrCodeEngineEvalFailed:    http.StatusBadGateway,
	ErrCodeEnginePoolExhausted: http.StatusServiceUnavailable,
	ErrCodeEngineDepthInvalid:  http.StatusBadRequest,

	ErrCodeTheoryUnavailable: http.StatusBadGateway,
	ErrCodeTheoryRateLimited: http.StatusTooManyRequests,
	ErrCodeTheoryBadResponse: http.StatusBadGateway,

	ErrCodeAssessmentNotFound: http.StatusNotFound,
	ErrCodeAnalysisFailed:     http.StatusInternalServerError,
	ErrCodeAnalysisAborted:    http.StatusInternalServerError,
	ErrCodeJobPublishFailed:   http.StatusServiceUnavailable,
	ErrCodeJobPayloadInvalid:  http.StatusBadRequest,

	ErrCodeObjectStoreFailed:   http.StatusInternalServerError,
	ErrCodeObjectNotFound:      http.StatusNotFound,
	ErrCodeBucketInitFailed:    http.StatusInternalServerError,
	ErrCodeMigrationFailed:     http.StatusInternalServerError,
	ErrCodeRepositoryConflict:  http.StatusConflict,
	ErrCodeConnectionPoolError: http.StatusInternalServerError,

	ErrCodeMessagingError:   http.StatusServiceUnavailable,
	ErrCodeProducerClosed:   http.StatusServiceUnavailable,
	ErrCodeConsumerConflict: http.StatusConflict,
	ErrCodeMessageTooLarge:  http.StatusRequestEntityTooLarge,
}

// ErrorCodeMessage maps each code to its default human-readable message.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeUnknown:            "unknown error",
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "operation timed out",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization error",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeGameNotFound:      "game not found",
	ErrCodePGNParseFailed:    "failed to parse PGN",
	ErrCodePGNEmpty:          "PGN contains no moves",
	ErrCodePGNTooLarge:       "PGN exceeds the size limit",
	ErrCodeMoveIllegal:       "illegal move",
	ErrCodeClockParseFailed:  "failed to parse clock annotation",
	ErrCodeGameAlreadyExists: "game already exists",

	ErrCodeEngineUnavailable:   "engine unavailable",
	ErrCodeEngineStartFailed:   "failed to start engine process",
	ErrCodeEngineProtocol:      "engine protocol violation",
	ErrCodeEngineEvalFailed:    "engine evaluation failed",
	ErrCodeEnginePoolExhausted: "engine pool exhausted",
	ErrCodeEngineDepthInvalid:  "invalid analysis depth",

	ErrCodeTheoryUnavailable: "opening-theory service unavailable",
	ErrCodeTheoryRateLimited: "opening-theory service rate limited",
	ErrCodeTheoryBadResponse: "opening-theory service returned a malformed response",

	ErrCodeAssessmentNotFound: "assessment not found",
	ErrCodeAnalysisFailed:     "game analysis failed",
	ErrCodeAnalysisAborted:    "game analysis aborted",
	ErrCodeJobPublishFailed:   "failed to publish analysis job",
	ErrCodeJobPayloadInvalid:  "invalid analysis job payload",

	ErrCodeObjectStoreFailed:   "object store operation failed",
	ErrCodeObjectNotFound:      "object not found",
	ErrCodeBucketInitFailed:    "failed to initialize bucket",
	ErrCodeMigrationFailed:     "database migration failed",
	ErrCodeRepositoryConflict:  "repository conflict",
	ErrCodeConnectionPoolError: "connection pool error",

	ErrCodeMessagingError:   "messaging error",
	ErrCodeProducerClosed:   "producer is closed",
	ErrCodeConsumerConflict: "consumer is already running",
	ErrCodeMessageTooLarge:  "message exceeds size limit",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
