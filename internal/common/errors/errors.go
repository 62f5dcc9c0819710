// Package errors provides standardized error handling for the matching core,
// the exchange API client and BPMN workflow integration.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorKind groups error codes into the categories callers branch on.
type ErrorKind string

const (
	KindValidation    ErrorKind = "VALIDATION"
	KindConfiguration ErrorKind = "CONFIGURATION"
	KindTransport     ErrorKind = "TRANSPORT"
	KindService       ErrorKind = "SERVICE"
	KindStorage       ErrorKind = "STORAGE"
	KindInternal      ErrorKind = "INTERNAL"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidProfile  ErrorCode = "INVALID_MATERIAL_PROFILE"
	ErrCodeAmbiguousUnit   ErrorCode = "AMBIGUOUS_PROFILE_UNIT"
	ErrCodeInvalidListing  ErrorCode = "INVALID_LISTING"
	ErrCodeInvalidRequest  ErrorCode = "INVALID_REQUEST"
	ErrCodeInvalidFilter   ErrorCode = "INVALID_FILTER_FORMAT"
	ErrCodeInvalidJobInput ErrorCode = "INVALID_JOB_INPUT"

	ErrCodeInvalidWeights      ErrorCode = "INVALID_MATCHING_WEIGHTS"
	ErrCodeInvalidClientConfig ErrorCode = "INVALID_CLIENT_CONFIG"

	ErrCodeServiceUnreachable ErrorCode = "SERVICE_UNREACHABLE"
	ErrCodeServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"

	ErrCodeServiceRejected   ErrorCode = "SERVICE_REJECTED"
	ErrCodeServiceFailed     ErrorCode = "SERVICE_FAILED"
	ErrCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"

	ErrCodeListingNotFound      ErrorCode = "LISTING_NOT_FOUND"
	ErrCodeQueryExecutionFailed ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeSearchQueryFailed    ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeEventPublishFailed   ErrorCode = "EVENT_PUBLISH_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Kind       ErrorKind              `json:"kind"`
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	StatusCode int                    `json:"statusCode,omitempty"`
	Retryable  bool                   `json:"retryable"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Cause      error                  `json:"-"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Cause
}

// Is matches on kind and code. Empty fields on the target act as wildcards,
// so the package sentinels match every error of their kind.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Kind != "" || t.Code != ""
}

// Sentinels for errors.Is.
var (
	ErrValidation    = &StandardError{Kind: KindValidation}
	ErrConfiguration = &StandardError{Kind: KindConfiguration}
	ErrTransport     = &StandardError{Kind: KindTransport}
	ErrService       = &StandardError{Kind: KindService}
	ErrStorage       = &StandardError{Kind: KindStorage}
	ErrNotFound      = &StandardError{Code: ErrCodeListingNotFound}
	ErrRateLimited   = &StandardError{Code: ErrCodeRateLimited}
)

// As extracts the first StandardError in err's chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	if stdErr, ok := As(err); ok {
		return stdErr.Kind
	}
	return KindInternal
}

// StatusCode returns the HTTP status carried by a service error, or 0.
func StatusCode(err error) int {
	if stdErr, ok := As(err); ok {
		return stdErr.StatusCode
	}
	return 0
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewInvalidProfileError creates a non-retryable material profile error.
func NewInvalidProfileError(details string) *StandardError {
	return &StandardError{
		Kind:      KindValidation,
		Code:      ErrCodeInvalidProfile,
		Message:   "Invalid material profile",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAmbiguousUnitError is returned when a profile carries no unit tag and
// inference is disabled.
func NewAmbiguousUnitError(details string) *StandardError {
	return &StandardError{
		Kind:      KindValidation,
		Code:      ErrCodeAmbiguousUnit,
		Message:   "Material profile unit is not declared",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidListingError creates a non-retryable listing validation error.
func NewInvalidListingError(listingID, details string) *StandardError {
	return &StandardError{
		Kind:      KindValidation,
		Code:      ErrCodeInvalidListing,
		Message:   "Invalid listing",
		Details:   fmt.Sprintf("listingId: %s, %s", listingID, details),
		Retryable: false,
		Metadata:  map[string]interface{}{"listingId": listingID},
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError creates a non-retryable malformed request error.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Kind:      KindValidation,
		Code:      ErrCodeInvalidRequest,
		Message:   "Malformed request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidFilterFormatError creates a non-retryable filter format error.
func NewInvalidFilterFormatError(details string) *StandardError {
	return &StandardError{
		Kind:      KindValidation,
		Code:      ErrCodeInvalidFilter,
		Message:   "Invalid filter format",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidJobInputError wraps schema validation failures of job variables.
func NewInvalidJobInputError(taskType string, problems []string) *StandardError {
	return &StandardError{
		Kind:      KindValidation,
		Code:      ErrCodeInvalidJobInput,
		Message:   "Job input failed schema validation",
		Details:   fmt.Sprintf("taskType: %s, errors: %s", taskType, strings.Join(problems, "; ")),
		Retryable: false,
		Metadata:  map[string]interface{}{"violations": problems},
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidWeightsError creates a configuration error for scoring weights.
func NewInvalidWeightsError(details string) *StandardError {
	return &StandardError{
		Kind:      KindConfiguration,
		Code:      ErrCodeInvalidWeights,
		Message:   "Invalid matching weight configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidClientConfigError creates a configuration error for API clients.
func NewInvalidClientConfigError(details string) *StandardError {
	return &StandardError{
		Kind:      KindConfiguration,
		Code:      ErrCodeInvalidClientConfig,
		Message:   "Invalid client configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportError classifies a failed round trip as a timeout or an
// unreachable service. Both are retryable.
func NewTransportError(endpoint string, err error) *StandardError {
	code := ErrCodeServiceUnreachable
	message := fmt.Sprintf("Service unreachable at %s", endpoint)
	if isTimeout(err) {
		code = ErrCodeServiceTimeout
		message = fmt.Sprintf("Service timeout at %s", endpoint)
	}
	return &StandardError{
		Kind:      KindTransport,
		Code:      code,
		Message:   message,
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"endpoint": endpoint},
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewRateLimitedError is returned when a local limiter refuses a call before
// it reaches the network.
func NewRateLimitedError(key string) *StandardError {
	return &StandardError{
		Kind:      KindTransport,
		Code:      ErrCodeRateLimited,
		Message:   "Rate limit exceeded",
		Details:   fmt.Sprintf("key: %s", key),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewServiceError records a non-2xx response. Server errors are retryable,
// client errors are not.
func NewServiceError(endpoint string, status int, body string) *StandardError {
	code := ErrCodeServiceRejected
	if status >= 500 {
		code = ErrCodeServiceFailed
	}
	return &StandardError{
		Kind:       KindService,
		Code:       code,
		Message:    fmt.Sprintf("Service returned status %d for %s", status, endpoint),
		Details:    body,
		StatusCode: status,
		Retryable:  status >= 500,
		Metadata:   map[string]interface{}{"endpoint": endpoint},
		Timestamp:  time.Now().UTC(),
	}
}

// NewMalformedResponseError records a 2xx response whose body could not be decoded.
func NewMalformedResponseError(endpoint string, err error) *StandardError {
	return &StandardError{
		Kind:      KindService,
		Code:      ErrCodeMalformedResponse,
		Message:   fmt.Sprintf("Malformed response from %s", endpoint),
		Details:   err.Error(),
		Retryable: false,
		Metadata:  map[string]interface{}{"endpoint": endpoint},
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewListingNotFoundError creates a non-retryable lookup error.
func NewListingNotFoundError(listingID string) *StandardError {
	return &StandardError{
		Kind:      KindStorage,
		Code:      ErrCodeListingNotFound,
		Message:   "Listing not found",
		Details:   fmt.Sprintf("listingId: %s", listingID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Kind:      KindStorage,
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(index string, err error) *StandardError {
	return &StandardError{
		Kind:      KindStorage,
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Elasticsearch query error",
		Details:   fmt.Sprintf("index: %s, error: %s", index, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewEventPublishFailedError creates a retryable messaging error.
func NewEventPublishFailedError(subject string, err error) *StandardError {
	return &StandardError{
		Kind:      KindTransport,
		Code:      ErrCodeEventPublishFailed,
		Message:   "Event publish failed",
		Details:   fmt.Sprintf("subject: %s, error: %s", subject, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Kind:      KindInternal,
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes where they differ.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeAmbiguousUnit:     string(ErrCodeInvalidProfile),
	ErrCodeServiceTimeout:    string(ErrCodeServiceUnreachable),
	ErrCodeMalformedResponse: string(ErrCodeServiceFailed),
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeServiceUnreachable,
		ErrCodeQueryExecutionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeEventPublishFailed:
		return 3

	case ErrCodeServiceTimeout,
		ErrCodeServiceFailed:
		return 2

	case ErrCodeRateLimited:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"errorKind":         string(stdErr.Kind),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if stdErr.StatusCode != 0 {
		vars["statusCode"] = stdErr.StatusCode
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns a coarse label for dashboards and logs.
func GetErrorCategory(stdErr *StandardError) string {
	switch stdErr.Kind {
	case KindValidation:
		return "VALIDATION"
	case KindConfiguration:
		return "CONFIGURATION"
	case KindTransport:
		return "NETWORK"
	case KindService:
		return "EXCHANGE_API"
	case KindStorage:
		return "STORAGE"
	default:
		return "OTHER"
	}
}
