package ads

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/adharvest/pkg/errors"
)

// CodeUnavailable is reported when no response reached the client
const CodeUnavailable = "UNAVAILABLE"

// APIError is a failed request as described by the API
type APIError struct {
	RequestID  string
	Code       string
	HTTPStatus int
	Message    string
	Errors     []ErrorDetail
	// Cause is set for transport failures
	Cause error
}

// ErrorDetail is one entry of a GoogleAdsFailure
type ErrorDetail struct {
	Code      string
	Message   string
	FieldPath []string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ads request %q failed with status %s", e.RequestID, e.Code)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	for _, d := range e.Errors {
		fmt.Fprintf(&b, "; %s", d.Message)
		if len(d.FieldPath) > 0 {
			fmt.Fprintf(&b, " (on %s)", strings.Join(d.FieldPath, "."))
		}
	}
	return b.String()
}

// ErrorType classifies the failure for errors.IsRetryable. Every API
// failure is transient from the worker's point of view.
func (e *APIError) ErrorType() errors.ErrorType {
	switch e.Code {
	case CodeUnavailable:
		return errors.ErrorTypeConnection
	case "RESOURCE_EXHAUSTED":
		return errors.ErrorTypeRateLimit
	case "DEADLINE_EXCEEDED":
		return errors.ErrorTypeTimeout
	default:
		return errors.ErrorTypeAPI
	}
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// statusBody is the google.rpc.Status JSON shape
type statusBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
	Details []struct {
		Type   string `json:"@type"`
		Errors []struct {
			ErrorCode map[string]string `json:"errorCode"`
			Message   string            `json:"message"`
			Location  struct {
				FieldPathElements []struct {
					FieldName string `json:"fieldName"`
					Index     *int   `json:"index,omitempty"`
				} `json:"fieldPathElements"`
			} `json:"location"`
		} `json:"errors"`
		RequestID string `json:"requestId"`
	} `json:"details"`
}

type errorEnvelope struct {
	Error *statusBody `json:"error"`
}

func (s *statusBody) toAPIError(httpStatus int, requestID string) *APIError {
	apiErr := &APIError{
		RequestID:  requestID,
		Code:       s.Status,
		HTTPStatus: httpStatus,
		Message:    s.Message,
	}
	if apiErr.Code == "" {
		apiErr.Code = statusCode(httpStatus)
	}
	for _, d := range s.Details {
		if d.RequestID != "" && apiErr.RequestID == "" {
			apiErr.RequestID = d.RequestID
		}
		for _, e := range d.Errors {
			detail := ErrorDetail{Code: errorCodeName(e.ErrorCode), Message: e.Message}
			for _, el := range e.Location.FieldPathElements {
				detail.FieldPath = append(detail.FieldPath, el.FieldName)
			}
			apiErr.Errors = append(apiErr.Errors, detail)
		}
	}
	return apiErr
}

// parseErrorBody decodes an error response. The body is either an error
// envelope or, for searchStream, an array holding one.
func parseErrorBody(body []byte, httpStatus int, requestID string) *APIError {
	trimmed := strings.TrimSpace(string(body))

	var env errorEnvelope
	if strings.HasPrefix(trimmed, "[") {
		var list []errorEnvelope
		if err := gojson.Unmarshal([]byte(trimmed), &list); err == nil && len(list) > 0 {
			env = list[0]
		}
	} else {
		_ = gojson.Unmarshal([]byte(trimmed), &env)
	}

	if env.Error == nil {
		msg := trimmed
		if msg == "" {
			msg = http.StatusText(httpStatus)
		}
		return &APIError{
			RequestID:  requestID,
			Code:       statusCode(httpStatus),
			HTTPStatus: httpStatus,
			Message:    msg,
		}
	}
	return env.Error.toAPIError(httpStatus, requestID)
}

// errorCodeName flattens {"queryError": "UNRECOGNIZED_FIELD"}
func errorCodeName(code map[string]string) string {
	if len(code) == 0 {
		return ""
	}
	keys := make([]string, 0, len(code))
	for k := range code {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return code[keys[0]]
}

// statusCode maps an HTTP status to its canonical RPC code name
func statusCode(httpStatus int) string {
	switch httpStatus {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "ABORTED"
	case http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case http.StatusNotImplemented:
		return "UNIMPLEMENTED"
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	case http.StatusGatewayTimeout:
		return "DEADLINE_EXCEEDED"
	case http.StatusInternalServerError:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

func transportError(err error) *APIError {
	return &APIError{
		Code:    CodeUnavailable,
		Message: err.Error(),
		Cause:   err,
	}
}
