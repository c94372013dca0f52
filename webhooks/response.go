package webhooks

import (
	"errors"
	"net/http"
	"strings"

	"github.com/goliatone/go-payledger/core"
)

// ResponseBody is the JSON body returned to the provider.
type ResponseBody struct {
	Received  bool   `json:"received,omitempty"`
	Processed *bool  `json:"processed,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

func AcknowledgedResponse() (int, ResponseBody) {
	return http.StatusOK, ResponseBody{Received: true}
}

func ProcessedResponse(duplicate bool) (int, ResponseBody) {
	processed := true
	return http.StatusOK, ResponseBody{Received: true, Processed: &processed, Duplicate: duplicate}
}

func ProcessingFailedResponse() (int, ResponseBody) {
	processed := false
	return http.StatusOK, ResponseBody{Received: true, Processed: &processed}
}

// ResponseForError maps a typed error onto a status and detail body. A valid
// unsupportedStatus overrides the default status of unsupported products.
func ResponseForError(err error, unsupportedStatus int) (int, ResponseBody) {
	if err == nil {
		return AcknowledgedResponse()
	}
	mapped := core.MapError(err)
	status := mapped.Code
	if errors.Is(err, core.ErrUnsupportedProduct) && validErrorStatus(unsupportedStatus) {
		status = unsupportedStatus
	}
	if !validErrorStatus(status) {
		status = http.StatusInternalServerError
	}
	detail := strings.TrimSpace(mapped.Message)
	if detail == "" {
		detail = http.StatusText(status)
	}
	return status, ResponseBody{Detail: detail}
}

// MapOutcome returns the status and body recorded on an outcome, falling back
// to the error mapping when the outcome has none.
func MapOutcome(outcome Outcome, unsupportedStatus int) (int, ResponseBody) {
	if outcome.StatusCode != 0 {
		return outcome.StatusCode, outcome.Body
	}
	if outcome.Err != nil {
		return ResponseForError(outcome.Err, unsupportedStatus)
	}
	return AcknowledgedResponse()
}

func validErrorStatus(status int) bool {
	return status >= 400 && status <= 599
}
