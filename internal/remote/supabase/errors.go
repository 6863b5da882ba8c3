package supabase

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is a non-2xx answer from PostgREST or Storage.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: %s (status %d, code %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("supabase: %s (status %d)", e.Message, e.Status)
}

// decodeError builds an APIError from a failed response. Storage uses
// "error"/"statusCode" instead of PostgREST's "code"/"message".
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var raw struct {
		Code       any    `json:"code"`
		Message    string `json:"message"`
		Details    any    `json:"details"`
		Hint       string `json:"hint"`
		Error      string `json:"error"`
		StatusCode string `json:"statusCode"`
	}
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(body, &raw); err != nil {
		apiErr.Message = http.StatusText(resp.StatusCode)
		if len(body) > 0 {
			apiErr.Message = string(body)
		}
		return apiErr
	}

	apiErr.Message = raw.Message
	apiErr.Hint = raw.Hint
	if raw.Code != nil {
		apiErr.Code = fmt.Sprint(raw.Code)
	} else if raw.Error != "" {
		apiErr.Code = raw.Error
	}
	if raw.Details != nil {
		apiErr.Details = fmt.Sprint(raw.Details)
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
