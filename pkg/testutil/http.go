// Package testutil holds request builders and response assertions shared by
// handler tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewRequest creates a request without a body.
func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// NewImportRequest builds a POST to the import route carrying raw sheet text.
// query is appended verbatim, so pass it with its leading "?".
func NewImportRequest(t *testing.T, query, sheet string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/characters/import"+query, strings.NewReader(sheet))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest executes a request against a handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// UnmarshalResponse decodes the response body into T.
func UnmarshalResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var result T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result), "failed to unmarshal response")
	return &result
}

// AssertErrorResponse checks status, error code and, when non-empty, the
// human-readable description of a JSON error body.
func AssertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder, status int, code, description string) {
	t.Helper()
	assert.Equal(t, status, rr.Code, "unexpected status code")
	body := UnmarshalResponse[map[string]string](t, rr)
	assert.Equal(t, code, (*body)["error"], "unexpected error code")
	if description != "" {
		assert.Equal(t, description, (*body)["error_description"])
	}
}
