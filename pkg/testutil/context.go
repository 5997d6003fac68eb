package testutil

import (
	"net/http"

	"sheetport/pkg/requestcontext"
)

// WithActor attaches an authenticated actor the way RequireAuth would.
func WithActor(req *http.Request, actorID, role string) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actorID, role))
}
