package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sheetport/internal/character/models"
	"sheetport/internal/importer"
	"sheetport/internal/platform/metrics"
	dErrors "sheetport/pkg/domain-errors"
	"sheetport/pkg/platform/httputil"
	authmw "sheetport/pkg/platform/middleware/auth"
	metadata "sheetport/pkg/platform/middleware/metadata"
	request "sheetport/pkg/platform/middleware/request"
	"sheetport/pkg/platform/middleware/requesttime"
	"sheetport/pkg/platform/sentinel"
	"sheetport/pkg/requestcontext"
)

// maxSheetBytes bounds an uploaded import payload.
const maxSheetBytes = 8 << 20

// Service defines the import operation the handler drives.
type Service interface {
	ImportFromText(ctx context.Context, actor models.Actor, text string, opts importer.Options) (*importer.Result, error)
}

// CharacterReader reads stored characters.
type CharacterReader interface {
	Get(ctx context.Context, id string) (*models.Character, error)
	List(ctx context.Context) ([]models.Character, error)
}

// Handler serves character import and lookup endpoints.
type Handler struct {
	logger       *slog.Logger
	importer     Service
	characters   CharacterReader
	metrics      *metrics.Metrics
	jwtValidator authmw.JWTValidator
	throttle     func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithImportThrottle guards the import route with mw, applied after
// authentication so it can key on the actor.
func WithImportThrottle(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.throttle = mw
	}
}

// New creates a new import Handler.
func New(
	svc Service,
	characters CharacterReader,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator authmw.JWTValidator,
	opts ...Option) *Handler {
	h := &Handler{
		logger:       logger,
		importer:     svc,
		characters:   characters,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the character routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	characterRouter := chi.NewRouter()
	characterRouter.Use(request.Recovery(h.logger))
	characterRouter.Use(request.RequestID)
	characterRouter.Use(metadata.ClientMetadata)
	characterRouter.Use(request.Logger(h.logger))
	characterRouter.Use(requesttime.Middleware)
	characterRouter.Use(request.Timeout(60 * time.Second))
	characterRouter.Use(request.ContentType("application/json", "text/plain"))
	characterRouter.Use(metrics.LatencyMiddleware(h.metrics))
	characterRouter.Use(authmw.RequireAuth(h.jwtValidator, h.logger))
	if h.throttle != nil {
		characterRouter.With(h.throttle).Post("/characters/import", h.handleImport)
	} else {
		characterRouter.Post("/characters/import", h.handleImport)
	}
	characterRouter.Get("/characters", h.handleList)
	characterRouter.Get("/characters/{id}", h.handleGet)

	r.Mount("/", characterRouter)
}

// handleImport imports the raw request body as one sheet or an array of sheets.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	actorID, role := requestcontext.Actor(ctx)
	if actorID == "" {
		h.logger.ErrorContext(ctx, "actor missing from context despite auth middleware",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	actor := models.Actor{ID: actorID, Role: models.ParseRole(role)}

	opts, err := optionsFromQuery(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid import options",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSheetBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "sheet too large"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.importer.ImportFromText(ctx, actor, string(body), opts)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeParse) {
			h.logger.WarnContext(ctx, "import payload rejected",
				"request_id", requestID,
				"error", err.Error(),
			)
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "import failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "import failed"))
		return
	}

	httputil.WriteJSON(w, importStatus(result), result)
}

// importStatus is 200 for any batch and for a successful single import.
// A failed single import reports the status of its error.
func importStatus(result *importer.Result) int {
	if result.Batch || result.Failed == 0 || len(result.Errors) == 0 {
		return http.StatusOK
	}
	return httputil.StatusFor(result.Errors[0].Code)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chars, err := h.characters.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list characters",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list characters"))
		return
	}
	if chars == nil {
		chars = []models.Character{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"characters": chars})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	c, err := h.characters.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "character not found"))
			return
		}
		h.logger.ErrorContext(ctx, "failed to load character",
			"request_id", request.GetRequestID(ctx),
			"character_id", id,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to load character"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

// optionsFromQuery overlays query parameters on importer.DefaultOptions.
func optionsFromQuery(r *http.Request) (importer.Options, error) {
	opts := importer.DefaultOptions()
	q := r.URL.Query()
	opts.Folder = q.Get("folder")

	flags := []struct {
		name string
		dst  *bool
	}{
		{"render", &opts.Render},
		{"forceSystem", &opts.ForceSystem},
		{"coerceType", &opts.CoerceType},
		{"gmFallback", &opts.GMFallback},
		{"debug", &opts.Debug},
	}
	for _, f := range flags {
		v := q.Get(f.name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, dErrors.New(dErrors.CodeBadRequest, "invalid value for "+f.name)
		}
		*f.dst = b
	}
	return opts, nil
}
