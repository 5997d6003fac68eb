package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"sheetport/internal/character/models"
	"sheetport/internal/importer"
	"sheetport/internal/importer/handler/mocks"
	"sheetport/internal/platform/metrics"
	dErrors "sheetport/pkg/domain-errors"
	authmw "sheetport/pkg/platform/middleware/auth"
	"sheetport/pkg/platform/sentinel"
	"sheetport/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,CharacterReader
type ImportHandlerSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	service    *mocks.MockService
	characters *mocks.MockCharacterReader
	handler    *Handler
	router     chi.Router
}

type validatorFunc func(string) (*authmw.JWTClaims, error)

func (f validatorFunc) ValidateToken(token string) (*authmw.JWTClaims, error) { return f(token) }

func TestImportHandlerSuite(t *testing.T) {
	suite.Run(t, new(ImportHandlerSuite))
}

func (s *ImportHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.characters = mocks.NewMockCharacterReader(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator := validatorFunc(func(token string) (*authmw.JWTClaims, error) {
		if token != "player-token" {
			return nil, errors.New("bad token")
		}
		return &authmw.JWTClaims{UserID: "runner-1", Role: "player"}, nil
	})
	s.handler = New(s.service, s.characters, logger, metrics.New(prometheus.NewRegistry()), validator)
	s.router = chi.NewRouter()
	s.handler.Register(s.router)
}

func (s *ImportHandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ImportHandlerSuite) TestImportSingle() {
	s.service.EXPECT().
		ImportFromText(gomock.Any(), models.Actor{ID: "runner-1", Role: models.RolePlayer}, `{"name":"Ghost"}`, importer.DefaultOptions()).
		Return(&importer.Result{
			Characters: []models.Character{{ID: "c-1", Name: "Ghost", Type: models.TypePlayer}},
			Succeeded:  1,
			Notices:    []importer.Notice{{Level: importer.NoticeInfo, Message: "Imported actor: Ghost"}},
			Render:     true,
		}, nil)

	req := testutil.WithActor(testutil.NewImportRequest(s.T(), "", `{"name":"Ghost"}`), "runner-1", "player")
	w := testutil.DoRequest(http.HandlerFunc(s.handler.handleImport), req)

	s.Equal(http.StatusOK, w.Code)
	resp := testutil.UnmarshalResponse[importer.Result](s.T(), w)
	s.Require().Len(resp.Characters, 1)
	s.Equal("Ghost", resp.Characters[0].Name)
	s.Equal("Imported actor: Ghost", resp.Notices[0].Message)
}

func (s *ImportHandlerSuite) TestImportOptionsFromQuery() {
	want := importer.DefaultOptions()
	want.Folder = "f-runners"
	want.Render = false
	want.GMFallback = false
	want.Debug = true
	s.service.EXPECT().
		ImportFromText(gomock.Any(), gomock.Any(), "[]", want).
		Return(&importer.Result{Characters: []models.Character{}, Batch: true}, nil)

	req := testutil.WithActor(testutil.NewImportRequest(s.T(), "?folder=f-runners&render=false&gmFallback=0&debug=true", "[]"), "runner-1", "player")
	w := testutil.DoRequest(http.HandlerFunc(s.handler.handleImport), req)

	s.Equal(http.StatusOK, w.Code)
}

func (s *ImportHandlerSuite) TestImportInvalidOption() {
	req := testutil.WithActor(testutil.NewImportRequest(s.T(), "?coerceType=sometimes", "{}"), "runner-1", "player")
	w := testutil.DoRequest(http.HandlerFunc(s.handler.handleImport), req)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "coerceType")
}

func (s *ImportHandlerSuite) TestImportInvalidJSON() {
	s.service.EXPECT().
		ImportFromText(gomock.Any(), gomock.Any(), "{nope", gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeParse, "Invalid JSON"))

	req := testutil.WithActor(testutil.NewImportRequest(s.T(), "", "{nope"), "runner-1", "player")
	w := testutil.DoRequest(http.HandlerFunc(s.handler.handleImport), req)

	testutil.AssertErrorResponse(s.T(), w, http.StatusBadRequest, string(dErrors.CodeParse), "Invalid JSON")
}

func (s *ImportHandlerSuite) TestImportSingleFailureUsesErrorStatus() {
	s.service.EXPECT().
		ImportFromText(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&importer.Result{
			Characters: []models.Character{},
			Failed:     1,
			Errors: []importer.UnitError{{
				Index:   0,
				Code:    dErrors.CodeDelegationTimeout,
				Message: "GM did not respond to creation request (timeout).",
			}},
			Notices: []importer.Notice{{Level: importer.NoticeError, Message: "Actor creation failed: GM did not respond to creation request (timeout)."}},
		}, nil)

	req := testutil.WithActor(testutil.NewImportRequest(s.T(), "", `{"name":"Ghost"}`), "runner-1", "player")
	w := testutil.DoRequest(http.HandlerFunc(s.handler.handleImport), req)

	s.Equal(http.StatusGatewayTimeout, w.Code)
	resp := testutil.UnmarshalResponse[importer.Result](s.T(), w)
	s.Equal(1, resp.Failed)
	s.Equal(dErrors.CodeDelegationTimeout, resp.Errors[0].Code)
}

func (s *ImportHandlerSuite) TestImportBatchWithFailuresIsOK() {
	s.service.EXPECT().
		ImportFromText(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&importer.Result{
			Characters: []models.Character{{ID: "c-1", Name: "A"}},
			Succeeded:  1,
			Failed:     1,
			Errors:     []importer.UnitError{{Index: 1, Code: dErrors.CodeValidation, Message: "bad"}},
			Batch:      true,
		}, nil)

	req := testutil.WithActor(testutil.NewImportRequest(s.T(), "", `[{"name":"A"},{}]`), "runner-1", "player")
	w := testutil.DoRequest(http.HandlerFunc(s.handler.handleImport), req)

	s.Equal(http.StatusOK, w.Code)
}

func (s *ImportHandlerSuite) TestImportMissingActor() {
	w := testutil.DoRequest(http.HandlerFunc(s.handler.handleImport), testutil.NewImportRequest(s.T(), "", "{}"))

	s.Equal(http.StatusInternalServerError, w.Code)
}

func (s *ImportHandlerSuite) TestImportUnexpectedServiceError() {
	s.service.EXPECT().
		ImportFromText(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("boom"))

	req := testutil.WithActor(testutil.NewImportRequest(s.T(), "", "{}"), "runner-1", "player")
	w := testutil.DoRequest(http.HandlerFunc(s.handler.handleImport), req)

	testutil.AssertErrorResponse(s.T(), w, http.StatusInternalServerError, string(dErrors.CodeInternal), "")
	s.NotContains(w.Body.String(), "boom")
}

func (s *ImportHandlerSuite) TestRoutesRequireAuth() {
	w := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/characters"))

	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *ImportHandlerSuite) TestRoutesRejectFormBodies() {
	req := httptest.NewRequest(http.MethodPost, "/characters/import", strings.NewReader("name=Ghost"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer player-token")

	w := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusUnsupportedMediaType, w.Code)
}

func (s *ImportHandlerSuite) TestRoutedImportCarriesActorFromToken() {
	s.service.EXPECT().
		ImportFromText(gomock.Any(), models.Actor{ID: "runner-1", Role: models.RolePlayer}, "{}", gomock.Any()).
		Return(&importer.Result{Characters: []models.Character{}}, nil)

	req := testutil.NewImportRequest(s.T(), "", "{}")
	req.Header.Set("Authorization", "Bearer player-token")
	w := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get("X-Request-ID"))
}

func (s *ImportHandlerSuite) TestList() {
	s.characters.EXPECT().List(gomock.Any()).Return(nil, nil)

	req := testutil.NewRequest(s.T(), http.MethodGet, "/characters")
	req.Header.Set("Authorization", "Bearer player-token")
	w := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"characters":[]}`, w.Body.String())
}

func (s *ImportHandlerSuite) TestGet() {
	s.Run("found", func() {
		s.characters.EXPECT().Get(gomock.Any(), "c-1").
			Return(&models.Character{ID: "c-1", Name: "Ghost", Type: models.TypePlayer}, nil)

		req := testutil.NewRequest(s.T(), http.MethodGet, "/characters/c-1")
		req.Header.Set("Authorization", "Bearer player-token")
		w := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusOK, w.Code)
		c := testutil.UnmarshalResponse[models.Character](s.T(), w)
		s.Equal("Ghost", c.Name)
	})

	s.Run("not found", func() {
		s.characters.EXPECT().Get(gomock.Any(), "missing").
			Return(nil, fmt.Errorf("character missing: %w", sentinel.ErrNotFound))

		req := testutil.NewRequest(s.T(), http.MethodGet, "/characters/missing")
		req.Header.Set("Authorization", "Bearer player-token")
		w := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusNotFound, w.Code)
	})
}

func TestImportStatus(t *testing.T) {
	tests := []struct {
		name   string
		result importer.Result
		want   int
	}{
		{name: "success", result: importer.Result{Succeeded: 1}, want: http.StatusOK},
		{name: "batch with failure", result: importer.Result{Batch: true, Failed: 1, Errors: []importer.UnitError{{Code: dErrors.CodeCreation}}}, want: http.StatusOK},
		{name: "single validation failure", result: importer.Result{Failed: 1, Errors: []importer.UnitError{{Code: dErrors.CodeValidation}}}, want: http.StatusBadRequest},
		{name: "single rejected by gm", result: importer.Result{Failed: 1, Errors: []importer.UnitError{{Code: dErrors.CodeDelegationRejected}}}, want: http.StatusUnprocessableEntity},
		{name: "single permission failure", result: importer.Result{Failed: 1, Errors: []importer.UnitError{{Code: dErrors.CodePermission}}}, want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, importStatus(&tt.result))
		})
	}
}

func (s *ImportHandlerSuite) TestImportThrottleAppliesOnlyToImport() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator := validatorFunc(func(string) (*authmw.JWTClaims, error) {
		return &authmw.JWTClaims{UserID: "runner-1", Role: "player"}, nil
	})
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	h := New(s.service, s.characters, logger, nil, validator, WithImportThrottle(deny))
	r := chi.NewRouter()
	h.Register(r)
	s.characters.EXPECT().List(gomock.Any()).Return([]models.Character{}, nil)

	req := testutil.NewImportRequest(s.T(), "", "{}")
	req.Header.Set("Authorization", "Bearer any")
	s.Equal(http.StatusTooManyRequests, testutil.DoRequest(r, req).Code)

	list := testutil.NewRequest(s.T(), http.MethodGet, "/characters")
	list.Header.Set("Authorization", "Bearer any")
	s.Equal(http.StatusOK, testutil.DoRequest(r, list).Code)
}
