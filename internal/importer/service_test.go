package importer

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Creator,Delegator,Gate,AuditPublisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"sheetport/internal/character/models"
	"sheetport/internal/character/sanitize"
	"sheetport/internal/character/store"
	"sheetport/internal/importer/mocks"
	dErrors "sheetport/pkg/domain-errors"
	audit "sheetport/pkg/platform/audit"
)

type ImportServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *store.Memory
	gate      *mocks.MockGate
	delegator *mocks.MockDelegator
	auditor   *mocks.MockAuditPublisher
	service   *Service
	player    models.Actor
}

func TestImportServiceSuite(t *testing.T) {
	suite.Run(t, new(ImportServiceSuite))
}

func (s *ImportServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = store.NewMemory()
	s.gate = mocks.NewMockGate(s.ctrl)
	s.delegator = mocks.NewMockDelegator(s.ctrl)
	s.auditor = mocks.NewMockAuditPublisher(s.ctrl)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	s.player = models.Actor{ID: "player-1", Role: models.RolePlayer}
	s.service = s.newService()
}

func (s *ImportServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ImportServiceSuite) newService(opts ...Option) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{
		WithLogger(logger),
		WithDelegator(s.delegator),
		WithAuditPublisher(s.auditor),
	}, opts...)
	svc, err := New(s.store, sanitize.New(s.store), s.gate, opts...)
	s.Require().NoError(err)
	return svc
}

func (s *ImportServiceSuite) allowDirect(allowed bool) {
	s.gate.EXPECT().CanCreate(gomock.Any(), gomock.Any()).Return(allowed).AnyTimes()
}

func (s *ImportServiceSuite) messages(r *Result, level string) []string {
	var out []string
	for _, n := range r.Notices {
		if n.Level == level {
			out = append(out, n.Message)
		}
	}
	return out
}

func (s *ImportServiceSuite) TestNew() {
	s.Run("requires creator", func() {
		_, err := New(nil, sanitize.New(nil), s.gate)
		s.ErrorContains(err, "creator is required")
	})
	s.Run("requires sanitizer", func() {
		_, err := New(s.store, nil, s.gate)
		s.ErrorContains(err, "sanitizer is required")
	})
	s.Run("requires gate", func() {
		_, err := New(s.store, sanitize.New(nil), nil)
		s.ErrorContains(err, "gate is required")
	})
}

func (s *ImportServiceSuite) TestInvalidJSON() {
	result, err := s.service.ImportFromText(context.Background(), s.player, `{"name": `, DefaultOptions())

	s.Nil(result)
	s.True(dErrors.HasCode(err, dErrors.CodeParse))
	s.Equal("Invalid JSON", err.Error())

	all, listErr := s.store.List(context.Background())
	s.Require().NoError(listErr)
	s.Empty(all)
}

func (s *ImportServiceSuite) TestBatchIsolatesFailures() {
	s.allowDirect(true)

	result, err := s.service.ImportFromText(context.Background(), s.player,
		`[{"name":"Alpha"}, {"name":""}, {"name":"Gamma"}]`, DefaultOptions())

	s.Require().NoError(err)
	s.True(result.Batch)
	s.Require().Len(result.Characters, 2)
	s.Equal("Alpha", result.Characters[0].Name)
	s.Equal("Gamma", result.Characters[1].Name)
	s.Equal(2, result.Succeeded)
	s.Equal(1, result.Failed)
	s.Require().Len(result.Errors, 1)
	s.Equal(1, result.Errors[0].Index)
	s.Equal(dErrors.CodeValidation, result.Errors[0].Code)
	s.Contains(s.messages(result, NoticeInfo), "Imported 2 SR6-Eden actor(s).")
}

func (s *ImportServiceSuite) TestBatchRejectsNonObjectElements() {
	s.allowDirect(true)

	result, err := s.service.ImportFromText(context.Background(), s.player, `[42, "x", {"name":"Kestrel"}]`, DefaultOptions())

	s.Require().NoError(err)
	s.Equal(1, result.Succeeded)
	s.Equal(2, result.Failed)
	s.Equal(dErrors.CodeValidation, result.Errors[0].Code)
	s.Equal(dErrors.CodeValidation, result.Errors[1].Code)
}

func (s *ImportServiceSuite) TestSingleImport() {
	s.Run("success notice names the character", func() {
		s.SetupTest()
		s.allowDirect(true)

		result, err := s.service.ImportFromText(context.Background(), s.player, `{"name":"Kestrel","type":"pc"}`, DefaultOptions())

		s.Require().NoError(err)
		s.False(result.Batch)
		s.Require().Len(result.Characters, 1)
		s.Equal(models.TypePlayer, result.Characters[0].Type)
		s.Contains(s.messages(result, NoticeInfo), "Imported actor: Kestrel")
	})

	s.Run("top-level scalar is a unit failure", func() {
		s.SetupTest()
		s.allowDirect(true)

		result, err := s.service.ImportFromText(context.Background(), s.player, `"hello"`, DefaultOptions())

		s.Require().NoError(err)
		s.Empty(result.Characters)
		s.NotNil(result.Characters)
		s.Equal(1, result.Failed)
		s.True(dErrors.HasCode(result.FirstError(), dErrors.CodeValidation))
		s.Len(s.messages(result, NoticeError), 1)
	})
}

func (s *ImportServiceSuite) TestEmptyCreationResult() {
	creator := mocks.NewMockCreator(s.ctrl)
	creator.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return([]models.Character{}, nil)
	s.allowDirect(true)
	svc, err := New(creator, sanitize.New(nil), s.gate, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)

	result, err := svc.ImportFromText(context.Background(), s.player, `{"name":"Ghost"}`, DefaultOptions())

	s.Require().NoError(err)
	s.Empty(result.Characters)
	s.True(dErrors.HasCode(result.FirstError(), dErrors.CodeCreation))
	s.Equal("Actor creation returned no result", result.FirstError().Error())
	s.Equal([]string{"Actor creation failed: Actor creation returned no result"}, s.messages(result, NoticeError))
}

func (s *ImportServiceSuite) TestUncodedCreatorErrorBecomesCreationFailure() {
	creator := mocks.NewMockCreator(s.ctrl)
	creator.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))
	s.allowDirect(true)
	svc, err := New(creator, sanitize.New(nil), s.gate)
	s.Require().NoError(err)

	c, err := svc.ImportOne(context.Background(), s.player, map[string]any{"name": "X"}, DefaultOptions())

	s.Nil(c)
	s.True(dErrors.HasCode(err, dErrors.CodeCreation))
	s.ErrorContains(err, "connection reset")
}

func (s *ImportServiceSuite) TestDirectCreationSkipsDelegation() {
	s.allowDirect(true)
	s.delegator.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	result, err := s.service.ImportFromText(context.Background(), s.player, `{"name":"Direct"}`, DefaultOptions())

	s.Require().NoError(err)
	s.Equal(1, result.Succeeded)
	s.Empty(s.messages(result, NoticeWarn))
}

func (s *ImportServiceSuite) TestDelegatedCreation() {
	s.allowDirect(false)
	s.delegator.EXPECT().
		Create(gomock.Any(), gomock.Any(), models.CreateOptions{Render: false}).
		DoAndReturn(func(ctx context.Context, docs []models.Record, opts models.CreateOptions) ([]models.Character, error) {
			s.Require().Len(docs, 1)
			s.NotContains(docs[0], "_id")
			return s.store.Create(ctx, docs, opts)
		})

	result, err := s.service.ImportFromText(context.Background(), s.player, `{"name":"Delegated","_id":"forged"}`, DefaultOptions())

	s.Require().NoError(err)
	s.Require().Len(result.Characters, 1)
	s.Equal("Delegated", result.Characters[0].Name)
	s.Contains(s.messages(result, NoticeInfo), "You may not have permission to create Actors; importer will try GM-assisted creation.")
}

func (s *ImportServiceSuite) TestDelegationFailureIsReported() {
	s.allowDirect(false)
	s.delegator.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeDelegationTimeout, "GM did not respond to creation request (timeout)."))

	result, err := s.service.ImportFromText(context.Background(), s.player, `{"name":"Late"}`, DefaultOptions())

	s.Require().NoError(err)
	s.Equal(dErrors.CodeDelegationTimeout, result.Errors[0].Code)
	s.Contains(s.messages(result, NoticeError), "Actor creation failed: GM did not respond to creation request (timeout).")
}

func (s *ImportServiceSuite) TestFallbackDisabled() {
	s.allowDirect(false)
	s.delegator.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	opts := DefaultOptions()
	opts.GMFallback = false

	result, err := s.service.ImportFromText(context.Background(), s.player, `{"name":"Denied"}`, opts)

	s.Require().NoError(err)
	s.Empty(result.Characters)
	s.True(dErrors.HasCode(result.FirstError(), dErrors.CodePermission))
	s.Equal("User lacks permission to create Actors and GM-fallback is disabled.", result.Errors[0].Message)
}

func (s *ImportServiceSuite) TestForceSystemWarning() {
	s.allowDirect(true)

	s.Run("warns once when the world runs another system", func() {
		svc := s.newService(WithWorldSystem("dnd5e"))
		result, err := svc.ImportFromText(context.Background(), s.player, `[{"name":"A"},{"name":"B"}]`, DefaultOptions())
		s.Require().NoError(err)
		s.Equal([]string{`This world is running system "dnd5e". Importer expects "shadowrun6-eden". Proceeding anyway.`}, s.messages(result, NoticeWarn))
		s.Equal(2, result.Succeeded)
	})

	s.Run("stays silent when disabled", func() {
		svc := s.newService(WithWorldSystem("dnd5e"))
		opts := DefaultOptions()
		opts.ForceSystem = false
		result, err := svc.ImportFromText(context.Background(), s.player, `{"name":"A"}`, opts)
		s.Require().NoError(err)
		s.Empty(s.messages(result, NoticeWarn))
	})
}

func (s *ImportServiceSuite) TestFolderOption() {
	s.allowDirect(true)
	folder, err := s.store.CreateFolder(context.Background(), "Imports")
	s.Require().NoError(err)

	s.Run("existing folder overrides the sheet's folder", func() {
		opts := DefaultOptions()
		opts.Folder = folder.ID
		result, err := s.service.ImportFromText(context.Background(), s.player, `{"name":"Filed","folder":"other"}`, opts)
		s.Require().NoError(err)
		s.Require().Len(result.Characters, 1)
		s.Equal(folder.ID, result.Characters[0].FolderID)
	})

	s.Run("unknown folder is dropped", func() {
		opts := DefaultOptions()
		opts.Folder = "missing"
		result, err := s.service.ImportFromText(context.Background(), s.player, `{"name":"Unfiled"}`, opts)
		s.Require().NoError(err)
		s.Require().Len(result.Characters, 1)
		s.Empty(result.Characters[0].FolderID)
	})
}

func (s *ImportServiceSuite) TestRenderIsEchoed() {
	s.allowDirect(true)
	opts := DefaultOptions()
	opts.Render = false

	result, err := s.service.ImportFromText(context.Background(), s.player, `{"name":"A"}`, opts)

	s.Require().NoError(err)
	s.False(result.Render)
}

func (s *ImportServiceSuite) TestTypeCoercionOption() {
	s.allowDirect(true)
	opts := DefaultOptions()
	opts.CoerceType = false

	result, err := s.service.ImportFromText(context.Background(), s.player, `[{"name":"Spirit","type":"Spirit"},{"name":"Mech","type":"Mech"}]`, opts)

	s.Require().NoError(err)
	s.Require().Len(result.Characters, 1)
	s.Equal(models.TypeSpirit, result.Characters[0].Type)
	s.Equal(dErrors.CodeValidation, result.Errors[0].Code)
}

func (s *ImportServiceSuite) TestAuditEvents() {
	ctrl := gomock.NewController(s.T())
	auditor := mocks.NewMockAuditPublisher(ctrl)
	s.allowDirect(true)
	svc := s.newService(WithAuditPublisher(auditor))

	var events []audit.Event
	auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e audit.Event) error {
			events = append(events, e)
			if e.Action == string(audit.EventCharacterImportFailed) {
				return errors.New("audit sink down")
			}
			return nil
		}).Times(2)

	result, err := svc.ImportFromText(context.Background(), s.player, `[{"name":"Kept"},{"name":" "}]`, DefaultOptions())

	s.Require().NoError(err)
	s.Equal(1, result.Succeeded)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventCharacterImported), events[0].Action)
	s.Equal("Kept", events[0].Subject)
	s.Equal(pathDirect, events[0].Decision)
	s.Equal(s.player.ID, events[0].ActorID)
	s.Equal(string(audit.EventCharacterImportFailed), events[1].Action)
	s.Equal(string(dErrors.CodeValidation), events[1].Reason)
	ctrl.Finish()
}

func TestTruncate(t *testing.T) {
	short := "abc"
	if got := truncate(short, 10); got != short {
		t.Fatalf("truncate(%q) = %q", short, got)
	}

	long := strings.Repeat("é", 1000)
	got := truncate(long, debugPayloadLimit)
	if !strings.HasSuffix(got, "…(truncated)") {
		t.Fatalf("missing truncation marker: %q", got[len(got)-20:])
	}
	body := strings.TrimSuffix(got, "…(truncated)")
	if len(body) > debugPayloadLimit || !strings.HasPrefix(long, body) {
		t.Fatalf("unexpected truncated body length %d", len(body))
	}
}
