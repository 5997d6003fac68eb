package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sheetport/internal/character/models"
	"sheetport/internal/character/normalize"
	"sheetport/internal/importer/metrics"
	dErrors "sheetport/pkg/domain-errors"
	audit "sheetport/pkg/platform/audit"
	"sheetport/pkg/requestcontext"
)

// Creator creates characters directly in the store.
type Creator interface {
	Create(ctx context.Context, docs []models.Record, opts models.CreateOptions) ([]models.Character, error)
}

// Delegator asks a privileged peer to create characters.
type Delegator interface {
	Create(ctx context.Context, docs []models.Record, opts models.CreateOptions) ([]models.Character, error)
}

// Gate decides whether an actor may create characters directly.
type Gate interface {
	CanCreate(ctx context.Context, actor models.Actor) bool
}

// Sanitizer cleans a normalized record before creation.
type Sanitizer interface {
	Sanitize(ctx context.Context, rec models.Record) models.Record
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Creation paths, used in metrics and audit decisions.
const (
	pathDirect    = "direct"
	pathDelegated = "delegated"
	pathNone      = "none"
)

const (
	msgPermissionDenied = "User lacks permission to create Actors and GM-fallback is disabled."
	msgNoResult         = "Actor creation returned no result"
	msgInvalidJSON      = "Invalid JSON"
	msgTryingGM         = "You may not have permission to create Actors; importer will try GM-assisted creation."
)

// Service orchestrates imports.
type Service struct {
	creator        Creator
	sanitizer      Sanitizer
	gate           Gate
	delegator      Delegator
	worldSystem    string
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithDelegator enables GM-assisted creation.
func WithDelegator(d Delegator) Option {
	return func(s *Service) {
		s.delegator = d
	}
}

// WithWorldSystem sets the game system the world runs. Defaults to SystemID.
func WithWorldSystem(system string) Option {
	return func(s *Service) {
		s.worldSystem = system
	}
}

// New constructs a Service.
func New(creator Creator, sanitizer Sanitizer, gate Gate, opts ...Option) (*Service, error) {
	if creator == nil {
		return nil, errors.New("creator is required")
	}
	if sanitizer == nil {
		return nil, errors.New("sanitizer is required")
	}
	if gate == nil {
		return nil, errors.New("gate is required")
	}
	s := &Service{
		creator:     creator,
		sanitizer:   sanitizer,
		gate:        gate,
		worldSystem: SystemID,
		logger:      slog.Default(),
		tracer:      otel.Tracer("sheetport/importer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ImportFromText parses text as one sheet object or an array of them and
// imports each in order. Unit failures are collected on the Result; only a
// parse failure is returned as an error.
func (s *Service) ImportFromText(ctx context.Context, actor models.Actor, text string, opts Options) (*Result, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveImportLatency(time.Since(start)) }()

	if opts.Debug {
		s.logger.DebugContext(ctx, "raw import payload",
			"request_id", requestcontext.RequestID(ctx),
			"payload", truncate(text, debugPayloadLimit),
		)
	}

	var data any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		s.metrics.IncrementParseFailure()
		s.logger.DebugContext(ctx, "import payload is not JSON",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, dErrors.New(dErrors.CodeParse, msgInvalidJSON)
	}

	result := &Result{Characters: []models.Character{}, Render: opts.Render}
	if opts.ForceSystem && s.worldSystem != SystemID {
		result.notice(NoticeWarn, fmt.Sprintf("This world is running system %q. Importer expects %q. Proceeding anyway.", s.worldSystem, SystemID))
	}
	if opts.GMFallback && s.delegator != nil && !s.gate.CanCreate(ctx, actor) {
		result.notice(NoticeInfo, msgTryingGM)
	}

	if items, ok := data.([]any); ok {
		result.Batch = true
		for i, item := range items {
			s.importUnit(ctx, actor, i, item, opts, result)
		}
		result.notice(NoticeInfo, fmt.Sprintf("Imported %d SR6-Eden actor(s).", result.Succeeded))
		return result, nil
	}

	if c := s.importUnit(ctx, actor, 0, data, opts, result); c != nil {
		result.notice(NoticeInfo, "Imported actor: "+c.Name)
	}
	return result, nil
}

func (s *Service) importUnit(ctx context.Context, actor models.Actor, index int, v any, opts Options, result *Result) *models.Character {
	c, err := s.ImportOne(ctx, actor, v, opts)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, UnitError{
			Index:   index,
			Code:    dErrors.CodeOf(err),
			Message: err.Error(),
			Err:     err,
		})
		result.notice(NoticeError, "Actor creation failed: "+err.Error())
		return nil
	}
	result.Succeeded++
	result.Characters = append(result.Characters, *c)
	return c
}

// ImportOne imports a single decoded sheet.
func (s *Service) ImportOne(ctx context.Context, actor models.Actor, v any, opts Options) (*models.Character, error) {
	ctx, span := s.tracer.Start(ctx, "importer.import_one", trace.WithAttributes(
		attribute.String("actor_id", actor.ID),
	))
	defer span.End()

	c, path, err := s.importOne(ctx, actor, v, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		s.metrics.IncrementImport("failed", path)
		s.logger.WarnContext(ctx, "character import failed",
			"request_id", requestcontext.RequestID(ctx),
			"actor_id", actor.ID,
			"path", path,
			"error", err,
		)
		s.emitAudit(ctx, audit.Event{
			ActorID:  actor.ID,
			Action:   string(audit.EventCharacterImportFailed),
			Decision: path,
			Reason:   string(dErrors.CodeOf(err)),
		})
		return nil, err
	}

	span.SetAttributes(attribute.String("character_id", c.ID), attribute.String("path", path))
	s.metrics.IncrementImport("created", path)
	s.logger.InfoContext(ctx, "character imported",
		"request_id", requestcontext.RequestID(ctx),
		"actor_id", actor.ID,
		"character_id", c.ID,
		"path", path,
	)
	s.emitAudit(ctx, audit.Event{
		ActorID:  actor.ID,
		Subject:  c.Name,
		Action:   string(audit.EventCharacterImported),
		Decision: path,
	})
	return c, nil
}

func (s *Service) importOne(ctx context.Context, actor models.Actor, v any, opts Options) (*models.Character, string, error) {
	input, ok := v.(map[string]any)
	if !ok {
		return nil, pathNone, dErrors.New(dErrors.CodeValidation, "import entry must be a JSON object")
	}

	rec := normalize.Normalize(input, normalize.Options{CoerceType: opts.CoerceType})
	if opts.Folder != "" {
		rec["folder"] = opts.Folder
	}
	clean := s.sanitizer.Sanitize(ctx, rec)
	if opts.Debug {
		s.logger.DebugContext(ctx, "sanitized character",
			"request_id", requestcontext.RequestID(ctx),
			"character", clean,
		)
	}

	created, path, err := s.create(ctx, actor, clean, opts.GMFallback)
	if err != nil {
		var de *dErrors.Error
		if !errors.As(err, &de) {
			err = dErrors.Wrap(err, dErrors.CodeCreation, "actor creation failed")
		}
		return nil, path, err
	}
	if len(created) == 0 {
		return nil, path, dErrors.New(dErrors.CodeCreation, msgNoResult)
	}
	return &created[0], path, nil
}

// create sends a single sanitized record down the permitted path. Rendering
// is the caller's concern, so the store is always asked not to render.
func (s *Service) create(ctx context.Context, actor models.Actor, clean models.Record, fallback bool) ([]models.Character, string, error) {
	docs := []models.Record{clean}
	createOpts := models.CreateOptions{Render: false}

	if s.gate.CanCreate(ctx, actor) {
		out, err := s.creator.Create(ctx, docs, createOpts)
		return out, pathDirect, err
	}
	if !fallback || s.delegator == nil {
		return nil, pathNone, dErrors.New(dErrors.CodePermission, msgPermissionDenied)
	}
	out, err := s.delegator.Create(ctx, docs, createOpts)
	return out, pathDelegated, err
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}
