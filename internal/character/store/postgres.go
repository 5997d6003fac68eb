package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"sheetport/internal/character/models"
	dErrors "sheetport/pkg/domain-errors"
	"sheetport/pkg/platform/sentinel"
	txcontext "sheetport/pkg/platform/tx"
)

const schema = `
CREATE TABLE IF NOT EXISTS character_folders (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS characters (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	type       TEXT NOT NULL,
	folder_id  TEXT REFERENCES character_folders(id) ON DELETE SET NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS characters_created_at_idx ON characters (created_at);
`

// PostgreSQL error codes the store translates.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// Postgres persists characters in PostgreSQL. Sheet payloads are kept
// as JSONB so foreign fields the sanitizer allowed survive intact.
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgres constructs a PostgreSQL-backed character store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// Migrate creates the store's tables if they do not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate character store: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create inserts all records in one transaction. A transaction already on
// ctx (see pkg/platform/tx) is joined instead of starting a new one.
func (s *Postgres) Create(ctx context.Context, docs []models.Record, _ models.CreateOptions) ([]models.Character, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	now := s.now().UTC()
	built := make([]*models.Character, 0, len(docs))
	for i, doc := range docs {
		c, err := models.NewCharacter(uuid.NewString(), doc, now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("document %d", i))
		}
		built = append(built, c)
	}

	if tx, ok := txcontext.From(ctx); ok {
		return s.insert(ctx, tx, built)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create characters: %w", err)
	}
	out, err := s.insert(ctx, tx, built)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create characters: %w", err)
	}
	return out, nil
}

func (s *Postgres) insert(ctx context.Context, db execer, built []*models.Character) ([]models.Character, error) {
	out := make([]models.Character, 0, len(built))
	for _, c := range built {
		payload, err := json.Marshal(c.Data)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "encode character "+c.Name)
		}
		_, err = db.ExecContext(ctx,
			`INSERT INTO characters (id, name, type, folder_id, data, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, c.Name, c.Type, nullString(c.FolderID), payload, c.CreatedAt,
		)
		if err != nil {
			return nil, translate(err, "insert character "+c.Name)
		}
		out = append(out, *c)
	}
	return out, nil
}

// Get returns a stored character or sentinel.ErrNotFound.
func (s *Postgres) Get(ctx context.Context, id string) (*models.Character, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, folder_id, data, created_at FROM characters WHERE id = $1`, id)
	c, err := scanCharacter(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("character %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find character: %w", err)
	}
	return c, nil
}

// List returns characters in creation order.
func (s *Postgres) List(ctx context.Context) ([]models.Character, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, folder_id, data, created_at FROM characters ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	var out []models.Character
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CreateFolder adds a folder for characters.
func (s *Postgres) CreateFolder(ctx context.Context, name string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "folder name cannot be empty")
	}
	f := models.Folder{ID: uuid.NewString(), Name: name}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO character_folders (id, name) VALUES ($1, $2)`, f.ID, f.Name); err != nil {
		return nil, translate(err, "insert folder")
	}
	return &f, nil
}

// FolderExists implements sanitize.FolderResolver. Lookup failures count as
// unresolved so the record is created unfiled.
func (s *Postgres) FolderExists(ctx context.Context, id string) bool {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM character_folders WHERE id = $1)`, id).Scan(&exists)
	return err == nil && exists
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCharacter(row scanner) (*models.Character, error) {
	var (
		c       models.Character
		folder  sql.NullString
		payload []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Type, &folder, &payload, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.FolderID = folder.String
	if err := json.Unmarshal(payload, &c.Data); err != nil {
		return nil, fmt.Errorf("decode character %s: %w", c.ID, err)
	}
	return &c, nil
}

func translate(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pgForeignKeyViolation:
			return dErrors.Wrap(err, dErrors.CodeValidation, op+": referenced folder does not exist")
		case pgUniqueViolation:
			return dErrors.Wrap(err, dErrors.CodeConflict, op+": already exists")
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
