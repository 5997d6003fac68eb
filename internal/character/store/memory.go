package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sheetport/internal/character/models"
	dErrors "sheetport/pkg/domain-errors"
	"sheetport/pkg/platform/sentinel"
)

// Memory keeps characters and folders in process memory. It backs
// tests, the CLI without a database, and single-node development servers.
type Memory struct {
	mu         sync.RWMutex
	characters map[string]*models.Character
	order      []string
	folders    map[string]models.Folder
	now        func() time.Time
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		characters: make(map[string]*models.Character),
		folders:    make(map[string]models.Folder),
		now:        time.Now,
	}
}

// Create validates every record first and stores all of them or none.
func (s *Memory) Create(_ context.Context, docs []models.Record, _ models.CreateOptions) ([]models.Character, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range built {
		if c.FolderID != "" {
			if _, ok := s.folders[c.FolderID]; !ok {
				return nil, dErrors.New(dErrors.CodeValidation, "folder "+c.FolderID+" does not exist")
			}
		}
	}
	out := make([]models.Character, 0, len(built))
	for _, c := range built {
		s.characters[c.ID] = c
		s.order = append(s.order, c.ID)
		out = append(out, *c)
	}
	return out, nil
}

// Get returns a stored character or sentinel.ErrNotFound.
func (s *Memory) Get(_ context.Context, id string) (*models.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.characters[id]
	if !ok {
		return nil, fmt.Errorf("character %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

// List returns characters in creation order.
func (s *Memory) List(_ context.Context) ([]models.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Character, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.characters[id])
	}
	return out, nil
}

// CreateFolder adds a folder for characters.
func (s *Memory) CreateFolder(_ context.Context, name string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "folder name cannot be empty")
	}
	f := models.Folder{ID: uuid.NewString(), Name: name}
	s.mu.Lock()
	s.folders[f.ID] = f
	s.mu.Unlock()
	return &f, nil
}

// FolderExists implements sanitize.FolderResolver.
func (s *Memory) FolderExists(_ context.Context, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.folders[id]
	return ok
}
