package allowlist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/family-messenger/securecore/internal/secerr"
)

type memoryRepository struct {
	entries []Entry
}

// NewMemoryRepository builds a roster repository over a static slice of
// entries, used in tests and file-seeded deployments.
func NewMemoryRepository(entries []Entry) Repository {
	return &memoryRepository{entries: entries}
}

func (r *memoryRepository) LookupByIdentity(_ context.Context, firstName, lastName, email string) (Entry, error) {
	for _, entry := range r.entries {
		if strings.EqualFold(entry.FirstName, firstName) &&
			strings.EqualFold(entry.LastName, lastName) &&
			strings.EqualFold(entry.Email, email) {
			return entry, nil
		}
	}
	return Entry{}, fmt.Errorf("roster entry: %w", secerr.ErrNotFound)
}

// LoadRoster reads a JSON array of entries from path.
func LoadRoster(path string) ([]Entry, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	return entries, nil
}
