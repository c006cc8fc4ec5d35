package matching

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"bank-reconciliation-backend/internal/models"
)

// MinQueryLength is the shortest trimmed query that triggers a search.
const MinQueryLength = 2

// MatchCandidate is an unmatched or uncertain bank line found by a search.
// EntryIndex addresses the line within its file.
type MatchCandidate struct {
	FileID      uuid.UUID          `json:"file_id"`
	FileName    string             `json:"file_name"`
	EntryIndex  int                `json:"entry_index"`
	Transaction models.Transaction `json:"transaction"`
	Status      models.MatchStatus `json:"status"`
}

// FileLister provides the open reconciliation files.
type FileLister interface {
	ListOpenFiles(ctx context.Context) ([]models.ReconciliationFile, error)
}

// Searcher scans open files for lines an operator may still match.
type Searcher struct {
	files FileLister
}

func NewSearcher(files FileLister) *Searcher {
	return &Searcher{files: files}
}

// Search returns every unmatched or uncertain line of an open file whose label
// satisfies text, in file then entry order. Queries shorter than
// MinQueryLength return an empty result without reading storage. A storage
// failure is returned as is and no result is produced.
func (s *Searcher) Search(ctx context.Context, text string) ([]MatchCandidate, error) {
	text = strings.TrimSpace(text)
	query := ParseQuery(text)
	if utf8.RuneCountInString(text) < MinQueryLength || query.Empty() {
		return []MatchCandidate{}, nil
	}

	files, err := s.files.ListOpenFiles(ctx)
	if err != nil {
		return nil, err
	}

	candidates := []MatchCandidate{}
	for _, f := range files {
		if !f.IsOpen() {
			continue
		}
		for i, entry := range f.Entries {
			if !entry.Status.Matchable() {
				continue
			}
			if !query.Match(entry.Transaction.Label) {
				continue
			}
			candidates = append(candidates, MatchCandidate{
				FileID:      f.ID,
				FileName:    f.Name,
				EntryIndex:  i,
				Transaction: entry.Transaction,
				Status:      entry.Status,
			})
		}
	}

	slog.Debug("Reconciliation search",
		"query", query.String(),
		"files", len(files),
		"candidates", len(candidates))
	return candidates, nil
}
