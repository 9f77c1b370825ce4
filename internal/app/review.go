package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"yashubustudio/custmapper/categorizer"
)

var (
	// ErrUnsavedEdits is returned by Run while operator edits are pending.
	ErrUnsavedEdits = errors.New("save the ledger before running")
	// ErrBusy is returned when a run is already in progress.
	ErrBusy = errors.New("a run is already in progress")
	// ErrNotFound is returned for names absent from the ledger.
	ErrNotFound = errors.New("no ledger record")
)

// Runner is the part of a pipeline a Session drives.
type Runner interface {
	Run(ctx context.Context, names []string) (*categorizer.Ledger, categorizer.RunSummary, error)
}

// Filter selects ledger records. Zero fields match everything.
type Filter struct {
	// Query matches a case-insensitive substring of the name or group.
	Query    string
	Source   categorizer.Provenance
	Category categorizer.Category
}

func (f Filter) match(rec categorizer.Record) bool {
	if f.Source != "" && rec.Source != f.Source {
		return false
	}
	if f.Category != "" && rec.Category != f.Category {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(rec.Name), q) ||
		strings.Contains(strings.ToLower(rec.ParentGroup), q)
}

// Session holds a ledger open for operator review. Edits stay in memory until
// Save. It is safe for use from the UI goroutine and one background run.
type Session struct {
	mu      sync.Mutex
	path    string
	ledger  *categorizer.Ledger
	dirty   bool
	running bool
	logger  *zap.Logger
}

// OpenSession loads the ledger at path. A missing file starts an empty ledger.
func OpenSession(path string, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ledger, err := categorizer.LoadLedger(path)
	if err != nil {
		return nil, err
	}
	logger.Info("Ledger loaded", zap.String("path", path), zap.Int("records", ledger.Len()))
	return &Session{path: path, ledger: ledger, logger: logger}, nil
}

// Path returns the ledger file path.
func (s *Session) Path() string {
	return s.path
}

// Dirty reports whether there are unsaved edits.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Len returns the number of records in the ledger.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Len()
}

// Records returns the records matching f in ledger order.
func (s *Session) Records(f Filter) []categorizer.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []categorizer.Record
	for _, rec := range s.ledger.Records() {
		if f.match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Counts returns the number of records per provenance.
func (s *Session) Counts() map[categorizer.Provenance]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[categorizer.Provenance]int)
	for _, rec := range s.ledger.Records() {
		counts[rec.Source]++
	}
	return counts
}

// Override sets the category and group of name and marks the record Manual.
// A blank group keeps the current one. Names not yet in the ledger are added.
func (s *Session) Override(name string, category categorizer.Category, group string) (categorizer.Record, error) {
	category = categorizer.Category(strings.TrimSpace(string(category)))
	if category == "" {
		return categorizer.Record{}, errors.New("category is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.ledger.Get(name)
	if !ok {
		rec = categorizer.Record{Name: categorizer.NormalizeText(name)}
	}
	rec.Category = category
	if g := strings.TrimSpace(group); g != "" {
		rec.ParentGroup = g
	}
	if rec.ParentGroup == "" {
		rec.ParentGroup = rec.Name
	}
	rec.Source = categorizer.ProvenanceManual
	if err := s.ledger.Put(rec); err != nil {
		return categorizer.Record{}, err
	}
	s.dirty = true
	s.logger.Info("Record confirmed", zap.String("name", rec.Name),
		zap.String("category", string(rec.Category)), zap.String("group", rec.ParentGroup))
	return rec, nil
}

// Reopen removes name from the ledger so the next run classifies it again.
func (s *Session) Reopen(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ledger.Delete(name) {
		return fmt.Errorf("%w for %q", ErrNotFound, name)
	}
	s.dirty = true
	s.logger.Info("Record reopened", zap.String("name", name))
	return nil
}

// Save writes the ledger atomically.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ledger.Save(s.path); err != nil {
		return err
	}
	s.dirty = false
	s.logger.Info("Ledger saved", zap.String("path", s.path), zap.Int("records", s.ledger.Len()))
	return nil
}

// Reload discards unsaved edits and rereads the ledger file.
func (s *Session) Reload() error {
	ledger, err := categorizer.LoadLedger(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = ledger
	s.dirty = false
	return nil
}

// Run reconciles names through r, which must write to the session's ledger
// path, and adopts the resulting ledger.
func (s *Session) Run(ctx context.Context, r Runner, names []string) (categorizer.RunSummary, error) {
	s.mu.Lock()
	switch {
	case s.running:
		s.mu.Unlock()
		return categorizer.RunSummary{}, ErrBusy
	case s.dirty:
		s.mu.Unlock()
		return categorizer.RunSummary{}, ErrUnsavedEdits
	}
	s.running = true
	s.mu.Unlock()

	ledger, summary, err := r.Run(ctx, names)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if err != nil {
		return summary, err
	}
	s.ledger = ledger
	return summary, nil
}
