package categorizer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Ledger column names. The header is a stable contract with downstream readers.
const (
	ColumnName        = "Original_Name"
	ColumnParentGroup = "Parent_Group"
	ColumnCategory    = "Category"
	ColumnSource      = "Source"
)

var ledgerHeader = []string{ColumnName, ColumnParentGroup, ColumnCategory, ColumnSource}

// legacy header names accepted on load
var ledgerColumnAliases = map[string]string{
	"original_name":     ColumnName,
	"original_custname": ColumnName,
	"parent_group":      ColumnParentGroup,
	"category":          ColumnCategory,
	"tag":               ColumnCategory,
	"source":            ColumnSource,
	"note":              ColumnSource,
}

// Ledger is the persisted mapping from entity name to classification. It holds
// exactly one record per entity key. A Ledger is not safe for concurrent use.
type Ledger struct {
	records map[EntityKey]Record
	dropped int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{records: make(map[EntityKey]Record)}
}

// LoadLedger reads the ledger at path. A missing file yields an empty ledger.
func LoadLedger(path string) (*Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewLedger(), nil
		}
		return nil, fmt.Errorf("open ledger %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	l, err := ReadLedger(f)
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", filepath.Base(path), err)
	}
	return l, nil
}

// ReadLedger decodes a ledger from CSV. Rows with a blank name are skipped and
// later duplicates of a key are dropped; see Dropped.
func ReadLedger(r io.Reader) (*Ledger, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	l := NewLedger()
	if len(rows) == 0 {
		return l, nil
	}
	cols := make(map[string]int)
	for i, cell := range rows[0] {
		if canonical, ok := ledgerColumnAliases[strings.ToLower(cleanCell(cell))]; ok {
			if _, taken := cols[canonical]; !taken {
				cols[canonical] = i
			}
		}
	}
	if _, ok := cols[ColumnName]; !ok {
		return nil, fmt.Errorf("missing %s column", ColumnName)
	}
	cell := func(row []string, col string) string {
		idx, ok := cols[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return cleanCell(row[idx])
	}
	for _, row := range rows[1:] {
		name := NormalizeText(cell(row, ColumnName))
		if name == "" {
			continue
		}
		rec := Record{
			Name:        name,
			ParentGroup: cell(row, ColumnParentGroup),
			Category:    Category(cell(row, ColumnCategory)),
			Source:      ParseProvenance(cell(row, ColumnSource)),
		}
		if !l.Insert(rec) {
			l.dropped++
		}
	}
	return l, nil
}

// Dropped reports how many duplicate rows were discarded while reading.
func (l *Ledger) Dropped() int {
	return l.dropped
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	return len(l.records)
}

// Get returns the record for name.
func (l *Ledger) Get(name string) (Record, bool) {
	rec, ok := l.records[KeyOf(name)]
	return rec, ok
}

// Has reports whether name already has a record.
func (l *Ledger) Has(name string) bool {
	_, ok := l.records[KeyOf(name)]
	return ok
}

// Insert adds rec when its key is absent and reports whether it did. Existing
// records are never replaced.
func (l *Ledger) Insert(rec Record) bool {
	rec.Name = NormalizeText(rec.Name)
	if rec.Name == "" {
		return false
	}
	key := rec.Key()
	if _, exists := l.records[key]; exists {
		return false
	}
	l.records[key] = rec
	return true
}

// Put inserts or replaces the record for rec's key. Only operator actions use it.
func (l *Ledger) Put(rec Record) error {
	rec.Name = NormalizeText(rec.Name)
	if rec.Name == "" {
		return errors.New("record name is empty")
	}
	l.records[rec.Key()] = rec
	return nil
}

// Delete removes the record for name so the next run classifies it again.
func (l *Ledger) Delete(name string) bool {
	key := KeyOf(name)
	if _, ok := l.records[key]; !ok {
		return false
	}
	delete(l.records, key)
	return true
}

// Unresolved returns the names without a ledger record, in input order and
// de-duplicated by key.
func (l *Ledger) Unresolved(names []string) []string {
	seen := make(map[EntityKey]struct{}, len(names))
	var out []string
	for _, name := range names {
		name = NormalizeText(name)
		if name == "" {
			continue
		}
		key := KeyOf(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := l.records[key]; ok {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Merge inserts new results with defaults filled and returns how many were
// added. Results for keys already present are ignored, whatever their
// provenance.
func (l *Ledger) Merge(results []Record) int {
	added := 0
	for _, rec := range results {
		if l.Insert(rec.withDefaults()) {
			added++
		}
	}
	return added
}

// Records returns a copy of all records in persisted order: provenance
// priority, then key.
func (l *Ledger) Records() []Record {
	out := make([]Record, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := a.Source.Rank(), b.Source.Rank(); ra != rb {
			return ra < rb
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if ka, kb := a.Key(), b.Key(); ka != kb {
			return ka < kb
		}
		return a.Name < b.Name
	})
	return out
}

// Mapping returns the one-to-one name to record join used by downstream
// consumers.
func (l *Ledger) Mapping() map[EntityKey]Record {
	out := make(map[EntityKey]Record, len(l.records))
	for key, rec := range l.records {
		out[key] = rec.withDefaults()
	}
	return out
}

// Write encodes the ledger as CSV in persisted order, filling blank categories
// and groups.
func (l *Ledger) Write(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ledgerHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range l.Records() {
		rec = rec.withDefaults()
		row := []string{rec.Name, rec.ParentGroup, string(rec.Category), string(rec.Source)}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row %q: %w", rec.Name, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return nil
}

// Save rewrites the whole ledger at path. The previous file stays intact until
// the new one is complete.
func (l *Ledger) Save(path string) error {
	var buf bytes.Buffer
	if err := l.Write(&buf); err != nil {
		return err
	}
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}
