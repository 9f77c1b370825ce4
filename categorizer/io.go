package categorizer

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// InputParseOptions allows callers to choose which column holds entity names.
type InputParseOptions struct {
	// NameColumn is a header name or a 1-based "#index".
	NameColumn string
	// Candidates overrides DefaultNameColumns for auto-detection.
	Candidates []string
}

// InputTable is a parsed input file.
type InputTable struct {
	// Columns holds the header of structured files, in file order.
	Columns    []string
	NameColumn string
	Entities   []Entity
}

// Names returns the normalized entity names in input order.
func (t InputTable) Names() []string {
	out := make([]string, 0, len(t.Entities))
	for _, e := range t.Entities {
		out = append(out, e.Name)
	}
	return out
}

// ParseInput reads a CSV, TSV or plain-text entity list. A missing file is
// reported as ErrMissingInput.
func ParseInput(path string, opts InputParseOptions) (InputTable, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return InputTable{}, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return InputTable{}, fmt.Errorf("stat input: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseDelimitedInput(path, ',', opts)
	case ".tsv":
		return parseDelimitedInput(path, '\t', opts)
	default:
		return parsePlainTextInput(path)
	}
}

func parsePlainTextInput(path string) (InputTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return InputTable{}, fmt.Errorf("open text file: %w", err)
	}
	defer f.Close()
	var table InputTable
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	for scanner.Scan() {
		name := NormalizeText(cleanCell(scanner.Text()))
		if name == "" {
			continue
		}
		table.Entities = append(table.Entities, Entity{Name: name})
	}
	if err := scanner.Err(); err != nil {
		return InputTable{}, fmt.Errorf("scan text file: %w", err)
	}
	return table, nil
}

func parseDelimitedInput(path string, comma rune, opts InputParseOptions) (InputTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return InputTable{}, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return readDelimited(f, comma, opts)
}

func readDelimited(r io.Reader, comma rune, opts InputParseOptions) (InputTable, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return InputTable{}, fmt.Errorf("read input: %w", err)
	}
	if len(rows) == 0 {
		return InputTable{}, errors.New("empty input file")
	}
	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = cleanCell(cell)
	}
	candidates := opts.Candidates
	if len(candidates) == 0 {
		candidates = DefaultNameColumns
	}
	col, err := pickColumn(header, opts.NameColumn, candidates)
	if err != nil {
		return InputTable{}, err
	}
	if col.Index < 0 {
		return InputTable{}, errors.New("no usable name column found")
	}
	table := InputTable{}
	start := 0
	if col.FromHeader {
		start = 1
		table.Columns = header
		table.NameColumn = header[col.Index]
	}
	for _, row := range rows[start:] {
		if col.Index >= len(row) {
			continue
		}
		name := NormalizeText(cleanCell(row[col.Index]))
		if name == "" {
			continue
		}
		entity := Entity{Name: name}
		if col.FromHeader {
			entity.Attributes = make(map[string]string, len(header))
			for i, h := range header {
				if i < len(row) && h != "" {
					entity.Attributes[h] = cleanCell(row[i])
				}
			}
		}
		table.Entities = append(table.Entities, entity)
	}
	return table, nil
}

// WriteEnriched writes the input rows with the ledger's parent group and
// category appended. Entities missing from the ledger get blank cells.
func WriteEnriched(w io.Writer, table InputTable, ledger *Ledger) error {
	mapping := ledger.Mapping()
	header := append([]string(nil), table.Columns...)
	if len(header) == 0 {
		header = []string{ColumnName}
	}
	header = append(header, ColumnParentGroup, ColumnCategory)

	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, e := range table.Entities {
		var row []string
		if len(table.Columns) == 0 {
			row = append(row, e.Name)
		} else {
			for _, col := range table.Columns {
				row = append(row, e.Attributes[col])
			}
		}
		rec, ok := mapping[KeyOf(e.Name)]
		if ok {
			row = append(row, rec.ParentGroup, string(rec.Category))
		} else {
			row = append(row, "", "")
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush enriched: %w", err)
	}
	return nil
}

func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "\ufeff")
	return v
}
