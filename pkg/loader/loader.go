// Package loader reads raw grid rows from JSON, JSONL and SQLite sources.
package loader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/treegrid/pkg/model"
)

// DefaultMaxBufferSize is the default buffer size for the line reader (10MB).
const DefaultMaxBufferSize = 1024 * 1024 * 10

// ParseOptions configures the behavior of ParseRows.
type ParseOptions struct {
	// WarningHandler is called with warning messages (e.g., malformed JSON).
	// If nil, warnings are printed to os.Stderr.
	WarningHandler func(string)

	// BufferSize sets the maximum line size (in bytes) to read at once.
	// Lines longer than this are skipped with a warning.
	// If 0, uses DefaultMaxBufferSize (10MB).
	BufferSize int

	// RowFilter optionally filters parsed rows. Return true to include.
	// When nil, all rows are included.
	RowFilter func(model.Row) bool
}

func (o ParseOptions) warn() func(string) {
	if o.WarningHandler != nil {
		return o.WarningHandler
	}
	if os.Getenv("TG_QUIET") == "1" {
		return func(string) {}
	}
	return func(msg string) {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
	}
}

// LoadRowsFromFile reads rows from a JSON or JSONL file.
func LoadRowsFromFile(path string) ([]model.Row, error) {
	return LoadRowsFromFileWithOptions(path, ParseOptions{})
}

// LoadRowsFromFileWithOptions reads rows from a file with custom options.
func LoadRowsFromFileWithOptions(path string, opts ParseOptions) ([]model.Row, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no rows found at %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rows file: %w", err)
	}
	defer file.Close()

	return ParseRows(file, opts)
}

// ParseRows parses rows from r. Content starting with '[' is read as one
// JSON array; anything else as JSON Lines, one object per line. Handles
// UTF-8 BOM stripping and skips malformed lines with a warning.
func ParseRows(r io.Reader, opts ParseOptions) ([]model.Row, error) {
	maxCapacity := opts.BufferSize
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxBufferSize
	}
	reader := bufio.NewReaderSize(r, maxCapacity)

	if err := skipBOM(reader); err != nil {
		return nil, err
	}
	first, err := peekNonSpace(reader)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading rows: %w", err)
	}
	if first == '[' {
		return parseArray(reader, opts)
	}
	return parseLines(reader, maxCapacity, opts)
}

func parseArray(r io.Reader, opts ParseOptions) ([]model.Row, error) {
	var raw []map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("error decoding JSON array: %w", err)
	}
	warn := opts.warn()
	rows := make([]model.Row, 0, len(raw))
	for i, m := range raw {
		if m == nil {
			warn(fmt.Sprintf("skipping null element %d", i))
			continue
		}
		row := model.Row(m)
		if opts.RowFilter != nil && !opts.RowFilter(row) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseLines(reader *bufio.Reader, maxCapacity int, opts ParseOptions) ([]model.Row, error) {
	warn := opts.warn()
	var rows []model.Row
	lineNum := 0
	for {
		lineNum++
		// ReadLine returns a single line, not including the end-of-line bytes.
		// If the line was too long for the buffer then isPrefix is set and the
		// beginning of the line is returned.
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading rows stream at line %d: %w", lineNum, err)
		}

		if isPrefix {
			// Line too long. Discard the rest of the line.
			warn(fmt.Sprintf("skipping line %d: line too long (exceeds %d bytes)", lineNum, maxCapacity))
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err == io.EOF {
					break
				}
				if err != nil {
					return nil, fmt.Errorf("error skipping long line at line %d: %w", lineNum, err)
				}
			}
			continue
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var row model.Row
		if err := json.Unmarshal(line, &row); err != nil {
			// Skip malformed lines but warn
			warn(fmt.Sprintf("skipping malformed JSON on line %d: %v", lineNum, err))
			continue
		}
		if row == nil {
			warn(fmt.Sprintf("skipping null row on line %d", lineNum))
			continue
		}
		if opts.RowFilter != nil && !opts.RowFilter(row) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// skipBOM drops a leading UTF-8 Byte Order Mark.
func skipBOM(r *bufio.Reader) error {
	b, err := r.Peek(3)
	if err != nil && err != io.EOF {
		return fmt.Errorf("error reading rows: %w", err)
	}
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = r.Discard(3)
	}
	return nil
}

// peekNonSpace discards leading whitespace and returns the next byte
// without consuming it.
func peekNonSpace(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			_, _ = r.Discard(1)
		default:
			return b[0], nil
		}
	}
}
