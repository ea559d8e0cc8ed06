// Package datasource detects the kind of a row source and reads rows from
// SQLite databases.
package datasource

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeSQLite is a SQLite database file
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeJSON is a file holding one JSON array of rows
	SourceTypeJSON SourceType = "json"
	// SourceTypeJSONL is a JSON Lines file, one row per line
	SourceTypeJSONL SourceType = "jsonl"
)

// sqliteMagic is the header every SQLite 3 database starts with.
var sqliteMagic = []byte("SQLite format 3\x00")

// DataSource describes a row source on disk.
type DataSource struct {
	// Type identifies the source type
	Type SourceType `json:"type"`
	// Path is the absolute path to the source file
	Path string `json:"path"`
	// Table is the table to read rows from (SQLite only)
	Table string `json:"table,omitempty"`
	// ModTime is the last modification time of the source
	ModTime time.Time `json:"mod_time"`
	// Size is the file size in bytes
	Size int64 `json:"size"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	name := s.Path
	if s.Table != "" {
		name += "#" + s.Table
	}
	return fmt.Sprintf("%s (%s, %d bytes, mod=%s)", name, s.Type, s.Size, s.ModTime.Format(time.RFC3339))
}

// Detect stats path and works out its source type from the extension,
// falling back to sniffing the file header. A path of the form
// "file.db#table" selects a table.
func Detect(path string) (DataSource, error) {
	table := ""
	if i := strings.LastIndex(path, "#"); i > 0 {
		path, table = path[:i], path[i+1:]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return DataSource{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return DataSource{}, fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return DataSource{}, fmt.Errorf("source %s is a directory", abs)
	}

	src := DataSource{Path: abs, Table: table, ModTime: info.ModTime(), Size: info.Size()}
	switch strings.ToLower(filepath.Ext(abs)) {
	case ".db", ".sqlite", ".sqlite3":
		src.Type = SourceTypeSQLite
	case ".jsonl", ".ndjson":
		src.Type = SourceTypeJSONL
	case ".json":
		src.Type = SourceTypeJSON
	default:
		src.Type, err = sniff(abs)
		if err != nil {
			return DataSource{}, err
		}
	}
	if table != "" && src.Type != SourceTypeSQLite {
		return DataSource{}, fmt.Errorf("source %s: a table can only be selected in a SQLite database", abs)
	}
	return src, nil
}

func sniff(path string) (SourceType, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read source header: %w", err)
	}
	head = head[:n]
	if bytes.HasPrefix(head, sqliteMagic) {
		return SourceTypeSQLite, nil
	}
	head = bytes.TrimLeft(bytes.TrimPrefix(head, []byte{0xEF, 0xBB, 0xBF}), " \t\r\n")
	if bytes.HasPrefix(head, []byte("[")) {
		return SourceTypeJSON, nil
	}
	return SourceTypeJSONL, nil
}
