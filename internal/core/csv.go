package core

// csv.go turns uploaded bytes into ImportRows.
//
// The CSV dialect is deliberately naive: lines are split on '\n', cells on
// ',', and every '"' is dropped. Quoted cells containing commas are NOT
// supported and will shift the remaining columns of that line.

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParsedFile is the header row plus every data row of an input file.
type ParsedFile struct {
	Headers []string
	Rows    []ImportRow
}

// ParseCSV splits raw text into a header row and data rows.
//
// Blank lines are dropped and the first remaining line is the header.
// A row shorter than the header maps the missing columns to "", extra
// cells are ignored, and a repeated header name keeps the last column.
func ParseCSV(text string) (*ParsedFile, error) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, &ParseError{Reason: "empty input", Err: ErrEmptyInput}
	}

	headers := splitCSVLine(lines[0])
	rows := make([]ImportRow, 0, len(lines)-1)
	for _, line := range lines[1:] {
		rows = append(rows, zipRow(headers, splitCSVLine(line)))
	}

	return &ParsedFile{Headers: headers, Rows: rows}, nil
}

func splitCSVLine(line string) []string {
	cells := strings.Split(line, ",")
	for i, c := range cells {
		cells[i] = cleanCell(c)
	}
	return cells
}

// cleanCell trims whitespace (including a trailing '\r') and strips quotes.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, `"`, "")
	return strings.TrimSpace(s)
}

func zipRow(headers, values []string) ImportRow {
	row := make(ImportRow, len(headers))
	for i, h := range headers {
		if i < len(values) {
			row[h] = values[i]
		} else {
			row[h] = ""
		}
	}
	return row
}

// decodeText strips a UTF-8 byte order mark and replaces invalid UTF-8 with '?'.
// Spreadsheet exports from Windows tools commonly carry both.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	return string(bytes.ToValidUTF8(data, []byte("?")))
}

// readLimited reads r fully, failing with ErrFileTooLarge past maxBytes.
// A non-positive maxBytes disables the limit.
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, maxBytes)
	}
	return data, nil
}

// ReadCSV reads at most maxBytes from r and parses it as CSV after dropping a
// byte order mark and replacing invalid UTF-8.
func ReadCSV(r io.Reader, maxBytes int64) (*ParsedFile, error) {
	data, err := readLimited(r, maxBytes)
	if err != nil {
		return nil, err
	}
	return ParseCSV(decodeText(data))
}

// SourceForFile picks the reader for an uploaded file by its extension.
func SourceForFile(fileName string) (Source, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt":
		return SourceCSV, nil
	case ".xlsx":
		return SourceSpreadsheet, nil
	}
	return "", fmt.Errorf("%w: %q (expected .csv or .xlsx)", ErrUnsupportedFile, filepath.Ext(fileName))
}

// ParseFile decodes an uploaded file according to source.
func ParseFile(source Source, data []byte) (*ParsedFile, error) {
	switch source {
	case SourceCSV:
		return ParseCSV(decodeText(data))
	case SourceSpreadsheet:
		return ReadSpreadsheet(bytes.NewReader(data))
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, source)
}
