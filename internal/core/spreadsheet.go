package core

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadSpreadsheet reads the first worksheet of an .xlsx workbook with the
// same row semantics as ParseCSV: blank rows dropped, first row is the header,
// cells trimmed and quote-stripped, short rows padded with "".
func ReadSpreadsheet(r io.Reader) (*ParsedFile, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Reason: "invalid spreadsheet", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Reason: "empty input", Err: ErrEmptyInput}
	}

	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("read sheet %q", sheets[0]), Err: err}
	}

	var lines [][]string
	for _, cells := range raw {
		cleaned := make([]string, len(cells))
		blank := true
		for i, c := range cells {
			cleaned[i] = cleanCell(c)
			if cleaned[i] != "" {
				blank = false
			}
		}
		if !blank {
			lines = append(lines, cleaned)
		}
	}
	if len(lines) == 0 {
		return nil, &ParseError{Reason: "empty input", Err: ErrEmptyInput}
	}

	headers := lines[0]
	for len(headers) > 0 && strings.TrimSpace(headers[len(headers)-1]) == "" {
		headers = headers[:len(headers)-1]
	}

	rows := make([]ImportRow, 0, len(lines)-1)
	for _, cells := range lines[1:] {
		rows = append(rows, zipRow(headers, cells))
	}
	return &ParsedFile{Headers: headers, Rows: rows}, nil
}
