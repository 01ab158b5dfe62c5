package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantHeaders []string
		wantRows    []ImportRow
	}{
		{
			name:        "basic",
			input:       "name,email\nAnn,ann@x.com\n",
			wantHeaders: []string{"name", "email"},
			wantRows:    []ImportRow{{"name": "Ann", "email": "ann@x.com"}},
		},
		{
			name:        "blank lines dropped",
			input:       "\n\nname,email\n\nAnn,a@x.com\n   \nBen,b@x.com",
			wantHeaders: []string{"name", "email"},
			wantRows: []ImportRow{
				{"name": "Ann", "email": "a@x.com"},
				{"name": "Ben", "email": "b@x.com"},
			},
		},
		{
			name:        "trim and strip quotes",
			input:       "\" name \", email\r\n \"Ann\" ,  a@x.com \r\n",
			wantHeaders: []string{"name", "email"},
			wantRows:    []ImportRow{{"name": "Ann", "email": "a@x.com"}},
		},
		{
			name:        "missing trailing columns become empty",
			input:       "name,email,pet_name\nAnn",
			wantHeaders: []string{"name", "email", "pet_name"},
			wantRows:    []ImportRow{{"name": "Ann", "email": "", "pet_name": ""}},
		},
		{
			name:        "extra cells ignored",
			input:       "name\nAnn,extra,more",
			wantHeaders: []string{"name"},
			wantRows:    []ImportRow{{"name": "Ann"}},
		},
		{
			name:        "header only",
			input:       "name,email",
			wantHeaders: []string{"name", "email"},
			wantRows:    []ImportRow{},
		},
		{
			name:        "quoted comma splits the cell",
			input:       "name,address,pet_name\nAnn,\"1 Main St, Town\",Rex",
			wantHeaders: []string{"name", "address", "pet_name"},
			wantRows:    []ImportRow{{"name": "Ann", "address": "1 Main St", "pet_name": "Town"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCSV(tt.input)
			if err != nil {
				t.Fatalf("ParseCSV error: %v", err)
			}
			assertJSONEqual(t, tt.wantHeaders, got.Headers)
			assertJSONEqual(t, tt.wantRows, got.Rows)
		})
	}
}

func TestParseCSV_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "\n\n", "  \n\t\n"} {
		_, err := ParseCSV(input)
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("ParseCSV(%q) error = %v, want *ParseError", input, err)
		}
		if perr.Reason != "empty input" || !errors.Is(err, ErrEmptyInput) {
			t.Errorf("ParseCSV(%q) = %v", input, err)
		}
	}
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"bom stripped", append([]byte{0xEF, 0xBB, 0xBF}, "name\nAnn"...), "name\nAnn"},
		{"no bom", []byte("name"), "name"},
		{"partial bom kept", []byte{0xEF, 0xBB, 'a'}, "?a"},
		{"invalid utf8 replaced", []byte("Zo\xe9"), "Zo?"},
		{"valid utf8 kept", []byte("Zoë"), "Zoë"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeText(tt.input); got != tt.want {
				t.Errorf("decodeText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadLimited(t *testing.T) {
	data, err := readLimited(strings.NewReader("12345"), 5)
	if err != nil || string(data) != "12345" {
		t.Fatalf("readLimited at limit = %q, %v", data, err)
	}

	_, err = readLimited(strings.NewReader("123456"), 5)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("readLimited over limit error = %v, want ErrFileTooLarge", err)
	}
}

func TestSourceForFile(t *testing.T) {
	tests := []struct {
		name    string
		want    Source
		wantErr bool
	}{
		{"clients.csv", SourceCSV, false},
		{"CLIENTS.CSV", SourceCSV, false},
		{"export.xlsx", SourceSpreadsheet, false},
		{"notes.pdf", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		got, err := SourceForFile(tt.name)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("SourceForFile(%q) = %q, %v", tt.name, got, err)
		}
		if err != nil && !errors.Is(err, ErrUnsupportedFile) {
			t.Errorf("SourceForFile(%q) error should wrap ErrUnsupportedFile", tt.name)
		}
	}
}

func TestReadSpreadsheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	cells := map[string]string{
		"A1": "name", "B1": "email", "C1": "pet_name",
		"A2": "Ann", "B2": "ann@x.com", "C2": "Rex",
		// row 3 left blank
		"A4": "Ben",
	}
	for cell, v := range cells {
		if err := f.SetCellValue("Sheet1", cell, v); err != nil {
			t.Fatalf("SetCellValue: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	got, err := ReadSpreadsheet(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadSpreadsheet: %v", err)
	}
	assertJSONEqual(t, []string{"name", "email", "pet_name"}, got.Headers)
	assertJSONEqual(t, []ImportRow{
		{"name": "Ann", "email": "ann@x.com", "pet_name": "Rex"},
		{"name": "Ben", "email": "", "pet_name": ""},
	}, got.Rows)
}

func TestReadSpreadsheet_Errors(t *testing.T) {
	_, err := ReadSpreadsheet(strings.NewReader("not a zip"))
	var perr *ParseError
	if !errors.As(err, &perr) || perr.Reason != "invalid spreadsheet" {
		t.Errorf("garbage input error = %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	if _, err := ReadSpreadsheet(bytes.NewReader(buf.Bytes())); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("empty workbook error = %v, want ErrEmptyInput", err)
	}
}

func TestImportRowUnmarshalJSON(t *testing.T) {
	var rows []ImportRow
	input := `[{"name":"Ann","pet_age":5,"pet_weight":12.5,"vip":true,"phone":null}]`
	if err := json.Unmarshal([]byte(input), &rows); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	assertJSONEqual(t, []ImportRow{{"name": "Ann", "pet_age": "5", "pet_weight": "12.5", "vip": "true", "phone": ""}}, rows)

	input = `[{"name":"Ann","email":"ann@x.com","tags":["vip", "new"],"address":{"street":"1 Main"}}]`
	if err := json.Unmarshal([]byte(input), &rows); err != nil {
		t.Fatalf("Unmarshal with nested values: %v", err)
	}
	assertJSONEqual(t, []ImportRow{{
		"name":    "Ann",
		"email":   "ann@x.com",
		"tags":    `["vip","new"]`,
		"address": `{"street":"1 Main"}`,
	}}, rows)
}

func TestTemplateCSV(t *testing.T) {
	lines := strings.Split(string(TemplateCSV()), "\n")
	if len(lines) != 4 {
		t.Fatalf("template has %d lines, want header + 3 rows", len(lines))
	}
	if lines[0] != "name,email,phone,address,pet_name,pet_breed,pet_age,pet_notes" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[0] != strings.Join(TemplateColumns, ",") {
		t.Error("TemplateColumns out of sync with template header")
	}
	if !bytes.Equal(TemplateCSV(), TemplateCSV()) {
		t.Error("template is not stable")
	}
	if TemplateFileName != "barkbook_import_template.csv" {
		t.Errorf("TemplateFileName = %q", TemplateFileName)
	}
}

func assertJSONEqual(t *testing.T, want, got any) {
	t.Helper()
	w, _ := json.Marshal(want)
	g, _ := json.Marshal(got)
	if !bytes.Equal(w, g) {
		t.Errorf("got %s, want %s", g, w)
	}
}

func TestReadCSV(t *testing.T) {
	got, err := ReadCSV(strings.NewReader("\xEF\xBB\xBFname,email\nZo\xe9,z@x.com\n"), 64)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	assertJSONEqual(t, []ImportRow{{"name": "Zo?", "email": "z@x.com"}}, got.Rows)

	if _, err := ReadCSV(strings.NewReader("name\nAnn\n"), 4); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("ReadCSV over limit error = %v, want ErrFileTooLarge", err)
	}
}
