package core

import (
	"context"
	"io"
)

// previewSampleRows is how many data rows a preview echoes back.
const previewSampleRows = 5

// Preview describes what an upload contains without touching the datastore.
type Preview struct {
	FileName   string           `json:"file_name"`
	Source     Source           `json:"source"`
	Headers    []string         `json:"headers"`
	Recognized map[string]Field `json:"recognized"`
	Unknown    []string         `json:"unknown"`
	TotalRows  int              `json:"total_rows"`
	Skippable  int              `json:"skippable"`
	WithPets   int              `json:"with_pets"`
	Sample     []ImportRow      `json:"sample"`
}

// Preview parses an upload and reports its column mapping, row counts and the
// first rows. Nothing is written.
func (s *Service) Preview(ctx context.Context, fileName string, r io.Reader) (*Preview, error) {
	source, err := SourceForFile(fileName)
	if err != nil {
		return nil, err
	}
	data, err := readLimited(r, s.cfg.MaxFileSize)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseFile(source, data)
	if err != nil {
		return nil, err
	}

	p := BuildPreview(parsed)
	p.FileName = fileName
	p.Source = source
	return p, nil
}

// BuildPreview summarizes a parsed file.
func BuildPreview(parsed *ParsedFile) *Preview {
	p := &Preview{
		Headers:    parsed.Headers,
		Recognized: make(map[string]Field),
		Unknown:    []string{},
		TotalRows:  len(parsed.Rows),
	}

	for _, h := range parsed.Headers {
		if f, ok := LookupField(h); ok {
			p.Recognized[h] = f
		} else {
			p.Unknown = append(p.Unknown, h)
		}
	}

	for i, row := range parsed.Rows {
		c := Normalize(row, i, "")
		switch {
		case c.Skippable:
			p.Skippable++
		case c.Pet != nil:
			p.WithPets++
		}
	}

	n := min(previewSampleRows, len(parsed.Rows))
	p.Sample = parsed.Rows[:n]
	return p
}
