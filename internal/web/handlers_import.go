package web

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/barkbook/internal/core"
	"github.com/JonMunkholm/barkbook/internal/logging"
)

const (
	// multipartOverhead is allowed on top of IMPORT_MAX_FILE_SIZE for form
	// boundaries and fields, so an oversized file is reported by the reader
	// with a proper size error.
	multipartOverhead = 1 << 20

	// maxFormMemory is how much of a multipart form is held in memory before
	// spilling to temporary files.
	maxFormMemory = 8 << 20
)

type migrateRequest struct {
	Data []core.ImportRow `json:"data"`
}

type migrateResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Results core.ImportResult `json:"results"`
	RunID   string            `json:"run_id"`
	DryRun  bool              `json:"dry_run,omitempty"`
}

// handleMigrate imports rows already parsed by the client:
// {"data": [{"name": ..., "email": ..., "pet_name": ...}, ...]}.
func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)

	var req migrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			respondError(w, r, core.ErrNoRows)
			return
		}
		respondError(w, r, bodyError(err, errInvalidBody))
		return
	}

	org := core.OrganizationFromContext(r.Context())
	dryRun := queryBool(r, "dry_run")

	run, err := s.service.ImportRows(r.Context(), org, req.Data, dryRun)
	if err != nil {
		s.respondImportError(w, r, err, "Migration failed")
		return
	}

	logging.FromContext(r.Context()).Info("migration completed",
		"run_id", run.ID,
		"rows", run.Result.TotalRows,
		"clients_created", run.Result.ClientsCreated,
		"pets_created", run.Result.PetsCreated,
		"skipped", run.Result.Skipped,
		"errors", len(run.Result.Errors),
	)
	writeJSON(w, http.StatusOK, migrateResponse{
		Success: true,
		Message: "Migration completed successfully",
		Results: run.Result,
		RunID:   run.ID,
		DryRun:  run.DryRun,
	})
}

// handleUpload imports a multipart "file" field (.csv or .xlsx). dry_run=true
// reports what would be created without writing.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.formFile(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer file.Close()

	run, err := s.service.ImportFile(r.Context(), core.FileImport{
		OrganizationID: core.OrganizationFromContext(r.Context()),
		FileName:       header.Filename,
		Reader:         file,
		DryRun:         formBool(r, "dry_run"),
	})
	if err != nil {
		s.respondImportError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handlePreview reports a file's column mapping and first rows without importing.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.formFile(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer file.Close()

	preview, err := s.service.Preview(r.Context(), header.Filename, file)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return nil, nil, bodyError(err, errNoFile)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errors.Join(errNoFile, err)
	}
	return file, header, nil
}

// respondImportError adds Retry-After when the limiter turned the import away.
func (s *Server) respondImportError(w http.ResponseWriter, r *http.Request, err error, serverHeadline string) {
	if errors.Is(err, core.ErrTooManyImports) {
		retryAfter(w, int(s.cfg.Import.MaxWaitTime.Seconds()))
	}
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		serverHeadline = ""
	}
	writeError(w, r, err, status, serverHeadline)
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

func formBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.FormValue(name))
	return b
}
