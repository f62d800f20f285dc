package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// uploadFile extracts the uploaded file from a multipart request, with the
// configured size cap applied to the whole body.
func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading upload: %s", errBadRequest, err)
	}
	return file, header, nil
}

// @Summary Analyze upload
// @Description Parses the file and proposes table names, column types and previews without writing anything
// @Accept multipart/form-data
// @Produce json
// @Param db path string true "Database name"
// @Param file formData file true "Excel, CSV or PDF file"
// @Success 200 {object} ingest.FileAnalysis
// @Failure 400 {object} errorResponse
// @Router /api/v1/databases/{db}/uploads/analyze [post]
func (s *Server) handleAnalyzeUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.uploadFile(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Close()

	analysis, err := s.processor.Analyze(file, header.Filename)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, analysis)
}

// columnTypeOverrides parses the optional column_types form field: a JSON
// object mapping sanitized column names to INTEGER, REAL, TEXT or DATE.
func columnTypeOverrides(r *http.Request) (map[string]string, error) {
	raw := r.FormValue("column_types")
	if raw == "" {
		return nil, nil
	}
	var overrides map[string]string
	if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
		return nil, fmt.Errorf("%w: column_types: %s", errBadRequest, err)
	}
	for col, typ := range overrides {
		switch strings.ToUpper(strings.TrimSpace(typ)) {
		case "INTEGER", "REAL", "TEXT", "DATE":
		default:
			return nil, fmt.Errorf("%w: column_types[%s]: unknown type %q", errBadRequest, col, typ)
		}
	}
	return overrides, nil
}

// @Summary Ingest upload
// @Description Stores the file and creates one table per sheet in the background; poll the returned operation for progress
// @Accept multipart/form-data
// @Produce json
// @Param db path string true "Database name"
// @Param file formData file true "Excel, CSV or PDF file"
// @Param column_types formData string false "JSON map of column name to INTEGER, REAL or TEXT"
// @Success 202 {object} map[string]string
// @Failure 400 {object} errorResponse
// @Router /api/v1/databases/{db}/uploads [post]
func (s *Server) handleCommitUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.uploadFile(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Close()

	overrides, err := columnTypeOverrides(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Spool the upload to disk so ingestion can outlive the request.
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		writeError(w, r, fmt.Errorf("preparing upload dir: %w", err))
		return
	}
	spool := filepath.Join(s.uploadDir, uuid.NewString()+filepath.Ext(header.Filename))
	dst, err := os.Create(spool)
	if err != nil {
		writeError(w, r, fmt.Errorf("spooling upload: %w", err))
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(spool)
		writeError(w, r, fmt.Errorf("spooling upload: %w", err))
		return
	}
	if err := dst.Close(); err != nil {
		os.Remove(spool)
		writeError(w, r, fmt.Errorf("spooling upload: %w", err))
		return
	}

	dbName, filename := r.PathValue("db"), header.Filename
	id := s.tasks.Go("ingest_file", func(progress func(stage string, percent int, message string)) error {
		defer os.Remove(spool)
		f, err := os.Open(spool)
		if err != nil {
			return fmt.Errorf("reading spooled upload: %w", err)
		}
		defer f.Close()

		results, err := s.processor.Process(context.Background(), dbName, f, filename, overrides, progress)
		if err != nil {
			return err
		}
		progress("done", 100, fmt.Sprintf("%d tables created", len(results)))
		return nil
	})

	writeJSONStatus(w, r, http.StatusAccepted, map[string]string{"operation_id": id})
}
