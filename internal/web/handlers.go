package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/datadesk/datadesk/internal/dataset"
	"github.com/datadesk/datadesk/internal/web/templates"
)

// handleDashboard serves the single-page dashboard.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Dashboard(s.stylesheet).Render(r.Context(), w); err != nil {
		s.respondError(w, r, err)
	}
}

// handleHealth reports service liveness and current load.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":         "ok",
		"sessions":       s.service.Registry().Count(),
		"active_ingests": s.service.ActiveIngests(),
	})
}

// UploadResponse wraps the per-file ingestion results of one upload batch.
type UploadResponse struct {
	Files any `json:"files"`
}

// handleUpload processes a multi-file upload. Each file is parsed into its
// own session; one bad file never fails the batch, its result carries the
// error instead.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	// A batch can hold several files, each individually size-checked during
	// ingestion. The body cap only bounds the whole request.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize*8)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.respondError(w, r, fmt.Errorf("file too large or invalid form: %w", err))
		return
	}

	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		s.respondError(w, r, errors.New("no file provided"))
		return
	}

	var files []dataset.SourceFile
	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		files = append(files, dataset.SourceFile{
			Name: header.Filename,
			Size: header.Size,
			Data: data,
		})
	}

	results := s.service.IngestBatch(r.Context(), files)
	writeJSON(w, UploadResponse{Files: results})
}

// handleListSessions returns a snapshot of every open session.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"sessions": s.service.Snapshots()})
}

// handleGetSession returns the snapshot of one session, as JSON or as an
// HTMX fragment (summary line plus preview table).
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Snapshot(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.FileSummary(snap).Render(r.Context(), w); err != nil {
			return
		}
		templates.PreviewTable(snap).Render(r.Context(), w)
		return
	}
	writeJSON(w, snap)
}

// handleDeleteSession discards a session and its table.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.service.Remove(chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

// handleDedupe removes duplicate rows, keeping the first occurrence.
func (s *Server) handleDedupe(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Deduplicate(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// handleImpute fills missing numeric values with each column's mean.
func (s *Server) handleImpute(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Impute(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// scaleRequest is the body for the scale operation.
type scaleRequest struct {
	Strategy string `json:"strategy"`
}

// handleScale rescales the numeric columns with the requested strategy.
func (s *Server) handleScale(w http.ResponseWriter, r *http.Request) {
	var req scaleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	result, err := s.service.Scale(chi.URLParam(r, "sessionID"), req.Strategy)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// selectRequest is the body for column projection.
type selectRequest struct {
	Columns []string `json:"columns"`
}

// handleSelectColumns narrows the session's table to the requested columns.
func (s *Server) handleSelectColumns(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	snap, err := s.service.Project(chi.URLParam(r, "sessionID"), req.Columns)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, snap)
}

// chartRequest is the body for chart rendering.
type chartRequest struct {
	Kind string `json:"kind"`
	X    string `json:"x"`
	Y    string `json:"y"`
}

// handleChart renders a chart of the session's current table as PNG.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	var req chartRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	chart, err := s.service.Chart(chi.URLParam(r, "sessionID"), req.Kind, req.X, req.Y)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(chart.PNG)))
	w.Write(chart.PNG)
}

// handleReport generates the profiling report for the session's current
// table and serves it as a standalone HTML page.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.Report(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(doc.HTML)
}

// handleExport converts the session's current table to the requested format
// and serves it as a file download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	artifact, err := s.service.Export(chi.URLParam(r, "sessionID"), format)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", artifact.MIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.Write(artifact.Data)
}

// decodeJSON parses a JSON request body into dst. An empty body is allowed
// and leaves dst at its zero value.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("invalid request body: %w", err)
}
