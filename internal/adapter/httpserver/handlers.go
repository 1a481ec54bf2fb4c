package httpserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/lydiaket/cs338-rubric/internal/config"
	"github.com/lydiaket/cs338-rubric/internal/domain"
	"github.com/lydiaket/cs338-rubric/internal/usecase"
	"github.com/lydiaket/cs338-rubric/pkg/textx"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg       config.Config
	Rubrics   *usecase.RubricService
	Grades    usecase.GradeService
	Analyzer  usecase.AnalyzeService
	Essays    usecase.EssayService
	Extractor domain.TextExtractor

	AICheck      func(ctx context.Context) error
	GrammarCheck func(ctx context.Context) error
	TikaCheck    func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, rubrics *usecase.RubricService, grades usecase.GradeService, analyzer usecase.AnalyzeService, essays usecase.EssayService, extractor domain.TextExtractor, aiCheck, grammarCheck, tikaCheck func(context.Context) error) *Server {
	return &Server{
		Cfg:          cfg,
		Rubrics:      rubrics,
		Grades:       grades,
		Analyzer:     analyzer,
		Essays:       essays,
		Extractor:    extractor,
		AICheck:      aiCheck,
		GrammarCheck: grammarCheck,
		TikaCheck:    tikaCheck,
	}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// decodeAndValidate decodes a JSON body into req and runs struct
// validation, writing the error response itself on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := jsonDecode(r.Body, req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
		return false
	}
	if err := getValidator().Struct(req); err != nil {
		verrs := map[string]string{}
		var ve validator.ValidationErrors
		if ok := asValidationErrors(err, &ve); ok {
			for _, fe := range ve {
				verrs[strings.ToLower(fe.Field())] = fe.Tag()
			}
		}
		writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), verrs)
		return false
	}
	return true
}

// StructureHandler splits essay text into sections.
func (s *Server) StructureHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text string `json:"text" validate:"required,max=200000"`
		}
		if !decodeAndValidate(w, r, &req) {
			return
		}
		sections, err := s.Essays.Structure(req.Text)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, sections)
	}
}

// RubricHandler builds (or fetches) the schema for rubric text.
func (s *Server) RubricHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RubricText string `json:"rubric_text" validate:"required,max=100000"`
		}
		if !decodeAndValidate(w, r, &req) {
			return
		}
		schema, err := s.Rubrics.BuildSchema(r.Context(), req.RubricText)
		if err != nil {
			writeError(w, r, fmt.Errorf("build rubric: %w", err), nil)
			return
		}
		writeJSON(w, http.StatusOK, schema)
	}
}

// GradeHandler grades essay text against a previously built rubric.
func (s *Server) GradeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RubricID string `json:"rubric_id" validate:"required,max=64"`
			Text     string `json:"text" validate:"required,max=200000"`
		}
		if !decodeAndValidate(w, r, &req) {
			return
		}
		schema, results, err := s.Grades.Grade(r.Context(), req.RubricID, req.Text)
		if err != nil {
			writeError(w, r, fmt.Errorf("grade: %w", err), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"rubric_id": schema.ID,
			"results":   results,
		})
	}
}

// AnalyzeHandler runs embedding-mode matching against caller criteria.
func (s *Server) AnalyzeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text       string   `json:"text" validate:"required,max=200000"`
			Rubric     []string `json:"rubric" validate:"omitempty,max=50,dive,max=500"`
			RubricText string   `json:"rubric_text" validate:"omitempty,max=100000"`
		}
		if !decodeAndValidate(w, r, &req) {
			return
		}
		var (
			results []domain.MatchResult
			err     error
		)
		switch {
		case len(req.Rubric) > 0:
			results, err = s.Analyzer.Analyze(r.Context(), req.Text, req.Rubric)
		case req.RubricText != "":
			results, err = s.Analyzer.AnalyzeRubricText(r.Context(), req.Text, req.RubricText)
		default:
			err = fmt.Errorf("%w: provide rubric or rubric_text", domain.ErrInvalidArgument)
		}
		if err != nil {
			writeError(w, r, fmt.Errorf("analyze: %w", err), nil)
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}

// RubricUploadHandler accepts a rubric document, extracts its text and
// builds the schema.
func (s *Server) RubricUploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text, ok := s.readUpload(w, r, "rubric")
		if !ok {
			return
		}
		schema, err := s.Rubrics.BuildFromRaw(r.Context(), text)
		if err != nil {
			writeError(w, r, fmt.Errorf("build rubric: %w", err), nil)
			return
		}
		writeJSON(w, http.StatusOK, schema)
	}
}

// EssayUploadHandler accepts an essay document and returns its
// extracted text plus segmentation.
func (s *Server) EssayUploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text, ok := s.readUpload(w, r, "essay")
		if !ok {
			return
		}
		sections, err := s.Essays.Structure(text)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"text":     text,
			"sections": sections,
		})
	}
}

// readUpload validates and extracts plain text from a single multipart
// file field. It writes the error response itself on failure.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) (string, bool) {
	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		writeError(w, r, fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument), nil)
		return "", false
	}
	maxBytes := s.Cfg.MaxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "too large") {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{
				Code:    "INVALID_ARGUMENT",
				Message: "payload too large",
				Details: map[string]any{"max_mb": s.Cfg.MaxUploadMB},
			}})
			return "", false
		}
		writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
		return "", false
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %s file required", domain.ErrInvalidArgument, field), map[string]string{"field": field})
		return "", false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %s read: %v", domain.ErrInvalidArgument, field, err), nil)
		return "", false
	}
	if !allowedExt(header.Filename) {
		writeJSON(w, http.StatusUnsupportedMediaType, errorEnvelope{Error: apiError{
			Code:    "INVALID_ARGUMENT",
			Message: "unsupported media type (extension)",
			Details: map[string]any{"filename": header.Filename},
		}})
		return "", false
	}
	mt := mimetype.Detect(data)
	if !allowedMIMEFor(mt.String(), header.Filename) {
		writeJSON(w, http.StatusUnsupportedMediaType, errorEnvelope{Error: apiError{
			Code:    "INVALID_ARGUMENT",
			Message: "unsupported media type (content)",
			Details: map[string]any{"mime": mt.String(), "filename": header.Filename},
		}})
		return "", false
	}
	text, err := s.extractUploadedText(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, r, fmt.Errorf("extract %s: %w", field, err), nil)
		return "", false
	}
	return text, true
}

// extractUploadedText returns plain text for the uploaded bytes. Plain
// text passes through sanitization; pdf/docx go through the extractor
// via a temp file.
func (s *Server) extractUploadedText(ctx context.Context, fileName string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext != ".pdf" && ext != ".docx" {
		return textx.SanitizeText(string(data)), nil
	}
	if s.Extractor == nil {
		return "", fmt.Errorf("%w: %s upload requires an extractor", domain.ErrInvalidArgument, strings.TrimPrefix(ext, "."))
	}
	tmp, err := os.CreateTemp("", "upload-*"+ext)
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmp.Name()); _ = tmp.Close() }()
	if _, err := tmp.Write(data); err != nil {
		return "", err
	}
	return s.Extractor.ExtractPath(ctx, fileName, tmp.Name())
}

// allowedExt enforces an allowlist for uploads: .txt, .pdf, .docx
func allowedExt(name string) bool {
	n := strings.ToLower(name)
	return strings.HasSuffix(n, ".txt") || strings.HasSuffix(n, ".pdf") || strings.HasSuffix(n, ".docx")
}

func allowedMIMEFor(m, filename string) bool {
	m = strings.ToLower(m)
	if strings.HasSuffix(strings.ToLower(filename), ".txt") && strings.HasPrefix(m, "text/") {
		return true
	}
	if strings.HasPrefix(m, "text/plain") {
		return true
	}
	return m == "application/pdf" || m == "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

// HealthzHandler reports liveness.
func HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler probes the completion, grammar and extraction backends.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	probes := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{"ai", s.AICheck},
		{"grammar", s.GrammarCheck},
		{"tika", s.TikaCheck},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, len(probes))
		ok := true
		for _, p := range probes {
			if p.fn == nil {
				continue
			}
			if err := p.fn(ctx); err != nil {
				checks = append(checks, check{Name: p.name, Details: err.Error()})
				ok = false
			} else {
				checks = append(checks, check{Name: p.name, OK: true})
			}
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
