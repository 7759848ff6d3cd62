// CLAUDE:SUMMARY HTTP surface over editor drafts: chi routes for selection, uploads, links, formatting, submit; error-to-status mapping; optional MCP at /mcp.
// Package server exposes headless editor drafts over HTTP and MCP. A draft is
// one editor.Editor; the client reports pointer-up and key-up selections,
// blurs, uploads and toolbar commands, and the server keeps the document.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/yeoju/editor"
	"github.com/hazyhaar/yeoju/recordstore"
	"github.com/hazyhaar/yeoju/richtext"
	"github.com/hazyhaar/yeoju/shield"
)

// AssetRemover deletes a stored object by its public URL.
type AssetRemover interface {
	KeyFromURL(publicURL string) (string, bool)
	Delete(ctx context.Context, key string) error
}

// Options configures a Server.
type Options struct {
	Drafts       *Drafts
	MaxBodyBytes int64
	// Files serves stored blobs under /files/ (fs driver).
	Files http.Handler
	// Assets enables DELETE /v1/assets.
	Assets AssetRemover
	// Records enables the /v1/records listing.
	Records RecordBrowser
	// Events enables GET /v1/events.
	Events       EventFeed
	LinkLimiter  *shield.RateLimiter
	ImageLimiter *shield.RateLimiter
	EnableMCP    bool
	Version      string
	Logger       *slog.Logger
}

// Server is the HTTP handler.
type Server struct {
	opts   Options
	drafts *Drafts
	mcp    *mcp.Server
	router chi.Router
	logger *slog.Logger
}

// New builds the router.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{opts: opts, drafts: opts.Drafts, logger: opts.Logger}
	if opts.EnableMCP {
		s.mcp = mcp.NewServer(&mcp.Implementation{Name: "yeoju", Version: opts.Version}, nil)
		s.RegisterMCP(s.mcp)
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// MCP returns the MCP server, or nil when disabled.
func (s *Server) MCP() *mcp.Server { return s.mcp }

func limit(rl *shield.RateLimiter, name string) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Middleware(name)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	for _, mw := range shield.APIStack(s.opts.MaxBodyBytes) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "drafts": s.drafts.Len()})
	})

	r.Route("/v1/drafts", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleState)
			r.Delete("/", s.handleClose)
			r.Put("/selection", s.handleSelection)
			r.Post("/blur", s.handleBlur)
			r.Post("/capture", s.handleCapture)
			r.With(limit(s.opts.ImageLimiter, "images")).Post("/images", s.handleImages)
			r.With(limit(s.opts.LinkLimiter, "links")).Post("/links", s.handleLink)
			r.Post("/format", s.handleFormat)
			r.Post("/submit", s.handleSubmit)
			r.Get("/history", s.handleHistory)
		})
	})

	if s.opts.Records != nil {
		r.Get("/v1/records/{collection}", s.handleListRecords)
		r.Delete("/v1/records/{collection}/{id}", s.handleDeleteRecord)
	}
	if s.opts.Events != nil {
		r.Get("/v1/events", s.handleEvents)
	}

	if s.opts.Assets != nil {
		r.Delete("/v1/assets", s.handleDeleteAsset)
	}
	if s.opts.Files != nil {
		r.Handle("/files/*", http.StripPrefix("/files/", s.opts.Files))
	}
	if s.mcp != nil {
		h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
		r.Handle("/mcp", h)
		r.Handle("/mcp/*", h)
	}
	return r
}

func (s *Server) draft(w http.ResponseWriter, r *http.Request) (*editor.Editor, bool) {
	ed, err := s.drafts.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return ed, true
}

func (s *Server) writeState(w http.ResponseWriter, r *http.Request, status int, ed *editor.Editor) {
	st, err := ed.State()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, st)
}

type createRequest struct {
	Collection string `json:"collection"`
	RecordID   string `json:"record_id,omitempty"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !s.decode(w, r, &req) {
		return
	}
	ed, err := s.drafts.Create(r.Context(), req.Collection, req.RecordID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeState(w, r, http.StatusCreated, ed)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if ed, ok := s.draft(w, r); ok {
		s.writeState(w, r, http.StatusOK, ed)
	}
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.drafts.Close(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.draft(w, r)
	if !ok {
		return
	}
	var sel richtext.Selection
	if !s.decode(w, r, &sel) {
		return
	}
	if err := ed.SetSelection(sel); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeState(w, r, http.StatusOK, ed)
}

func (s *Server) handleBlur(w http.ResponseWriter, r *http.Request) {
	if ed, ok := s.draft(w, r); ok {
		ed.Blur()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if ed, ok := s.draft(w, r); ok {
		writeJSON(w, http.StatusOK, map[string]bool{"captured": ed.CaptureSelection()})
	}
}

// fileOutcome is the JSON form of editor.FileOutcome.
type fileOutcome struct {
	Name   string            `json:"name"`
	Status editor.FileStatus `json:"status"`
	URL    string            `json:"url,omitempty"`
	Error  string            `json:"error,omitempty"`
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.draft(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, r, badRequest(err))
		return
	}
	defer r.MultipartForm.RemoveAll()
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		s.writeError(w, r, badRequest(errors.New("multipart field \"file\" is required")))
		return
	}
	folder := r.URL.Query().Get("folder")
	files := make([]editor.File, 0, len(headers))
	for _, fh := range headers {
		f, err := s.readFile(fh, folder)
		if err != nil {
			s.writeError(w, r, badRequest(err))
			return
		}
		files = append(files, f)
	}

	if len(files) == 1 {
		ins, err := ed.InsertImage(r.Context(), files[0])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, ins)
		return
	}
	outcomes, err := ed.InsertImages(r.Context(), files)
	if err != nil && outcomes == nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]fileOutcome, len(outcomes))
	for i, o := range outcomes {
		out[i] = fileOutcome{Name: o.Name, Status: o.Status, URL: o.URL}
		if o.Err != nil {
			out[i].Error = o.Err.Error()
		}
	}
	status := http.StatusOK
	if errors.Is(err, editor.ErrStale) {
		status = http.StatusGone
	}
	writeJSON(w, status, map[string]any{"results": out})
}

// readFile reads one part, keeping at most one byte past the editor limit so
// oversize files are still reported by name.
func (s *Server) readFile(fh *multipart.FileHeader, folder string) (editor.File, error) {
	f, err := fh.Open()
	if err != nil {
		return editor.File{}, err
	}
	defer f.Close()
	capBytes := s.drafts.base.MaxFileBytes
	if capBytes <= 0 {
		capBytes = fh.Size
	}
	data, err := io.ReadAll(io.LimitReader(f, capBytes+1))
	if err != nil {
		return editor.File{}, err
	}
	ct := fh.Header.Get("Content-Type")
	if ct == "application/octet-stream" {
		ct = ""
	}
	return editor.File{
		Name:        fh.Filename,
		ContentType: ct,
		Data:        data,
		Folder:      folder,
	}, nil
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.draft(w, r)
	if !ok {
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	ins, err := ed.InsertLink(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ins)
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.draft(w, r)
	if !ok {
		return
	}
	var req struct {
		Command string `json:"command"`
		Value   string `json:"value,omitempty"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := ed.ApplyFormatting(richtext.Command(req.Command), req.Value); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeState(w, r, http.StatusOK, ed)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.draft(w, r)
	if !ok {
		return
	}
	var req editor.SubmitRequest
	if !s.decode(w, r, &req) {
		return
	}
	update := ed.RecordID() != ""
	rec, err := ed.Submit(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if update {
		status = http.StatusOK
	}
	writeJSON(w, status, rec)
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	key, ok := s.opts.Assets.KeyFromURL(url)
	if !ok {
		s.writeError(w, r, badRequest(errors.New("url is not a stored asset")))
		return
	}
	if err := s.opts.Assets.Delete(r.Context(), key); err != nil {
		s.writeError(w, r, &editor.UploadError{Name: url, Key: key, Err: err})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ---

// errBadRequest marks malformed requests.
var errBadRequest = errors.New("bad request")

var errLimit = errors.New("limit must be an integer in 0-500")

type requestError struct{ err error }

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() []error { return []error{errBadRequest, e.err} }

func badRequest(err error) error { return &requestError{err: err} }

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, r, badRequest(err))
		return false
	}
	return true
}

// StatusOf maps an error to its HTTP status.
func StatusOf(err error) int {
	var (
		maxErr *http.MaxBytesError
		upErr  *editor.UploadError
		pErr   *editor.PersistenceError
	)
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest), errors.Is(err, editor.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, editor.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrDraftNotFound), errors.Is(err, editor.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrStale), errors.Is(err, editor.ErrClosed):
		return http.StatusGone
	case errors.As(err, &upErr):
		return http.StatusBadGateway
	case errors.As(err, &pErr):
		return http.StatusInternalServerError
	case errors.Is(err, recordstore.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, recordstore.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	logger := shield.GetLogger(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Debug("request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": strings.TrimPrefix(err.Error(), "editor: ")})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
