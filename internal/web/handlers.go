package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"flyer/internal/backend"
	"flyer/internal/content"
	"flyer/internal/page"

	"github.com/go-chi/chi/v5"
)

const (
	maxValueBytes = 1 << 20
	maxBlobBytes  = 16 << 20
	flushTimeout  = 10 * time.Second
)

// pageData is what templates/page.html renders.
type pageData struct {
	page.View
	Dirty         bool
	Revision      uint64
	UnloadMessage string
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	st := s.store.Status()
	data := pageData{
		View:          s.page.Render(s.store, s.sanitizer),
		Dirty:         st.Dirty,
		Revision:      st.Revision,
		UnloadMessage: content.UnloadMessage,
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "page.html", data); err != nil {
		logger.Error("rendering page failed", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type contentResponse struct {
	Content  map[string]string `json:"content"`
	Dirty    bool              `json:"dirty"`
	Loading  bool              `json:"loading"`
	Revision uint64            `json:"revision"`
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	st := s.store.Status()
	values := s.store.Snapshot()
	for k, v := range values {
		values[k] = s.sanitizer.Clean(k, v)
	}
	writeJSON(w, http.StatusOK, contentResponse{
		Content:  values,
		Dirty:    st.Dirty,
		Loading:  st.Loading,
		Revision: st.Revision,
	})
}

type statusResponse struct {
	Session       string `json:"session"`
	Dirty         bool   `json:"dirty"`
	Loading       bool   `json:"loading"`
	Saving        bool   `json:"saving"`
	Revision      uint64 `json:"revision"`
	SavedRevision uint64 `json:"saved_revision"`
	Message       string `json:"message,omitempty"` // unload prompt, set while dirty
}

func (s *Server) statusBody() statusResponse {
	st := s.store.Status()
	resp := statusResponse{
		Session:       st.Session,
		Dirty:         st.Dirty,
		Loading:       st.Loading,
		Saving:        st.Saving,
		Revision:      st.Revision,
		SavedRevision: st.SavedRevision,
	}
	if st.Dirty {
		resp.Message = content.UnloadMessage
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.statusBody())
}

type valueResponse struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Present  bool   `json:"present"`
	Revision uint64 `json:"revision,omitempty"`
	Dirty    bool   `json:"dirty,omitempty"`
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := content.ValidateKey(key); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	value, ok := s.store.Lookup(key)
	if !ok {
		value = s.defaultFor(r, key)
	}
	writeJSON(w, http.StatusOK, valueResponse{Key: key, Value: s.sanitizer.Clean(key, value), Present: ok})
}

// defaultFor prefers an explicit ?default= over the page's own default.
func (s *Server) defaultFor(r *http.Request, key string) string {
	if q := r.URL.Query(); q.Has("default") {
		return q.Get("default")
	}
	if f, ok := s.page.Field(key); ok {
		return f.DefaultMarkup()
	}
	return ""
}

// originHTTP tags updates made through the API.
const originHTTP = "http"

type putRequest struct {
	Value *string `json:"value"`
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := content.ValidateKey(key); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if f, ok := s.page.Field(key); ok && f.Disabled {
		writeError(w, http.StatusForbidden, errors.New(key+" is not editable"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxValueBytes)
	var req putRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, errors.New(`missing "value"`))
		return
	}

	rev, err := s.store.UpdateAs(originHTTP, key, *req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		ctx, cancel := context.WithTimeout(r.Context(), flushTimeout)
		defer cancel()
		if err := s.store.Flush(ctx); err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "dirty": s.store.Dirty()})
			return
		}
	}

	value, _ := s.store.Lookup(key)
	writeJSON(w, http.StatusOK, valueResponse{Key: key, Value: value, Present: true, Revision: rev, Dirty: s.store.Dirty()})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	// A save runs to completion even if the client goes away.
	if err := s.store.PersistAll(context.WithoutCancel(r.Context())); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "retry": true})
		return
	}
	writeJSON(w, http.StatusOK, s.statusBody())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	var status content.LoadStatus
	if force, _ := strconv.ParseBool(r.URL.Query().Get("force")); force {
		status = s.store.Load(r.Context())
	} else {
		status = s.store.LoadIfClean(r.Context())
	}
	if status == content.LoadSkipped || status == content.LoadSuperseded {
		writeJSON(w, http.StatusConflict, map[string]any{"error": content.UnloadMessage, "dirty": true})
		return
	}
	body := s.statusBody()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   status.String(),
		"dirty":    body.Dirty,
		"revision": body.Revision,
	})
}

func (s *Server) handleBlobGet(w http.ResponseWriter, r *http.Request) {
	if s.blob == nil {
		http.Error(w, "blob endpoint disabled", http.StatusNotFound)
		return
	}
	blob, err := s.blob.Read(r.Context())
	switch {
	case errors.Is(err, backend.ErrAbsent):
		http.Error(w, "no saved content", http.StatusNotFound)
		return
	case err != nil:
		logger.Warn("reading blob failed", "err", err)
		http.Error(w, "backend unavailable", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(blob)
}

// handleBlobPut stores a blob written by a peer using this server as its
// remote backend. The local session adopts it unless it has unsaved edits.
func (s *Server) handleBlobPut(w http.ResponseWriter, r *http.Request) {
	if s.blob == nil {
		http.Error(w, "blob endpoint disabled", http.StatusNotFound)
		return
	}
	blob, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBlobBytes))
	if err != nil {
		http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
		return
	}
	if err := s.blob.Write(r.Context(), blob); err != nil {
		logger.Warn("writing blob failed", "err", err)
		http.Error(w, "backend unavailable", http.StatusBadGateway)
		return
	}
	if status := s.store.LoadIfClean(r.Context()); status == content.LoadSkipped {
		logger.Warn("blob replaced while local edits are unsaved, keeping them", "bytes", len(blob))
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("writing response failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
