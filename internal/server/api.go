// ABOUTME: HTTP handlers for the chat, memory, key vault and document endpoints
// ABOUTME: Every record is scoped to the device id in the path or request body

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/flareos/flareforge/internal/dedupe"
	"github.com/flareos/flareforge/internal/model"
	"github.com/flareos/flareforge/internal/store"
)

// maxBodyBytes caps request bodies; the largest field is a 1 MiB document.
const maxBodyBytes = 2 << 20

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/chats/{device}", s.handleListThreads)
	mux.HandleFunc("POST /api/chats/send", s.handleSendMessage)
	mux.HandleFunc("DELETE /api/chats/{device}/{id}", s.handleDeleteThread)

	mux.HandleFunc("GET /api/memory/{device}", s.handleListMemory)
	mux.HandleFunc("POST /api/memory", s.handleSetMemory)
	mux.HandleFunc("DELETE /api/memory/{device}/{key}", s.handleDeleteMemory)

	mux.HandleFunc("GET /api/keys/{device}", s.handleGetKeys)
	mux.HandleFunc("POST /api/keys", s.handleSetKeys)

	mux.HandleFunc("GET /api/code/{device}", s.handleGetCode)
	mux.HandleFunc("POST /api/code", s.handleSetCode)
}

// handleListThreads returns every thread of a device, newest first.
func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.store.ListThreads(r.Context(), r.PathValue("device"))
	if err != nil {
		s.internalError(w, "listing threads", err)
		return
	}
	s.sendJSON(w, http.StatusOK, model.ThreadsResponse{Threads: &threads})
}

// handleSendMessage appends a user message and its echo reply to a thread,
// creating the thread first when it does not exist.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req model.SendRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		s.sendJSONError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx := r.Context()
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	var dedupeKey string
	if req.MessageID != "" {
		dedupeKey = dedupe.Key(req.Device, req.MessageID)
		if threadID, ok := s.dedupe.Lookup(dedupeKey); ok {
			thread, err := s.store.GetThread(ctx, req.Device, threadID)
			if err == nil {
				s.logger.Debug("duplicate send ignored", "device", req.Device, "message_id", req.MessageID)
				s.metrics.observeSend("duplicate")
				s.sendJSON(w, http.StatusOK, model.ThreadResponse{Thread: &thread})
				return
			}
			if !errors.Is(err, store.ErrNotFound) {
				s.internalError(w, "loading thread", err)
				return
			}
			// The thread was deleted since; treat the send as new.
			s.dedupe.Forget(dedupeKey)
		}
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = s.newID()
	}

	now := s.now()
	thread, err := s.store.GetThread(ctx, req.Device, threadID)
	created := false
	switch {
	case errors.Is(err, store.ErrNotFound):
		thread = model.NewThread(threadID, now)
		created = true
	case err != nil:
		s.internalError(w, "loading thread", err)
		return
	}

	before := len(thread.Messages)
	thread = thread.WithExchange(req.Message, now)

	if created {
		err = s.store.CreateThread(ctx, req.Device, thread)
	} else {
		err = s.store.AppendMessages(ctx, req.Device, thread.ID, thread.Title, thread.Messages[before:])
	}
	if err != nil {
		s.internalError(w, "saving thread", err)
		return
	}

	if dedupeKey != "" {
		s.dedupe.Remember(dedupeKey, thread.ID)
	}
	s.metrics.observeSend("applied")
	s.logger.Debug("message sent", "device", req.Device, "thread_id", thread.ID, "created", created)
	s.sendJSON(w, http.StatusOK, model.ThreadResponse{Thread: &thread})
}

// handleDeleteThread removes a thread. Unknown threads are 404.
func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteThread(r.Context(), r.PathValue("device"), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusNotFound, "thread not found")
		return
	}
	if err != nil {
		s.internalError(w, "deleting thread", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListMemory returns every memory entry of a device, newest first.
func (s *Server) handleListMemory(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListMemory(r.Context(), r.PathValue("device"))
	if err != nil {
		s.internalError(w, "listing memory", err)
		return
	}
	s.sendJSON(w, http.StatusOK, model.MemoryResponse{Items: &items})
}

// handleSetMemory upserts one entry. An existing entry keeps its creation ts.
func (s *Server) handleSetMemory(w http.ResponseWriter, r *http.Request) {
	var req model.MemoryRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		s.sendJSONError(w, http.StatusBadRequest, "key is required")
		return
	}

	item, err := s.store.SetMemory(r.Context(), req.Device, model.MemoryItem{
		Key:   req.Key,
		Value: req.Value,
		TS:    model.Millis(s.now()),
	})
	if err != nil {
		s.internalError(w, "saving memory item", err)
		return
	}
	s.sendJSON(w, http.StatusOK, model.MemoryItemResponse{Item: &item})
}

// handleDeleteMemory removes one entry. Unknown keys are 404.
func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteMemory(r.Context(), r.PathValue("device"), r.PathValue("key"))
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusNotFound, "memory item not found")
		return
	}
	if err != nil {
		s.internalError(w, "deleting memory item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetKeys returns the provider secrets of a device.
func (s *Server) handleGetKeys(w http.ResponseWriter, r *http.Request) {
	providers, err := s.store.GetKeys(r.Context(), r.PathValue("device"))
	if err != nil {
		s.internalError(w, "loading provider keys", err)
		return
	}
	s.sendJSON(w, http.StatusOK, model.KeysResponse{Providers: providers})
}

// handleSetKeys replaces the provider secrets of a device.
func (s *Server) handleSetKeys(w http.ResponseWriter, r *http.Request) {
	var req model.KeysRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.store.SetKeys(r.Context(), req.Device, req.Providers); err != nil {
		s.internalError(w, "saving provider keys", err)
		return
	}
	s.sendJSON(w, http.StatusOK, model.KeysResponse{Providers: req.Providers})
}

// handleGetCode returns the HTML document of a device, empty when none was saved.
func (s *Server) handleGetCode(w http.ResponseWriter, r *http.Request) {
	html, err := s.store.GetDocument(r.Context(), r.PathValue("device"))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.internalError(w, "loading document", err)
		return
	}
	s.sendJSON(w, http.StatusOK, model.CodeResponse{HTML: &html})
}

// handleSetCode stores the HTML document of a device.
func (s *Server) handleSetCode(w http.ResponseWriter, r *http.Request) {
	var req model.CodeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.store.SetDocument(r.Context(), req.Device, req.HTML); err != nil {
		s.internalError(w, "saving document", err)
		return
	}
	s.sendJSON(w, http.StatusOK, model.CodeResponse{HTML: &req.HTML})
}

// decode reads a JSON body into dst and validates it, writing a 400 on
// failure. Reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validateStruct(dst); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) internalError(w http.ResponseWriter, action string, err error) {
	s.logger.Error("request failed", "action", action, "error", err)
	s.sendJSONError(w, http.StatusInternalServerError, "internal error")
}

// sendJSON writes v as a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, model.ErrorResponse{Error: message})
}
