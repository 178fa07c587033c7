package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Odysseus24/neolatin-chatbot-api/chat"
	"github.com/Odysseus24/neolatin-chatbot-api/session"
	"github.com/Odysseus24/neolatin-chatbot-api/types"
)

// SessionHeader carries the client's session identity. Requests without it
// share the default session.
const SessionHeader = "X-Session-ID"

const defaultSessionID = "default"

// AskRequest is the question payload.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the answer payload.
type AskResponse struct {
	Answer  string            `json:"answer"`
	Backend string            `json:"backend"`
	Sources []types.SourceRef `json:"sources,omitempty"`
}

// UploadResponse describes an installed document.
type UploadResponse struct {
	Filename   string    `json:"filename"`
	Characters int       `json:"characters"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ChatHandler serves the ask/upload/clear endpoints.
type ChatHandler struct {
	pipeline *chat.Pipeline
	sessions *session.Manager
	maxBytes int64
	logger   *zap.Logger
}

// NewChatHandler creates the handler. maxBytes caps upload size.
func NewChatHandler(pipeline *chat.Pipeline, sessions *session.Manager, maxBytes int64, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		pipeline: pipeline,
		sessions: sessions,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Register mounts the chat routes on the mux.
func (h *ChatHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /ask", h.HandleAsk)
	mux.HandleFunc("POST /upload", h.HandleUpload)
	mux.HandleFunc("POST /clear", h.HandleClear)
}

func (h *ChatHandler) sessionFor(r *http.Request) *session.Session {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		id = defaultSessionID
	}
	return h.sessions.Get(id)
}

// HandleAsk answers one question.
func (h *ChatHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	result, err := h.pipeline.Ask(r.Context(), h.sessionFor(r), req.Question)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteSuccess(w, AskResponse{
		Answer:  result.Text,
		Backend: result.Backend,
		Sources: result.Sources,
	})
}

// HandleUpload ingests a multipart file upload and installs it as the
// session's document.
func (h *ChatHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		if tooLarge := h.uploadTooLarge(err); tooLarge != nil {
			WriteError(w, tooLarge, h.logger)
			return
		}
		WriteError(w, types.NewError(types.ErrInvalidRequest, "missing multipart field \"file\"").
			WithCause(err).
			WithHTTPStatus(http.StatusBadRequest), h.logger)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		if tooLarge := h.uploadTooLarge(err); tooLarge != nil {
			WriteError(w, tooLarge, h.logger)
			return
		}
		WriteError(w, types.NewError(types.ErrInvalidRequest, "reading upload failed").
			WithCause(err).
			WithHTTPStatus(http.StatusBadRequest), h.logger)
		return
	}

	doc, err := h.pipeline.Upload(r.Context(), h.sessionFor(r), data, header.Filename)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteSuccess(w, UploadResponse{
		Filename:   doc.Filename,
		Characters: len(doc.Text),
		UploadedAt: doc.CreatedAt,
	})
}

// uploadTooLarge maps a MaxBytesReader overflow to a 413, nil otherwise.
func (h *ChatHandler) uploadTooLarge(err error) *types.Error {
	var maxErr *http.MaxBytesError
	if !errors.As(err, &maxErr) {
		return nil
	}
	return types.NewError(types.ErrInvalidRequest,
		fmt.Sprintf("upload exceeds the %d byte limit", maxErr.Limit)).
		WithCause(err).
		WithHTTPStatus(http.StatusRequestEntityTooLarge)
}

// HandleClear drops the session's document and conversation.
func (h *ChatHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.pipeline.Clear(r.Context(), h.sessionFor(r)); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"status": "cleared"})
}
