package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Odysseus24/neolatin-chatbot-api/backend"
	"github.com/Odysseus24/neolatin-chatbot-api/chat"
	"github.com/Odysseus24/neolatin-chatbot-api/ingest"
	"github.com/Odysseus24/neolatin-chatbot-api/rag"
	"github.com/Odysseus24/neolatin-chatbot-api/session"
	"github.com/Odysseus24/neolatin-chatbot-api/types"
)

type fakeBackend struct {
	name string
	text string
	err  error
}

func (b *fakeBackend) Invoke(ctx context.Context, msgs []types.Message) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	return b.text, nil
}

func (b *fakeBackend) Name() string { return b.name }

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	return []float64{1, 0}, nil
}

func (fakeEmbedder) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	vecs := make([][]float64, len(documents))
	for i := range documents {
		vecs[i] = []float64{1, 0}
	}
	return vecs, nil
}

func (fakeEmbedder) Name() string    { return "fake" }
func (fakeEmbedder) Dimensions() int { return 2 }

type fakeExtractor struct {
	text string
}

func (e fakeExtractor) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	return e.text, nil
}

func newTestMux(t *testing.T, backends []backend.Backend) *http.ServeMux {
	return newTestMuxWithLimit(t, backends, 1<<20)
}

func newTestMuxWithLimit(t *testing.T, backends []backend.Backend, maxBytes int64) *http.ServeMux {
	t.Helper()

	persistent := rag.NewInMemoryVectorStore(nil)
	require.NoError(t, persistent.AddChunks(context.Background(), []rag.Chunk{
		{ID: "kb-1", Source: "handbook.pdf", Content: "Latin morphology.", Embedding: []float64{1, 0}},
	}))

	orch, err := chat.NewOrchestrator(backends, nil, nil)
	require.NoError(t, err)

	chunker := rag.NewWindowChunker(rag.DefaultChunkingConfig(), nil)
	ingestor := ingest.NewPipeline(chunker, fakeEmbedder{}, fakeExtractor{text: "uploaded text"}, nil, nil, nil)
	prompts := chat.NewPromptBuilder(chat.PromptBuilderConfig{}, nil, rand.New(rand.NewSource(3)))

	pipeline := chat.NewPipeline(
		chat.NewResolver(persistent, 5, 3),
		orch, fakeEmbedder{}, prompts, ingestor, nil, nil,
	)

	mux := http.NewServeMux()
	NewChatHandler(pipeline, session.NewManager(nil), maxBytes, nil).Register(mux)
	return mux
}

func postJSON(mux *http.ServeMux, path, body, sessionID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleAsk_Success(t *testing.T) {
	mux := newTestMux(t, []backend.Backend{&fakeBackend{name: "gemini-2.5-pro", text: "According to my handbooks, yes."}})

	rec := postJSON(mux, "/ask", `{"question":"Is Latin inflected?"}`, "s1")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	require.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "According to my handbooks, yes.", data["answer"])
	assert.Equal(t, "gemini-2.5-pro", data["backend"])
}

func TestHandleAsk_EmptyQuestionIs400(t *testing.T) {
	mux := newTestMux(t, []backend.Backend{&fakeBackend{name: "a", text: "x"}})

	rec := postJSON(mux, "/ask", `{"question":"   "}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeEnvelope(t, rec)
	require.False(t, resp.Success)
	assert.Equal(t, string(types.ErrNoInput), resp.Error.Code)
}

func TestHandleAsk_MalformedBodyIs400(t *testing.T) {
	mux := newTestMux(t, []backend.Backend{&fakeBackend{name: "a", text: "x"}})

	rec := postJSON(mux, "/ask", `{"question": `, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAsk_AllBackendsFailedIs502(t *testing.T) {
	mux := newTestMux(t, []backend.Backend{&fakeBackend{name: "a", err: errors.New("boom")}})

	rec := postJSON(mux, "/ask", `{"question":"q"}`, "")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	resp := decodeEnvelope(t, rec)
	assert.Equal(t, string(types.ErrAllBackendsFailed), resp.Error.Code)
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHandleUpload_InstallsDocument(t *testing.T) {
	mux := newTestMux(t, []backend.Backend{&fakeBackend{name: "a", text: "x"}})

	body, contentType := multipartUpload(t, "notes.pdf", []byte("%PDF"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(SessionHeader, "s1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "notes.pdf", data["filename"])
	assert.Equal(t, float64(len("uploaded text")), data["characters"])
}

func TestHandleUpload_UnsupportedTypeIs400(t *testing.T) {
	mux := newTestMux(t, []backend.Backend{&fakeBackend{name: "a", text: "x"}})

	body, contentType := multipartUpload(t, "slides.pptx", []byte("zip"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, string(types.ErrUnsupportedType), resp.Error.Code)
}

func TestHandleUpload_OversizedFileIs413(t *testing.T) {
	mux := newTestMuxWithLimit(t, []backend.Backend{&fakeBackend{name: "a", text: "x"}}, 64)

	body, contentType := multipartUpload(t, "big.pdf", bytes.Repeat([]byte("x"), 1024))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.False(t, resp.Success)
	assert.Contains(t, resp.Error.Message, "64 byte limit")
}

func TestHandleUpload_MissingFileFieldIs400(t *testing.T) {
	mux := newTestMux(t, []backend.Backend{&fakeBackend{name: "a", text: "x"}})

	rec := postJSON(mux, "/upload", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleClear_Succeeds(t *testing.T) {
	mux := newTestMux(t, []backend.Backend{&fakeBackend{name: "a", text: "x"}})

	rec := postJSON(mux, "/clear", ``, "s1")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Success)
}

func TestSessionsAreIsolated(t *testing.T) {
	mux := newTestMux(t, []backend.Backend{&fakeBackend{name: "a", text: "answer"}})

	// Upload a document for session one only.
	body, contentType := multipartUpload(t, "doc.pdf", []byte("%PDF"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(SessionHeader, "one")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Session two still answers from the knowledge base.
	rec = postJSON(mux, "/ask", `{"question":"q"}`, "two")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec).Data.(map[string]interface{})
	sources := data["sources"].([]interface{})
	require.NotEmpty(t, sources)
	assert.Equal(t, "handbook.pdf", sources[0].(map[string]interface{})["source"])
}
