// Package chat implements the answering core: backend fallback, retrieval
// scope resolution, prompt assembly and conversation flow.
package chat

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Odysseus24/neolatin-chatbot-api/embedding"
	"github.com/Odysseus24/neolatin-chatbot-api/ingest"
	"github.com/Odysseus24/neolatin-chatbot-api/internal/metrics"
	"github.com/Odysseus24/neolatin-chatbot-api/rag"
	"github.com/Odysseus24/neolatin-chatbot-api/session"
	"github.com/Odysseus24/neolatin-chatbot-api/types"
)

// Pipeline handles one session's question/upload/clear operations. All
// three serialize on the session lock, so a session never interleaves an
// answer with a document swap.
type Pipeline struct {
	resolver *Resolver
	orch     *Orchestrator
	embedder embedding.Provider
	prompts  *PromptBuilder
	ingestor *ingest.Pipeline
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// NewPipeline wires the answering pipeline.
func NewPipeline(resolver *Resolver, orch *Orchestrator, embedder embedding.Provider, prompts *PromptBuilder, ingestor *ingest.Pipeline, logger *zap.Logger, collector *metrics.Collector) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		resolver: resolver,
		orch:     orch,
		embedder: embedder,
		prompts:  prompts,
		ingestor: ingestor,
		logger:   logger,
		metrics:  collector,
	}
}

// Ask answers one question against the session's current retrieval scope.
// An empty or whitespace-only question is rejected before any retrieval or
// backend work. The turn is recorded in memory only after a backend
// answered; a fully failed request leaves the conversation unchanged.
// Recording is at most once: if the memory write itself fails (a Redis
// outage, say), the answer is still returned and the dropped turn is
// logged rather than failing the request.
func (p *Pipeline) Ask(ctx context.Context, sess *session.Session, question string) (*types.AnswerResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, types.NewError(types.ErrNoInput, "question must not be empty").
			WithHTTPStatus(http.StatusBadRequest)
	}

	sess.Lock()
	defer sess.Unlock()

	res := p.resolver.Resolve(sess.Document())

	queryVec, err := p.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "embedding query failed").
			WithCause(err).
			WithHTTPStatus(http.StatusInternalServerError)
	}

	start := time.Now()
	results, err := res.Store.Search(ctx, queryVec, res.TopK)
	p.metrics.ObserveRetrieval(string(res.Scope), time.Since(start))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "retrieval failed").
			WithCause(err).
			WithHTTPStatus(http.StatusInternalServerError)
	}

	turns, err := sess.Memory().Turns(ctx)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "loading conversation history failed").
			WithCause(err).
			WithHTTPStatus(http.StatusInternalServerError)
	}

	answer, err := p.orch.Complete(ctx, p.prompts.Build(results, turns, question))
	if err != nil {
		return nil, err
	}

	answer.Sources = sourceRefs(results)

	if err := sess.Memory().Append(ctx, session.Turn{
		Question: question,
		Answer:   answer.Text,
		At:       time.Now(),
	}); err != nil {
		p.logger.Warn("recording turn failed",
			zap.String("session", sess.ID),
			zap.Error(err),
		)
	}

	p.logger.Info("question answered",
		zap.String("session", sess.ID),
		zap.String("scope", string(res.Scope)),
		zap.String("backend", answer.Backend),
		zap.Int("sources", len(answer.Sources)),
	)
	return answer, nil
}

// Upload ingests a file and installs it as the session's document,
// replacing any previous one and resetting the conversation. On any
// ingestion failure the session keeps its prior document and history.
func (p *Pipeline) Upload(ctx context.Context, sess *session.Session, data []byte, filename string) (*session.DocumentContext, error) {
	sess.Lock()
	defer sess.Unlock()

	doc, err := p.ingestor.Ingest(ctx, data, filename)
	if err != nil {
		return nil, err
	}
	if err := sess.ReplaceDocument(ctx, doc); err != nil {
		return nil, types.NewError(types.ErrInternalError, "installing document failed").
			WithCause(err).
			WithHTTPStatus(http.StatusInternalServerError)
	}

	p.logger.Info("document installed",
		zap.String("session", sess.ID),
		zap.String("filename", filename),
	)
	return doc, nil
}

// Clear drops the session's uploaded document and conversation history,
// returning it to the persistent knowledge base. Clearing an already empty
// session succeeds.
func (p *Pipeline) Clear(ctx context.Context, sess *session.Session) error {
	sess.Lock()
	defer sess.Unlock()

	if err := sess.Clear(ctx); err != nil {
		return types.NewError(types.ErrInternalError, "clearing session failed").
			WithCause(err).
			WithHTTPStatus(http.StatusInternalServerError)
	}
	p.logger.Info("session cleared", zap.String("session", sess.ID))
	return nil
}

func sourceRefs(results []rag.SearchResult) []types.SourceRef {
	if len(results) == 0 {
		return nil
	}
	refs := make([]types.SourceRef, len(results))
	for i, r := range results {
		refs[i] = types.SourceRef{
			Source:  r.Chunk.Source,
			Snippet: snippet(r.Chunk.Content, 200),
			Score:   r.Score,
		}
	}
	return refs
}

// snippet truncates on a rune boundary.
func snippet(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
