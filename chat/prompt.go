package chat

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/Odysseus24/neolatin-chatbot-api/rag"
	"github.com/Odysseus24/neolatin-chatbot-api/session"
	"github.com/Odysseus24/neolatin-chatbot-api/types"
)

// GroundedPrefix is the phrase answers must open with whenever the
// retrieved context was actually used.
const GroundedPrefix = "According to my handbooks"

// ungroundedPreambles are the canned openings for answers that fall back to
// the model's general knowledge. One is picked per request.
var ungroundedPreambles = []string{
	"There is no information about your question in my handbooks. Relying on my general knowledge, I can tell you that",
	"There is no information about your question in my handbooks. From what I know generally",
	"There is no information about your question in my handbooks. Drawing from my broader knowledge",
	"There is no information about your question in my handbooks. Based on my general understanding",
	"There is no information about your question in my handbooks. What I can share from my general knowledge is that",
}

const systemTemplate = "You are a knowledgeable assistant for question-answering tasks. " +
	"First, check if the retrieved context below contains relevant information " +
	"to answer the question. If the context is relevant and helpful, use it " +
	"as your primary source and start your response with '%s' " +
	"instead of phrases like 'Based on the provided context' or 'The context shows'. " +
	"If the context is not relevant or doesn't contain useful information " +
	"for the question, rely on your general knowledge to provide a helpful answer. " +
	"In this case, start your response with exactly this phrase: '%s'. " +
	"Keep your answer informative but concise." +
	"\n\n" +
	"Retrieved context: %s"

// PromptBuilderConfig tunes prompt assembly.
type PromptBuilderConfig struct {
	// HistoryTokenBudget caps the tokens spent on prior turns. Oldest
	// turns are dropped first. Zero means no trimming.
	HistoryTokenBudget int
}

// PromptBuilder assembles the message list sent to a backend: a system
// instruction carrying the retrieved context, the conversation history and
// the current question.
type PromptBuilder struct {
	cfg       PromptBuilderConfig
	tokenizer Tokenizer

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPromptBuilder creates a builder. The rng drives preamble selection and
// must not be nil; the tokenizer may be nil, in which case a character
// estimate is used.
func NewPromptBuilder(cfg PromptBuilderConfig, tokenizer Tokenizer, rng *rand.Rand) *PromptBuilder {
	if tokenizer == nil {
		tokenizer = EstimateTokenizer{}
	}
	return &PromptBuilder{cfg: cfg, tokenizer: tokenizer, rng: rng}
}

// Build renders the full message sequence for one question.
func (b *PromptBuilder) Build(results []rag.SearchResult, turns []session.Turn, question string) []types.Message {
	system := fmt.Sprintf(systemTemplate, GroundedPrefix, b.pickPreamble(), renderContext(results))

	turns = b.trimHistory(turns)

	msgs := make([]types.Message, 0, 2*len(turns)+2)
	msgs = append(msgs, types.NewSystemMessage(system))
	for _, turn := range turns {
		msgs = append(msgs, types.NewUserMessage(turn.Question))
		msgs = append(msgs, types.NewAssistantMessage(turn.Answer))
	}
	msgs = append(msgs, types.NewUserMessage(question))
	return msgs
}

func (b *PromptBuilder) pickPreamble() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ungroundedPreambles[b.rng.Intn(len(ungroundedPreambles))]
}

// trimHistory drops the oldest turns until the remainder fits the budget.
func (b *PromptBuilder) trimHistory(turns []session.Turn) []session.Turn {
	if b.cfg.HistoryTokenBudget <= 0 {
		return turns
	}
	total := 0
	kept := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		cost := b.tokenizer.CountTokens(turns[i].Question) + b.tokenizer.CountTokens(turns[i].Answer)
		if total+cost > b.cfg.HistoryTokenBudget {
			break
		}
		total += cost
		kept = i
	}
	return turns[kept:]
}

func renderContext(results []rag.SearchResult) string {
	if len(results) == 0 {
		return "(no relevant documents found)"
	}
	var sb strings.Builder
	for i, res := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(res.Chunk.Content)
	}
	return sb.String()
}

// Preambles returns the fixed set of ungrounded openings.
func Preambles() []string {
	out := make([]string, len(ungroundedPreambles))
	copy(out, ungroundedPreambles)
	return out
}
