package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/weavegraph/weave/internal/observability"
	"github.com/weavegraph/weave/pkg/knowledge"
	"github.com/weavegraph/weave/pkg/llm"
)

// Config holds the memory thresholds.
type Config struct {
	// SummarizationThreshold is the message count at which ShouldSummarize
	// turns true.
	SummarizationThreshold int
	// KeepRecent is how many trailing messages survive a Compact untouched.
	KeepRecent int
	// MaxMessageHistory bounds Truncate when no explicit keep is given.
	MaxMessageHistory int
	// RetrievalK bounds Retrieve when k is non-positive.
	RetrievalK int
	// Logger defaults to the global logger when nil.
	Logger *zerolog.Logger
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		SummarizationThreshold: 30,
		KeepRecent:             5,
		MaxMessageHistory:      50,
		RetrievalK:             5,
	}
}

// Snippet is one retrieval hit from conversation history.
type Snippet struct {
	Content string  `json:"content"`
	Role    string  `json:"role"`
	Index   int     `json:"index"`
	Score   float64 `json:"score"`
}

// Manager implements summarization, truncation and keyword retrieval over a
// message history. The LLM client is optional; without one, Compact always
// truncates.
type Manager struct {
	cfg    Config
	client llm.Client
	log    zerolog.Logger
}

// NewManager creates a manager. Zero config fields fall back to defaults.
func NewManager(cfg Config, client llm.Client) *Manager {
	def := DefaultConfig()
	if cfg.SummarizationThreshold <= 0 {
		cfg.SummarizationThreshold = def.SummarizationThreshold
	}
	if cfg.KeepRecent <= 0 {
		cfg.KeepRecent = def.KeepRecent
	}
	if cfg.MaxMessageHistory <= 0 {
		cfg.MaxMessageHistory = def.MaxMessageHistory
	}
	if cfg.RetrievalK <= 0 {
		cfg.RetrievalK = def.RetrievalK
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Manager{cfg: cfg, client: client, log: logger}
}

// Config returns the effective thresholds.
func (m *Manager) Config() Config {
	return m.cfg
}

// ShouldSummarize reports whether the history has reached the summarization
// threshold.
func (m *Manager) ShouldSummarize(messages []llm.Message) bool {
	return len(messages) >= m.cfg.SummarizationThreshold
}

// Summarize compresses the given messages into one system message through
// the LLM contract.
func (m *Manager) Summarize(ctx context.Context, messages []llm.Message) (llm.Message, error) {
	if m.client == nil {
		return llm.Message{}, fmt.Errorf("no llm client configured")
	}
	if len(messages) == 0 {
		return llm.Message{}, fmt.Errorf("nothing to summarize")
	}

	var b strings.Builder
	for _, msg := range messages {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}

	prompt := fmt.Sprintf(
		"Summarize the main content of the following conversation, keeping key facts and decisions. Be concise but complete.\n\n%s\nSummary:",
		b.String(),
	)

	resp, err := m.client.Generate(ctx, llm.Request{
		Messages: []llm.Message{llm.UserMessage(prompt)},
	})
	if err != nil {
		return llm.Message{}, fmt.Errorf("summary generation: %w", err)
	}

	summary := llm.SystemMessage("Conversation summary: " + resp.Content)
	summary.Timestamp = time.Now().UTC()
	return summary, nil
}

// Compact reduces a history that crossed the summarization threshold: older
// messages are folded into one summary and the most recent KeepRecent
// messages are preserved verbatim. When the LLM summary fails, Compact falls
// back to Truncate instead of failing. Histories under the threshold come
// back unchanged.
func (m *Manager) Compact(ctx context.Context, messages []llm.Message) []llm.Message {
	if !m.ShouldSummarize(messages) {
		observability.RecordSummarization("skipped")
		return messages
	}

	systems, rest := splitSystem(messages)
	if len(rest) <= m.cfg.KeepRecent {
		observability.RecordSummarization("skipped")
		return messages
	}

	older := rest[:len(rest)-m.cfg.KeepRecent]
	recent := rest[len(rest)-m.cfg.KeepRecent:]

	summary, err := m.Summarize(ctx, older)
	if err != nil {
		m.log.Warn().Err(err).Int("messages", len(older)).Msg("summarization failed, truncating instead")
		observability.RecordSummarization("truncated")
		return m.Truncate(messages, m.cfg.KeepRecent)
	}

	m.log.Info().Int("summarized", len(older)).Int("kept", len(recent)).Msg("conversation compacted")
	observability.RecordSummarization("summarized")

	out := make([]llm.Message, 0, len(systems)+1+len(recent))
	out = append(out, systems...)
	out = append(out, summary)
	out = append(out, recent...)
	return out
}

// Truncate keeps all system-role messages plus the most recent keepLast
// non-system messages. A non-positive keepLast uses MaxMessageHistory. It is
// a no-op when the history is already within bound.
func (m *Manager) Truncate(messages []llm.Message, keepLast int) []llm.Message {
	if keepLast <= 0 {
		keepLast = m.cfg.MaxMessageHistory
	}

	systems, rest := splitSystem(messages)
	if len(rest) <= keepLast {
		return messages
	}

	kept := rest[len(rest)-keepLast:]
	out := make([]llm.Message, 0, len(systems)+len(kept))
	out = append(out, systems...)
	out = append(out, kept...)
	return out
}

// Retrieve returns up to k history messages sharing words with the query,
// highest overlap first. Ties keep history order.
func (m *Manager) Retrieve(history []llm.Message, query string, k int) []Snippet {
	if k <= 0 {
		k = m.cfg.RetrievalK
	}

	start := time.Now()
	defer func() {
		observability.RecordMemorySearch(time.Since(start))
	}()

	fields := strings.Fields(strings.ToLower(query))
	words := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		words[f] = struct{}{}
	}
	if len(words) == 0 {
		return nil
	}

	var hits []Snippet
	for i, msg := range history {
		if msg.Content == "" {
			continue
		}
		score := knowledge.OverlapScore(msg.Content, words)
		if score <= 0 {
			continue
		}
		hits = append(hits, Snippet{
			Content: msg.Content,
			Role:    msg.Role,
			Index:   i,
			Score:   score,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// splitSystem separates system-role messages, preserving order on both sides.
func splitSystem(messages []llm.Message) (systems, rest []llm.Message) {
	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			systems = append(systems, msg)
		} else {
			rest = append(rest, msg)
		}
	}
	return systems, rest
}
