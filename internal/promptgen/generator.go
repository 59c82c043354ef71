// Package promptgen synthesizes deterministic RAG-style prompts for
// benchmarking: a long retrieved-context block followed by a short query.
package promptgen

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"

	"github.com/ragbench/ragbench/pkg/models"
)

// charsPerToken is the character-count heuristic used to approximate token
// length without a tokenizer. Realized prompts land within the configured
// tolerance band of the nominal length, not exactly on it.
const charsPerToken = 4

var topics = []string{
	"machine learning", "neural networks", "transformer architecture",
	"attention mechanisms", "language models", "retrieval augmented generation",
	"vector databases", "embedding models", "semantic search",
	"knowledge graphs", "information retrieval", "natural language processing",
}

var queries = []string{
	"What are the main findings?",
	"Summarize the key points.",
	"What is the conclusion?",
	"Explain the main idea.",
	"What are the important details?",
	"Give me a brief overview.",
	"What does this tell us?",
	"What is the summary?",
}

const paragraphTemplate = `
The field of %s has seen significant advances in recent years.
Researchers have developed novel approaches that combine multiple techniques
to achieve state-of-the-art performance. These methods leverage large-scale
datasets and computational resources to train models that can understand
and generate human-like text. The key innovation lies in the ability to
process and reason over vast amounts of information efficiently.
`

// Config holds prompt generation parameters.
type Config struct {
	ContextLengths []int // nominal token lengths, one group per entry
	NumSamples     int   // samples per context length
	Seed           int64 // base seed; same seed, same output bytes

	// TolerancePct is the accepted relative deviation of a realized
	// prompt's approximate token length from nominal.
	TolerancePct float64
}

// Generator produces prompt records for a configured workload.
type Generator struct {
	cfg    Config
	logger *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger used for progress reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// New creates a Generator. Configuration errors are rejected here, before
// any record can be produced.
func New(cfg Config, opts ...Option) (*Generator, error) {
	if len(cfg.ContextLengths) == 0 {
		return nil, fmt.Errorf("at least one context length is required")
	}
	// Deduplicate so every (context_length, sample_id) key is emitted once.
	seen := make(map[int]bool, len(cfg.ContextLengths))
	lengths := make([]int, 0, len(cfg.ContextLengths))
	for _, l := range cfg.ContextLengths {
		if l <= 0 {
			return nil, fmt.Errorf("context lengths must be positive, got %d", l)
		}
		if seen[l] {
			continue
		}
		seen[l] = true
		lengths = append(lengths, l)
	}
	cfg.ContextLengths = lengths
	if cfg.NumSamples <= 0 {
		return nil, fmt.Errorf("num samples must be positive, got %d", cfg.NumSamples)
	}
	if cfg.TolerancePct <= 0 {
		cfg.TolerancePct = 0.10
	}

	g := &Generator{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate produces exactly len(ContextLengths) × NumSamples records,
// ordered by context length ascending, then sample ID ascending. The
// (context_length, sample_id) keys cover the full Cartesian product.
func (g *Generator) Generate() []models.PromptRecord {
	lengths := make([]int, len(g.cfg.ContextLengths))
	copy(lengths, g.cfg.ContextLengths)
	sort.Ints(lengths)

	records := make([]models.PromptRecord, 0, len(lengths)*g.cfg.NumSamples)
	for _, ctxLen := range lengths {
		for sampleID := 0; sampleID < g.cfg.NumSamples; sampleID++ {
			rng := rand.New(rand.NewSource(sampleSeed(g.cfg.Seed, ctxLen, sampleID)))
			context := synthesizeContext(rng, ctxLen)
			query := queries[rng.Intn(len(queries))]

			records = append(records, models.PromptRecord{
				ContextLength: ctxLen,
				SampleID:      sampleID,
				Prompt:        formatPrompt(context, query),
				Query:         query,
			})
		}
	}

	g.logger.Info("generated prompts",
		slog.Int("count", len(records)),
		slog.Int("context_lengths", len(lengths)),
		slog.Int("samples_per_length", g.cfg.NumSamples))

	return records
}

// ApproxTokens estimates the token count of text using the generator's
// character heuristic.
func ApproxTokens(text string) int {
	return len(text) / charsPerToken
}

// WithinTolerance reports whether a realized token count falls inside the
// accepted band around the nominal context length.
func (g *Generator) WithinTolerance(nominal, realized int) bool {
	dev := float64(realized-nominal) / float64(nominal)
	if dev < 0 {
		dev = -dev
	}
	return dev <= g.cfg.TolerancePct
}

// synthesizeContext builds document-like filler text of approximately
// ctxLen tokens by appending topic paragraphs until the character target is
// met. The final paragraph may overshoot; at the context lengths this
// harness targets the overshoot stays well inside the tolerance band.
func synthesizeContext(rng *rand.Rand, ctxLen int) string {
	targetChars := ctxLen * charsPerToken

	var b strings.Builder
	b.Grow(targetChars + len(paragraphTemplate))
	for b.Len() < targetChars {
		topic := topics[rng.Intn(len(topics))]
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, paragraphTemplate, topic)
	}
	return b.String()
}

func formatPrompt(context, query string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:", context, query)
}

// sampleSeed derives a per-record seed from the base seed and the record
// key, so each prompt is independently reproducible.
func sampleSeed(base int64, ctxLen, sampleID int) int64 {
	const prime = 1099511628211
	h := uint64(base)
	h = h*prime + uint64(ctxLen)
	h = h*prime + uint64(sampleID)
	return int64(h)
}
