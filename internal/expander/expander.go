// Package expander widens retrieval recall by generating alternate phrasings
// of a question. Expansion only reformulates the question; it never adds
// answer content.
package expander

import (
	"context"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// MaxVariants bounds the expanded query set, original included.
const MaxVariants = 5

const maxSynonymsPerTerm = 2

type synonymEntry struct {
	term     string
	synonyms []string
}

// domainSynonyms maps terreiro vocabulary to alternate phrasings found in
// the collection. Ordered so truncated expansions are deterministic.
var domainSynonyms = []synonymEntry{
	{"orixá", []string{"orixás", "orishas", "divindades", "entidades"}},
	{"exu", []string{"exús", "compadre", "guardião"}},
	{"pomba gira", []string{"pombagira", "maria padilha", "moça"}},
	{"preto velho", []string{"pretos velhos", "vovô", "vovó", "pai", "mãe"}},
	{"caboclo", []string{"caboclos", "índio", "indígena"}},
	{"erva", []string{"ervas", "folha", "folhas", "planta", "plantas"}},
	{"terreiro", []string{"terreiros", "casa", "centro", "templo"}},
	{"gira", []string{"giras", "trabalho", "sessão"}},
	{"incorporação", []string{"incorporar", "virar", "baixar", "manifestar"}},
	{"oferenda", []string{"oferendas", "ebó", "despacho"}},
	{"pontos", []string{"cantigas", "cantos", "toadas"}},
	{"ogum", []string{"oguns", "guerreiro"}},
	{"oxossi", []string{"oxóssi", "caçador"}},
	{"iemanjá", []string{"yemanjá", "rainha do mar", "mãe d'água"}},
	{"oxum", []string{"oxún", "senhora das águas doces"}},
	{"xangô", []string{"shangô", "rei"}},
	{"iansã", []string{"yansã", "oiá", "senhora dos ventos"}},
	{"oxalá", []string{"oxalah", "pai maior"}},
	{"umbanda", []string{"religião", "doutrina", "espiritismo"}},
}

// Specific questions degrade under expansion; generic ones benefit.
var (
	specificMarkers = []string{
		"como fazer", "passo a passo", "exemplo de",
		"diferença entre", "quando usar", "por que",
	}
	genericMarkers = []string{
		"o que é", "o que são", "qual", "quais",
		"significado", "definição", "conceito",
	}
)

// Rewriter produces a raw completion for a prompt. Satisfied by
// generator.GroqClient.
type Rewriter interface {
	Rewrite(ctx context.Context, prompt string) (string, error)
}

// Expander generates query variants with a process-lifetime cache. An
// optional generative rewriter adds paraphrases; any rewriter failure
// degrades to the heuristic variants rather than failing the request.
type Expander struct {
	rewriter Rewriter
	useLLM   bool

	mu    sync.Mutex
	cache map[string][]string
}

// New creates an Expander. rewriter may be nil, which disables the
// generative path.
func New(rewriter Rewriter, useLLM bool) *Expander {
	return &Expander{
		rewriter: rewriter,
		useLLM:   useLLM && rewriter != nil,
		cache:    make(map[string][]string),
	}
}

// Expand returns query variants for the question, the original always first.
// Results are cached per distinct question for the process lifetime.
func (e *Expander) Expand(ctx context.Context, question string) []string {
	e.mu.Lock()
	if cached, ok := e.cache[question]; ok {
		e.mu.Unlock()
		out := make([]string, len(cached))
		copy(out, cached)
		return out
	}
	e.mu.Unlock()

	if !ShouldExpand(question) {
		return []string{question}
	}

	variants := expandWithSynonyms(question)
	if e.useLLM {
		variants = appendUnique(variants, e.rewrite(ctx, question)...)
	}
	if len(variants) > MaxVariants {
		variants = variants[:MaxVariants]
	}

	e.mu.Lock()
	e.cache[question] = variants
	e.mu.Unlock()

	log.Debug().Str("question", question).Int("variants", len(variants)).Msg("query expanded")

	out := make([]string, len(variants))
	copy(out, variants)
	return out
}

// ClearCache drops all cached expansions.
func (e *Expander) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string][]string)
}

// ShouldExpand is the heuristic gate. Very short and very long questions are
// skipped, specific questions are skipped, generic questions are forced, and
// medium-length questions expand by default.
func ShouldExpand(question string) bool {
	words := strings.Fields(question)
	if len(words) < 3 || len(words) > 15 {
		return false
	}

	lower := strings.ToLower(question)
	for _, marker := range specificMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	for _, marker := range genericMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	return len(words) <= 10
}

// expandWithSynonyms substitutes domain synonyms into the question. The
// original question is always first; variants are deduplicated
// case-insensitively.
func expandWithSynonyms(question string) []string {
	lower := strings.ToLower(question)
	variants := []string{question}

	for _, entry := range domainSynonyms {
		if !strings.Contains(lower, entry.term) {
			continue
		}
		limit := maxSynonymsPerTerm
		if limit > len(entry.synonyms) {
			limit = len(entry.synonyms)
		}
		for _, syn := range entry.synonyms[:limit] {
			variant := capitalize(strings.ReplaceAll(lower, entry.term, syn))
			variants = appendUnique(variants, variant)
		}
	}

	if len(variants) > MaxVariants {
		variants = variants[:MaxVariants]
	}
	return variants
}

// rewrite asks the generative collaborator for up to two paraphrases. Any
// failure returns nothing.
func (e *Expander) rewrite(ctx context.Context, question string) []string {
	prompt := "Gere 2 reformulações alternativas da pergunta abaixo que capturem a mesma intenção com palavras diferentes. " +
		"Seja conciso (máximo 15 palavras por reformulação) e retorne apenas as 2 reformulações, separadas por |.\n\n" +
		"PERGUNTA: " + question

	text, err := e.rewriter.Rewrite(ctx, prompt)
	if err != nil || text == "" {
		log.Warn().Err(err).Msg("generative query rewrite unavailable")
		return nil
	}

	var out []string
	for _, part := range strings.Split(text, "|") {
		part = strings.TrimSpace(part)
		if utf8.RuneCountInString(part) > 5 {
			out = append(out, part)
		}
		if len(out) == 2 {
			break
		}
	}
	return out
}

func appendUnique(variants []string, more ...string) []string {
	for _, v := range more {
		dup := false
		for _, existing := range variants {
			if strings.EqualFold(existing, v) {
				dup = true
				break
			}
		}
		if !dup {
			variants = append(variants, v)
		}
	}
	return variants
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
