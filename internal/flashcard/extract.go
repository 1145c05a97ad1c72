package flashcard

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"studybot/internal/vectorstore"
)

const (
	maxExtracted       = 6
	excerptRunes       = 500
	syntheticChunks    = 3
	minSyntheticChunk  = 100
	minSentence        = 30
	questionPrefixRune = 80
)

// Card is a question/answer pair pulled out of model output.
type Card struct {
	Question    string
	Answer      string
	Difficulty  string
	Tags        []string
	SourceChunk string
}

// Extractor is one stage of the extraction chain.
type Extractor interface {
	Name() string
	Extract(raw string, chunks []vectorstore.Chunk) []Card
}

// Chain runs its stages in order and keeps the first non-empty result.
type Chain []Extractor

func DefaultChain() Chain {
	return Chain{RegexExtractor{}, LinePairExtractor{}, SyntheticExtractor{}}
}

// Extract returns at most six cards and the name of the stage that produced
// them. The stage is "none" when every stage came up empty.
func (c Chain) Extract(raw string, chunks []vectorstore.Chunk) ([]Card, string) {
	cleaned := cleanResponse(raw)
	for _, stage := range c {
		cards := stage.Extract(cleaned, chunks)
		if len(cards) == 0 {
			continue
		}
		if len(cards) > maxExtracted {
			cards = cards[:maxExtracted]
		}
		return cards, stage.Name()
	}
	return nil, "none"
}

var (
	fenceOpen  = regexp.MustCompile("```json\\s*")
	fenceClose = regexp.MustCompile("```\\s*$")
)

func cleanResponse(s string) string {
	s = fenceOpen.ReplaceAllString(s, "")
	return fenceClose.ReplaceAllString(s, "")
}

// RegexExtractor finds "question": "...", "answer": "..." pairs anywhere in
// the text, valid JSON or not.
type RegexExtractor struct{}

var pairPattern = regexp.MustCompile(`(?i)"question"\s*:\s*"([^"]*)",?\s*"answer"\s*:\s*"([^"]*)"`)

func (RegexExtractor) Name() string { return "regex" }

func (RegexExtractor) Extract(raw string, chunks []vectorstore.Chunk) []Card {
	var cards []Card
	for i, m := range pairPattern.FindAllStringSubmatch(raw, -1) {
		q := strings.TrimSpace(m[1])
		a := strings.TrimSpace(m[2])
		if q == "" || a == "" {
			continue
		}
		cards = append(cards, newCard(q, a, chunkExcerpt(chunks, i)))
	}
	return cards
}

// LinePairExtractor treats a line containing "?" followed by a longer line
// without one as a question and its answer.
type LinePairExtractor struct{}

var (
	questionNoise = []*regexp.Regexp{
		regexp.MustCompile(`^\s*[\d.-]+\s*`),
		regexp.MustCompile(`(?i)^\s*"question"\s*:\s*"`),
		regexp.MustCompile(`(?i)^\s*\{?\s*"question"\s*:\s*"`),
		regexp.MustCompile(`"\s*,?\s*$`),
	}
	answerNoise = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\s*"answer"\s*:\s*"`),
		regexp.MustCompile(`"\s*,?\s*\}?\s*$`),
	}
)

func (LinePairExtractor) Name() string { return "line_pair" }

func (LinePairExtractor) Extract(raw string, chunks []vectorstore.Chunk) []Card {
	var lines []string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	var cards []Card
	for i := 0; i+1 < len(lines); i++ {
		cur, next := lines[i], lines[i+1]
		if !strings.Contains(cur, "?") || strings.Contains(next, "?") || runeLen(next) <= 10 {
			continue
		}
		q := strings.TrimSpace(strip(cur, questionNoise))
		a := strings.TrimSpace(strip(next, answerNoise))
		if runeLen(q) > 5 && runeLen(a) > 5 {
			cards = append(cards, newCard(q, a, chunkExcerpt(chunks, len(cards))))
		}
	}
	return cards
}

// SyntheticExtractor ignores the model output and builds cards from the
// leading sentences of the first chunks. It yields a card for any chunk with
// enough prose.
type SyntheticExtractor struct{}

var sentenceBreak = regexp.MustCompile(`[.!?]`)

func (SyntheticExtractor) Name() string { return "synthetic" }

func (SyntheticExtractor) Extract(_ string, chunks []vectorstore.Chunk) []Card {
	n := len(chunks)
	if n > syntheticChunks {
		n = syntheticChunks
	}

	var cards []Card
	for _, c := range chunks[:n] {
		content := strings.TrimSpace(c.Text)
		if runeLen(content) <= minSyntheticChunk {
			continue
		}
		var sentences []string
		for _, s := range sentenceBreak.Split(content, -1) {
			if s = strings.TrimSpace(s); runeLen(s) > minSentence {
				sentences = append(sentences, s)
			}
		}
		if len(sentences) == 0 {
			continue
		}

		first := sentences[0]
		rest := sentences[1:]
		if len(rest) > 2 {
			rest = rest[:2]
		}
		answer := strings.Join(rest, ". ")
		if answer == "" {
			answer = first
		}
		question := `Based on the document, what can you tell me about: "` + truncateRunes(first, questionPrefixRune) + `..."?`
		cards = append(cards, newCard(question, answer, truncateRunes(content, excerptRunes)))
	}
	return cards
}

func newCard(q, a, source string) Card {
	return Card{
		Question:    q,
		Answer:      a,
		Difficulty:  DifficultyMedium,
		Tags:        []string{DefaultTag},
		SourceChunk: source,
	}
}

func strip(s string, patterns []*regexp.Regexp) string {
	for _, p := range patterns {
		s = p.ReplaceAllString(s, "")
	}
	return s
}

func chunkExcerpt(chunks []vectorstore.Chunk, i int) string {
	if len(chunks) == 0 {
		return ""
	}
	return truncateRunes(chunks[i%len(chunks)].Text, excerptRunes)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func truncateRunes(s string, n int) string {
	if runeLen(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
