package gazetteer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Matcher resolves noisy transcribed speech to a canonical place name.
//
// One algorithm, one threshold. Matching is token-aware: a place name may
// appear anywhere inside the utterance, so every contiguous token window of
// the same length as the candidate is scored and the best window wins.
// A wrong suburb is worse than no suburb, so the threshold favors precision.

const defaultThreshold = 0.78

type Matcher struct {
	places    []string
	threshold float64
}

// New builds a matcher over the given canonical place names.
// An empty threshold argument via NewWithThreshold keeps the default.
func New(places []string) *Matcher {
	return NewWithThreshold(places, defaultThreshold)
}

func NewWithThreshold(places []string, threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = defaultThreshold
	}
	return &Matcher{places: places, threshold: threshold}
}

// LoadFile reads canonical place names from path, one per line. Blank lines
// and lines starting with # are skipped. An empty file is an error: a
// matcher with no candidates would silently confirm nothing.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gazetteer: %w", err)
	}
	defer f.Close()

	var places []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		places = append(places, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("gazetteer: read %s: %w", path, err)
	}
	if len(places) == 0 {
		return nil, fmt.Errorf("gazetteer: %s contains no place names", path)
	}
	return places, nil
}

// Match returns the canonical place name for text, or "" when no candidate
// clears the threshold. Callers must treat "" as "use raw text, unconfirmed".
func (m *Matcher) Match(text string) string {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return ""
	}

	best := ""
	bestScore := 0.0
	for _, place := range m.places {
		score := m.scorePlace(place, tokens)
		if score > bestScore {
			best, bestScore = place, score
		}
	}
	if bestScore < m.threshold {
		return ""
	}
	return best
}

func (m *Matcher) scorePlace(place string, tokens []string) float64 {
	placeTokens := tokenize(place)
	n := len(placeTokens)
	if n == 0 || n > len(tokens) {
		return 0
	}
	target := strings.Join(placeTokens, " ")

	best := 0.0
	for i := 0; i+n <= len(tokens); i++ {
		window := strings.Join(tokens[i:i+n], " ")
		if s := similarity(window, target); s > best {
			best = s
		}
	}
	return best
}

// similarity is an edit-distance ratio in [0,1]: identical strings score 1.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len(a), len(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein is the classic two-row dynamic program over bytes.
// Input has already been lowercased and stripped, so bytes are fine here.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// tokenize lowercases, strips punctuation except internal hyphens and
// apostrophes, and collapses whitespace.
func tokenize(text string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || r == '\'':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	fields := strings.Fields(b.String())
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-'")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
