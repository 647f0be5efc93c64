package pattern

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode"
)

// HashResult contains both exact and normalized hashes for a pattern
// description. FullHash identifies the exact description; NormalizedHash
// (lowercase, no punctuation, stopwords removed, sorted words) groups
// near-identical descriptions for fuzzy matching.
type HashResult struct {
	FullHash       string `json:"full_hash"`
	NormalizedHash string `json:"normalized_hash"`
}

// Hasher normalizes and hashes pattern descriptions.
type Hasher struct {
	stopwords map[string]bool
}

// NewHasher creates a Hasher with the default English stopword set.
func NewHasher() *Hasher {
	return &Hasher{stopwords: defaultStopwords()}
}

func defaultStopwords() map[string]bool {
	words := []string{
		"the", "a", "an", "is", "are", "was", "were", "be", "been", "being",
		"have", "has", "had", "do", "does", "did", "will", "would", "could",
		"should", "may", "might", "must", "shall", "can",
		"to", "of", "in", "for", "on", "with", "at", "by", "from", "as",
		"into", "through", "before", "after", "between", "under", "over",
		"and", "but", "or", "nor", "so", "yet", "not", "only", "also",
		"this", "that", "these", "those", "it", "its",
		"all", "each", "every", "any", "some",
	}

	stopwords := make(map[string]bool, len(words))
	for _, w := range words {
		stopwords[w] = true
	}
	return stopwords
}

// Hash produces a HashResult for a description scoped by action type.
func (h *Hasher) Hash(description, actionType string) HashResult {
	input := description
	if actionType != "" {
		input = actionType + "\n" + description
	}

	return HashResult{
		FullHash:       sha256Hex(input),
		NormalizedHash: sha256Hex(strings.Join(h.Tokens(input), " ")),
	}
}

// Tokens returns the normalized, stopword-filtered, sorted word set of the
// input. Used both for the normalized hash and for overlap scoring.
func (h *Hasher) Tokens(input string) []string {
	lower := strings.ToLower(input)

	var cleaned strings.Builder
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			cleaned.WriteRune(r)
		} else {
			cleaned.WriteRune(' ')
		}
	}

	words := strings.Fields(cleaned.String())
	seen := make(map[string]bool, len(words))
	filtered := make([]string, 0, len(words))
	for _, w := range words {
		if h.stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		filtered = append(filtered, w)
	}

	sort.Strings(filtered)
	return filtered
}

// Overlap computes the Jaccard overlap of two token sets in [0,1].
func Overlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]bool, len(a))
	for _, w := range a {
		set[w] = true
	}

	shared := 0
	for _, w := range b {
		if set[w] {
			shared++
		}
	}

	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
