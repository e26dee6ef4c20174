package model

import (
	"sort"

	"github.com/hpungsan/sift/internal/textutil"
)

// Vocabulary maps terms to feature indices.
type Vocabulary struct {
	Terms map[string]int `json:"terms" msgpack:"terms"`
}

// termFreq is one non-zero feature of a sparse document vector.
type termFreq struct {
	index int
	count float64
}

// buildVocabulary assigns indices to every term seen in docs, in sorted
// order so the same corpus always yields the same feature layout.
func buildVocabulary(docs [][]string) Vocabulary {
	seen := make(map[string]struct{})
	for _, doc := range docs {
		for _, tok := range doc {
			seen[tok] = struct{}{}
		}
	}
	terms := make([]string, 0, len(seen))
	for t := range seen {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	v := Vocabulary{Terms: make(map[string]int, len(terms))}
	for i, t := range terms {
		v.Terms[t] = i
	}
	return v
}

// Size returns the number of features.
func (v Vocabulary) Size() int {
	return len(v.Terms)
}

// counts returns term counts for known tokens, sorted by feature index.
// Unknown tokens are ignored.
func (v Vocabulary) counts(tokens []string) []termFreq {
	byIndex := make(map[int]float64)
	for _, tok := range tokens {
		if idx, ok := v.Terms[tok]; ok {
			byIndex[idx]++
		}
	}
	out := make([]termFreq, 0, len(byIndex))
	for idx, c := range byIndex {
		out = append(out, termFreq{index: idx, count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

func tokenizeAll(texts []string) [][]string {
	docs := make([][]string, len(texts))
	for i, t := range texts {
		docs[i] = textutil.Tokenize(t)
	}
	return docs
}
