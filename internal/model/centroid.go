package model

import (
	"math"
)

// Centroid is a TF-IDF nearest-centroid classifier. It has no calibrated
// probabilities; DecisionFunction returns cosine similarity to each class
// centroid.
type Centroid struct {
	Labels    []string    `json:"classes" msgpack:"classes"`
	Vocab     Vocabulary  `json:"vocab" msgpack:"vocab"`
	IDF       []float64   `json:"idf" msgpack:"idf"`
	Centroids [][]float64 `json:"centroids" msgpack:"centroids"`
}

// fitCentroid trains on tokenised docs. labels index into classes.
// IDF is smoothed: ln((1+n)/(1+df)) + 1.
func fitCentroid(docs [][]string, labels []int, classes []string) *Centroid {
	vocab := buildVocabulary(docs)
	nFeatures := vocab.Size()

	df := make([]float64, nFeatures)
	counted := make([][]termFreq, len(docs))
	for i, doc := range docs {
		counted[i] = vocab.counts(doc)
		for _, tf := range counted[i] {
			df[tf.index]++
		}
	}
	n := float64(len(docs))
	idf := make([]float64, nFeatures)
	for j := range idf {
		idf[j] = math.Log((1+n)/(1+df[j])) + 1
	}

	m := &Centroid{
		Labels:    append([]string(nil), classes...),
		Vocab:     vocab,
		IDF:       idf,
		Centroids: make([][]float64, len(classes)),
	}
	for c := range m.Centroids {
		m.Centroids[c] = make([]float64, nFeatures)
	}
	for i, tfs := range counted {
		c := labels[i]
		for _, w := range m.weigh(tfs) {
			m.Centroids[c][w.index] += w.count
		}
	}
	for c := range m.Centroids {
		l2normalize(m.Centroids[c])
	}
	return m
}

// weigh applies IDF and L2 normalisation to sparse term counts.
func (m *Centroid) weigh(tfs []termFreq) []termFreq {
	out := make([]termFreq, len(tfs))
	norm := 0.0
	for i, tf := range tfs {
		w := tf.count * m.IDF[tf.index]
		out[i] = termFreq{index: tf.index, count: w}
		norm += w * w
	}
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i := range out {
		out[i].count /= norm
	}
	return out
}

// Classes returns labels aligned with DecisionFunction output.
func (m *Centroid) Classes() []string {
	return m.Labels
}

// DecisionFunction returns the cosine similarity between text and each centroid.
func (m *Centroid) DecisionFunction(text string) []float64 {
	return m.decideTokens(tokenizeAll([]string{text})[0])
}

func (m *Centroid) decideTokens(tokens []string) []float64 {
	vec := m.weigh(m.Vocab.counts(tokens))
	out := make([]float64, len(m.Centroids))
	for c, centroid := range m.Centroids {
		s := 0.0
		for _, w := range vec {
			s += w.count * centroid[w.index]
		}
		out[c] = s
	}
	return out
}

func l2normalize(v []float64) {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
}
