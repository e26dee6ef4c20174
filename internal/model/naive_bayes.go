package model

import (
	"math"
)

// NaiveBayes is a multinomial naive Bayes classifier over term counts.
// It exposes calibrated class probabilities.
type NaiveBayes struct {
	Labels         []string    `json:"classes" msgpack:"classes"`
	Alpha          float64     `json:"alpha" msgpack:"alpha"`
	Vocab          Vocabulary  `json:"vocab" msgpack:"vocab"`
	ClassLogPrior  []float64   `json:"class_log_prior" msgpack:"class_log_prior"`
	FeatureLogProb [][]float64 `json:"feature_log_prob" msgpack:"feature_log_prob"`
}

// fitNaiveBayes trains on tokenised docs. labels index into classes.
func fitNaiveBayes(docs [][]string, labels []int, classes []string, alpha float64) *NaiveBayes {
	vocab := buildVocabulary(docs)
	nClasses, nFeatures := len(classes), vocab.Size()

	classCount := make([]float64, nClasses)
	featureCount := make([][]float64, nClasses)
	for c := range featureCount {
		featureCount[c] = make([]float64, nFeatures)
	}
	for i, doc := range docs {
		c := labels[i]
		classCount[c]++
		for _, tf := range vocab.counts(doc) {
			featureCount[c][tf.index] += tf.count
		}
	}

	nb := &NaiveBayes{
		Labels:         append([]string(nil), classes...),
		Alpha:          alpha,
		Vocab:          vocab,
		ClassLogPrior:  make([]float64, nClasses),
		FeatureLogProb: make([][]float64, nClasses),
	}
	total := float64(len(docs))
	for c := 0; c < nClasses; c++ {
		nb.ClassLogPrior[c] = math.Log(classCount[c] / total)

		sum := 0.0
		for _, v := range featureCount[c] {
			sum += v
		}
		denom := math.Log(sum + alpha*float64(nFeatures))
		nb.FeatureLogProb[c] = make([]float64, nFeatures)
		for j, v := range featureCount[c] {
			nb.FeatureLogProb[c][j] = math.Log(v+alpha) - denom
		}
	}
	return nb
}

// Classes returns labels aligned with PredictProba output.
func (nb *NaiveBayes) Classes() []string {
	return nb.Labels
}

// PredictProba returns the posterior probability of each class.
func (nb *NaiveBayes) PredictProba(text string) []float64 {
	return nb.predictTokens(tokenizeAll([]string{text})[0])
}

func (nb *NaiveBayes) predictTokens(tokens []string) []float64 {
	counts := nb.Vocab.counts(tokens)
	jll := make([]float64, len(nb.Labels))
	for c := range jll {
		s := nb.ClassLogPrior[c]
		for _, tf := range counts {
			s += tf.count * nb.FeatureLogProb[c][tf.index]
		}
		jll[c] = s
	}
	return softmax(jll)
}

// softmax normalises log-likelihoods to probabilities with log-sum-exp.
func softmax(logits []float64) []float64 {
	maxv := math.Inf(-1)
	for _, v := range logits {
		if v > maxv {
			maxv = v
		}
	}
	out := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		out[i] = math.Exp(v - maxv)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
