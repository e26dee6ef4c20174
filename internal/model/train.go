package model

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/logging"
)

// Example is one labeled training text.
type Example struct {
	Text  string
	Label string
}

// Options control training.
type Options struct {
	MinExamples  int
	TestFraction float64
	Folds        int
	Seed         uint64
}

// DefaultOptions returns the training defaults: 80/20 split, 5-fold CV, seed 42.
func DefaultOptions() Options {
	return Options{
		MinExamples:  10,
		TestFraction: 0.2,
		Folds:        5,
		Seed:         42,
	}
}

// Candidate is one point in the hyperparameter grid.
type Candidate struct {
	Kind  Kind
	Alpha float64 // naive Bayes smoothing
}

// Name renders the candidate for reports.
func (c Candidate) Name() string {
	if c.Kind == KindNaiveBayes {
		return fmt.Sprintf("%s(alpha=%g)", c.Kind, c.Alpha)
	}
	return string(c.Kind)
}

// Grid is the search space, in tie-break order.
func Grid() []Candidate {
	return []Candidate{
		{Kind: KindNaiveBayes, Alpha: 0.1},
		{Kind: KindNaiveBayes, Alpha: 0.5},
		{Kind: KindNaiveBayes, Alpha: 1.0},
		{Kind: KindCentroid},
	}
}

// CandidateScore is a candidate's mean cross-validation accuracy.
type CandidateScore struct {
	Name         string  `json:"name" msgpack:"name"`
	MeanAccuracy float64 `json:"mean_cv_accuracy" msgpack:"mean_cv_accuracy"`
}

// LabelMetrics is the held-out precision/recall/F1 of one label.
type LabelMetrics struct {
	Label     string  `json:"label" msgpack:"label"`
	Precision float64 `json:"precision" msgpack:"precision"`
	Recall    float64 `json:"recall" msgpack:"recall"`
	F1        float64 `json:"f1" msgpack:"f1"`
	Support   int     `json:"support" msgpack:"support"`
}

// Report describes a training run.
type Report struct {
	Examples     int              `json:"examples" msgpack:"examples"`
	Skipped      int              `json:"skipped" msgpack:"skipped"`
	TrainSize    int              `json:"train_size" msgpack:"train_size"`
	TestSize     int              `json:"test_size" msgpack:"test_size"`
	Stratified   bool             `json:"stratified" msgpack:"stratified"`
	Folds        int              `json:"folds" msgpack:"folds"`
	Candidates   []CandidateScore `json:"candidates" msgpack:"candidates"`
	Best         string           `json:"best" msgpack:"best"`
	TestAccuracy float64          `json:"test_accuracy" msgpack:"test_accuracy"`
	Labels       []LabelMetrics   `json:"labels" msgpack:"labels"`
}

// predictor is a fitted candidate used during model selection.
type predictor interface {
	predictLabel(tokens []string) string
}

func (nb *NaiveBayes) predictLabel(tokens []string) string {
	return nb.Labels[argmax(nb.predictTokens(tokens))]
}

func (m *Centroid) predictLabel(tokens []string) string {
	return m.Labels[argmax(m.decideTokens(tokens))]
}

// fit trains the candidate on docs. Classes are the sorted distinct labels.
func (c Candidate) fit(docs [][]string, labels []string) (predictor, *Artifact) {
	classes := distinct(labels)
	index := make(map[string]int, len(classes))
	for i, l := range classes {
		index[l] = i
	}
	y := make([]int, len(labels))
	for i, l := range labels {
		y[i] = index[l]
	}

	a := &Artifact{Version: ArtifactVersion, Kind: c.Kind}
	if c.Kind == KindNaiveBayes {
		a.NaiveBayes = fitNaiveBayes(docs, y, classes, c.Alpha)
		return a.NaiveBayes, a
	}
	a.Centroid = fitCentroid(docs, y, classes)
	return a.Centroid, a
}

// Train selects the best grid candidate by k-fold cross-validation on the
// training split, refits it on that split, and scores it on the held-out split.
//
// Examples with blank text or label are skipped. Fewer than MinExamples
// remaining is INSUFFICIENT_DATA. The split is stratified unless some label
// has fewer than two examples.
func Train(ctx context.Context, examples []Example, opts Options) (*Artifact, error) {
	logger := logging.From(ctx)

	var texts, labels []string
	for _, ex := range examples {
		if strings.TrimSpace(ex.Text) == "" || strings.TrimSpace(ex.Label) == "" {
			continue
		}
		texts = append(texts, ex.Text)
		labels = append(labels, ex.Label)
	}
	minExamples := opts.MinExamples
	if minExamples < 2 {
		minExamples = 2
	}
	if len(texts) < minExamples {
		return nil, errors.NewInsufficientData(len(texts), minExamples)
	}
	if len(distinct(labels)) < 2 {
		return nil, errors.NewInvalidRequest("training needs at least two distinct labels")
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	trainIdx, testIdx, stratified := split(labels, opts.TestFraction, rng)

	docs := tokenizeAll(texts)
	trainDocs, trainLabels := subset(docs, labels, trainIdx)
	testDocs, testLabels := subset(docs, labels, testIdx)

	folds := opts.Folds
	if folds > len(trainIdx) {
		folds = len(trainIdx)
	}

	report := &Report{
		Examples:   len(texts),
		Skipped:    len(examples) - len(texts),
		TrainSize:  len(trainIdx),
		TestSize:   len(testIdx),
		Stratified: stratified,
	}

	grid := Grid()
	best := grid[0]
	if folds >= 2 {
		report.Folds = folds
		assignment := foldAssignment(trainLabels, folds)
		bestScore := math.Inf(-1)
		for _, cand := range grid {
			if err := ctx.Err(); err != nil {
				return nil, errors.NewCancelled("train")
			}
			score := crossValidate(cand, trainDocs, trainLabels, assignment, folds)
			report.Candidates = append(report.Candidates, CandidateScore{Name: cand.Name(), MeanAccuracy: score})
			logger.Debug("evaluated candidate", "candidate", cand.Name(), "mean_cv_accuracy", score)
			if score > bestScore {
				best, bestScore = cand, score
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("train")
	}

	fitted, artifact := best.fit(trainDocs, trainLabels)
	predicted := make([]string, len(testDocs))
	for i, doc := range testDocs {
		predicted[i] = fitted.predictLabel(doc)
	}
	report.Best = best.Name()
	report.TestAccuracy = accuracy(predicted, testLabels)
	report.Labels = labelMetrics(predicted, testLabels)

	artifact.TrainedAt = time.Now().Unix()
	artifact.Report = report

	logger.Info("trained model",
		"best", report.Best,
		"examples", report.Examples,
		"test_accuracy", report.TestAccuracy,
	)
	return artifact, nil
}

// split partitions example indices into train and test sets. Each side
// gets at least one example per stratum when stratifying.
func split(labels []string, frac float64, rng *rand.Rand) (train, test []int, stratified bool) {
	groups := make(map[string][]int)
	for i, l := range labels {
		groups[l] = append(groups[l], i)
	}

	stratified = true
	for _, idx := range groups {
		if len(idx) < 2 {
			stratified = false
			break
		}
	}

	take := func(idx []int) {
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		n := int(math.Ceil(frac * float64(len(idx))))
		if n < 1 {
			n = 1
		}
		if n > len(idx)-1 {
			n = len(idx) - 1
		}
		test = append(test, idx[:n]...)
		train = append(train, idx[n:]...)
	}

	if stratified {
		for _, l := range distinct(labels) {
			take(groups[l])
		}
	} else {
		all := make([]int, len(labels))
		for i := range all {
			all[i] = i
		}
		take(all)
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test, stratified
}

// foldAssignment deals examples into k folds round-robin after grouping by
// label, which keeps label proportions roughly equal across folds.
func foldAssignment(labels []string, k int) []int {
	order := make([]int, len(labels))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return labels[order[a]] < labels[order[b]] })

	fold := make([]int, len(labels))
	for pos, i := range order {
		fold[i] = pos % k
	}
	return fold
}

func crossValidate(cand Candidate, docs [][]string, labels []string, fold []int, k int) float64 {
	total := 0.0
	for f := 0; f < k; f++ {
		var fitDocs, evalDocs [][]string
		var fitLabels, evalLabels []string
		for i := range docs {
			if fold[i] == f {
				evalDocs = append(evalDocs, docs[i])
				evalLabels = append(evalLabels, labels[i])
			} else {
				fitDocs = append(fitDocs, docs[i])
				fitLabels = append(fitLabels, labels[i])
			}
		}
		m, _ := cand.fit(fitDocs, fitLabels)
		predicted := make([]string, len(evalDocs))
		for i, doc := range evalDocs {
			predicted[i] = m.predictLabel(doc)
		}
		total += accuracy(predicted, evalLabels)
	}
	return total / float64(k)
}

func accuracy(predicted, actual []string) float64 {
	if len(actual) == 0 {
		return 0
	}
	correct := 0
	for i := range actual {
		if predicted[i] == actual[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(actual))
}

// labelMetrics reports per-label precision, recall, and F1 over every label
// that appears in either the predictions or the ground truth.
func labelMetrics(predicted, actual []string) []LabelMetrics {
	labels := distinct(append(append([]string(nil), predicted...), actual...))
	out := make([]LabelMetrics, 0, len(labels))
	for _, l := range labels {
		var tp, fp, fn int
		for i := range actual {
			switch {
			case predicted[i] == l && actual[i] == l:
				tp++
			case predicted[i] == l:
				fp++
			case actual[i] == l:
				fn++
			}
		}
		m := LabelMetrics{Label: l, Support: tp + fn}
		if tp+fp > 0 {
			m.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			m.Recall = float64(tp) / float64(tp+fn)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		out = append(out, m)
	}
	return out
}

func subset(docs [][]string, labels []string, idx []int) ([][]string, []string) {
	d := make([][]string, len(idx))
	l := make([]string, len(idx))
	for i, j := range idx {
		d[i] = docs[j]
		l[i] = labels[j]
	}
	return d, l
}

// distinct returns the sorted set of values.
func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// argmax returns the first index holding the maximum value.
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
