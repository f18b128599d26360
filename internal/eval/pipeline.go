package eval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/language"

	"speechtune/internal/dataset"
	"speechtune/internal/errs"
	"speechtune/internal/logging"
	"speechtune/internal/method"
	"speechtune/internal/model"
)

// Task selects the evaluation metric.
type Task string

const (
	TaskTranscribe Task = "transcribe"
	TaskTranslate  Task = "translate"
)

// ParseTask validates a task token against the closed set.
func ParseTask(raw string) (Task, error) {
	switch Task(strings.ToLower(strings.TrimSpace(raw))) {
	case TaskTranscribe:
		return TaskTranscribe, nil
	case TaskTranslate:
		return TaskTranslate, nil
	default:
		return "", errs.Wrap(errs.ErrConfig, "eval", "parse task",
			fmt.Sprintf("unknown task %q (expected transcribe or translate)", raw), nil)
	}
}

// ValidateLanguage checks a BCP 47 target-language tag for translation runs.
func ValidateLanguage(tag string) error {
	if strings.TrimSpace(tag) == "" {
		return nil
	}
	if _, err := language.Parse(tag); err != nil {
		return errs.Wrap(errs.ErrConfig, "eval", "parse language",
			fmt.Sprintf("invalid language tag %q", tag), err)
	}
	return nil
}

// Decoder produces a text hypothesis from audio features. The heavy decode
// runtime lives behind this boundary.
type Decoder interface {
	Decode(ctx context.Context, features []float32) (string, error)
}

// Prediction is one transient evaluation record: the audio reference, the
// model hypothesis, and the ground truth it was scored against.
type Prediction struct {
	ID         string
	Audio      string
	Hypothesis string
	Reference  string
}

// Report is the evaluation result summary.
type Report struct {
	Task        Task
	MetricName  string
	MetricValue float64
	Items       int
	Predictions []Prediction
}

// Pipeline drives inference over a held-out set and computes the corpus
// metric for the configured task.
type Pipeline struct {
	decoder Decoder
	task    Task
	logger  *slog.Logger
}

// NewPipeline wires an evaluation pipeline around a decoder.
func NewPipeline(decoder Decoder, task Task, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{decoder: decoder, task: task, logger: logger}
}

// Run decodes every item of the test manifest and aggregates the task
// metric. An empty test set is an evaluation error; so is a translation run
// over records that carry no translation reference.
func (p *Pipeline) Run(ctx context.Context, manifest *dataset.Manifest) (*Report, error) {
	if manifest == nil || len(manifest.Records) == 0 {
		return nil, errs.Wrap(errs.ErrEvaluation, "eval", "run", "test set is empty", nil)
	}

	var wer WERAccumulator
	var bleu BLEUAccumulator
	report := &Report{Task: p.task, Items: len(manifest.Records)}

	for _, rec := range manifest.Records {
		if err := ctx.Err(); err != nil {
			return nil, errs.Wrap(errs.ErrEvaluation, "eval", "run", "canceled", err)
		}
		reference, err := p.reference(rec)
		if err != nil {
			return nil, err
		}
		features, err := manifest.LoadFeatures(rec)
		if err != nil {
			return nil, errs.Wrap(errs.ErrEvaluation, "eval", "load features", rec.ID, err)
		}
		hypothesis, err := p.decoder.Decode(ctx, features)
		if err != nil {
			return nil, errs.Wrap(errs.ErrEvaluation, "eval", "decode", rec.ID, err)
		}

		switch p.task {
		case TaskTranslate:
			bleu.Add(hypothesis, reference)
		default:
			wer.Add(hypothesis, reference)
		}
		report.Predictions = append(report.Predictions, Prediction{
			ID:         rec.ID,
			Audio:      rec.Audio,
			Hypothesis: hypothesis,
			Reference:  reference,
		})
	}

	switch p.task {
	case TaskTranslate:
		report.MetricName = "bleu"
		report.MetricValue = bleu.BLEU()
	default:
		report.MetricName = "wer"
		report.MetricValue = wer.WER()
	}

	p.logger.Info("evaluation finished",
		logging.String("task", string(p.task)),
		logging.String("metric", report.MetricName),
		logging.Float64("value", report.MetricValue),
		logging.Int("items", report.Items),
	)
	return report, nil
}

func (p *Pipeline) reference(rec dataset.Record) (string, error) {
	if p.task == TaskTranslate {
		if strings.TrimSpace(rec.Translation) == "" {
			return "", errs.Wrap(errs.ErrEvaluation, "eval", "run",
				fmt.Sprintf("record %q has no translation reference", rec.ID), nil)
		}
		return rec.Translation, nil
	}
	return rec.Text, nil
}

// GreedyDecoder scores the vocabulary against the final hidden state and
// emits the top-scoring tokens. It is the in-process decode stand-in for the
// external speech runtime.
type GreedyDecoder struct {
	model     *model.Model
	strategy  method.Strategy
	maxTokens int
}

// NewGreedyDecoder builds a decoder over a model with an attached strategy.
// The strategy may be nil to decode with the frozen base alone.
func NewGreedyDecoder(m *model.Model, strat method.Strategy, maxTokens int) *GreedyDecoder {
	if maxTokens < 1 {
		maxTokens = 8
	}
	return &GreedyDecoder{model: m, strategy: strat, maxTokens: maxTokens}
}

// Decode runs the intervened forward pass and returns the hypothesis text.
func (d *GreedyDecoder) Decode(ctx context.Context, features []float32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var hook model.Hook
	if d.strategy != nil {
		hook = d.strategy
	}
	acts, err := d.model.Forward(features, hook)
	if err != nil {
		return "", err
	}
	logits, err := d.model.Head.MatVec(acts.Out)
	if err != nil {
		return "", err
	}

	type scored struct {
		index int
		score float32
	}
	ranked := make([]scored, len(logits))
	for i, s := range logits {
		ranked[i] = scored{index: i, score: s}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].index < ranked[j].index
	})

	n := d.maxTokens
	if n > len(ranked) {
		n = len(ranked)
	}
	words := make([]string, 0, n)
	for _, r := range ranked[:n] {
		if r.score <= 0 && len(words) > 0 {
			break
		}
		words = append(words, d.model.Vocab[r.index])
	}
	return strings.Join(words, " "), nil
}
