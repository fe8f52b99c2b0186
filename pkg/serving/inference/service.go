package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/synaptica-ai/symptomscan/pkg/common/logger"
	"github.com/synaptica-ai/symptomscan/pkg/common/models"
	"github.com/synaptica-ai/symptomscan/pkg/features"
	"github.com/synaptica-ai/symptomscan/pkg/observability/metrics"
	"github.com/synaptica-ai/symptomscan/pkg/serving/predictor"
	"github.com/synaptica-ai/symptomscan/pkg/serving/ranking"
	"github.com/synaptica-ai/symptomscan/pkg/vocabulary"
)

// NoSymptomsNote is attached to results where nothing matched the vocabulary.
const NoSymptomsNote = "no symptoms were recognized"

// BundleSource hands out the active model bundle.
type BundleSource interface {
	Current() (*predictor.Bundle, error)
}

// Reloader is implemented by sources that can load a new bundle on demand.
type Reloader interface {
	Reload(ctx context.Context) (*predictor.Bundle, error)
}

// Cache stores ranked predictions per bundle fingerprint and recognized set.
// Implementations must treat recognized as an unordered set.
type Cache interface {
	Get(ctx context.Context, fingerprint string, recognized []string) ([]ranking.Prediction, bool, error)
	Set(ctx context.Context, fingerprint string, recognized []string, preds []ranking.Prediction) error
}

type Options struct {
	Ranking     ranking.Options
	MaxSymptoms int
}

func DefaultOptions() Options {
	return Options{Ranking: ranking.DefaultOptions(), MaxSymptoms: 64}
}

// Service runs the inference pipeline against whatever bundle its source
// currently holds.
type Service struct {
	models BundleSource
	opts   Options
	cache  Cache
}

// NewService wires a bundle source to the pipeline. cache may be nil.
func NewService(source BundleSource, opts Options, cache Cache) *Service {
	if opts.Ranking.TopK <= 0 {
		opts.Ranking.TopK = ranking.DefaultOptions().TopK
	}
	return &Service{models: source, opts: opts, cache: cache}
}

// Stage names one step of Infer.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageNormalize Stage = "normalize"
	StageEncode    Stage = "encode"
	StageClassify  Stage = "classify"
	StageRank      Stage = "rank"
	StageAssemble  Stage = "assemble"
)

// run carries one request through the stages. It only ever reads the bundle.
type run struct {
	raw       []string
	bundle    *predictor.Bundle
	selection vocabulary.Selection
	vector    features.Vector
	dist      predictor.Distribution
	preds     []ranking.Prediction
	cached    bool
	result    *Result
}

type step struct {
	stage Stage
	fn    func(ctx context.Context, r *run) error
}

func (s *Service) steps() []step {
	return []step{
		{StageValidate, s.validate},
		{StageNormalize, s.normalize},
		{StageEncode, s.encode},
		{StageClassify, s.classify},
		{StageRank, s.rank},
		{StageAssemble, s.assemble},
	}
}

// Infer maps raw symptom strings to a ranked result. It returns an *Error on
// failure, or the context's error if ctx ends first. No partial result is
// ever returned.
func (s *Service) Infer(ctx context.Context, raw []string) (*Result, error) {
	r := &run{raw: raw}
	for _, st := range s.steps() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := st.fn(ctx, r); err != nil {
			var ie *Error
			if errors.As(err, &ie) && ie.Err != nil {
				logger.WithFields(logrus.Fields{
					"stage": st.stage,
					"kind":  ie.Kind,
					"error": ie.Err,
				}).Error("Inference failed")
			}
			return nil, err
		}
	}
	return r.result, nil
}

func (s *Service) validate(_ context.Context, r *run) error {
	if len(r.raw) == 0 {
		return invalidInput("symptoms must be a non-empty list")
	}
	return nil
}

func (s *Service) normalize(_ context.Context, r *run) error {
	bundle, err := s.models.Current()
	if err != nil {
		return unavailable(err)
	}
	sel := bundle.Vocabulary.Partition(r.raw)
	if sel.Total() == 0 {
		return invalidInput("symptoms must contain at least one non-blank entry")
	}
	// Counted after deduplication: repeats of one symptom are a single entry.
	if s.opts.MaxSymptoms > 0 && sel.Total() > s.opts.MaxSymptoms {
		return invalidInput(fmt.Sprintf("at most %d distinct symptoms may be submitted", s.opts.MaxSymptoms))
	}
	r.bundle = bundle
	r.selection = sel
	metrics.ObserveRecognition(len(sel.Recognized), len(sel.Unmatched))
	return nil
}

func (s *Service) encode(_ context.Context, r *run) error {
	vec, err := features.Encode(r.bundle.Vocabulary, r.selection.Recognized)
	if err != nil {
		return internal(err)
	}
	r.vector = vec
	return nil
}

func (s *Service) classify(ctx context.Context, r *run) error {
	if s.cache != nil {
		preds, ok, err := s.cache.Get(ctx, r.bundle.Fingerprint, r.selection.Recognized)
		if err != nil {
			logger.WithField("error", err).Warn("Result cache read failed")
		}
		metrics.ObserveCache(ok)
		if ok {
			r.preds = preds
			r.cached = true
			return nil
		}
	}
	dist, err := r.bundle.Predict(r.vector)
	if err != nil {
		return internal(err)
	}
	r.dist = dist
	return nil
}

func (s *Service) rank(ctx context.Context, r *run) error {
	if r.cached {
		return nil
	}
	preds, err := ranking.Rank(r.dist.Probabilities, r.dist.Labels, r.bundle.Catalog, s.opts.Ranking)
	if err != nil {
		return internal(err)
	}
	r.preds = preds
	if s.cache != nil {
		if err := s.cache.Set(ctx, r.bundle.Fingerprint, r.selection.Recognized, preds); err != nil {
			logger.WithField("error", err).Warn("Result cache write failed")
		}
	}
	return nil
}

func (s *Service) assemble(_ context.Context, r *run) error {
	if len(r.preds) == 0 {
		return internal(errors.New("ranking returned no predictions"))
	}
	primary := r.preds[0]
	res := &Result{
		Primary:         primary,
		Band:            ranking.Band(primary.Confidence),
		Predictions:     r.preds,
		Recognized:      r.selection.Recognized,
		Unmatched:       r.selection.Unmatched,
		Recommendations: ranking.Recommendations(r.bundle.Catalog, primary.Condition),
		SymptomAdvice:   r.bundle.Catalog.SymptomAdvice(r.selection.Recognized),
		Disclaimer:      r.bundle.Catalog.Disclaimer(),
		Model:           modelInfo(r.bundle),
		Features:        r.vector,
		Cached:          r.cached,
	}
	if len(r.selection.Recognized) == 0 {
		res.Note = NoSymptomsNote
	}
	r.result = res
	return nil
}

// BatchOutcome is one item of InferBatch.
type BatchOutcome struct {
	Result  *Result
	Err     error
	Latency time.Duration
}

// InferBatch runs Infer for each scan independently. A failing scan does not
// affect the others; once ctx ends the remaining scans fail with its error.
func (s *Service) InferBatch(ctx context.Context, scans [][]string) []BatchOutcome {
	out := make([]BatchOutcome, len(scans))
	for i, raw := range scans {
		start := time.Now()
		res, err := s.Infer(ctx, raw)
		out[i] = BatchOutcome{Result: res, Err: err, Latency: time.Since(start)}
	}
	return out
}

// Symptoms returns the vocabulary in feature order.
func (s *Service) Symptoms() ([]string, error) {
	bundle, err := s.models.Current()
	if err != nil {
		return nil, unavailable(err)
	}
	return bundle.Vocabulary.Labels(), nil
}

// ModelStatus describes the active bundle.
func (s *Service) ModelStatus() (models.ModelStatus, error) {
	bundle, err := s.models.Current()
	if err != nil {
		return models.ModelStatus{}, unavailable(err)
	}
	return bundle.Status(), nil
}

// ModelInfo is the model block embedded in every response.
func (s *Service) ModelInfo() (models.ModelInfo, error) {
	bundle, err := s.models.Current()
	if err != nil {
		return models.ModelInfo{}, unavailable(err)
	}
	return modelInfo(bundle), nil
}

// Ready reports whether a bundle is loaded.
func (s *Service) Ready() bool {
	_, err := s.models.Current()
	return err == nil
}

// Reload asks the source for a new bundle when it supports reloading.
func (s *Service) Reload(ctx context.Context) (models.ModelStatus, error) {
	reloader, ok := s.models.(Reloader)
	if !ok {
		return models.ModelStatus{}, unavailable(errors.New("model source cannot reload"))
	}
	bundle, err := reloader.Reload(ctx)
	metrics.ObserveReload(err == nil)
	if err != nil {
		return models.ModelStatus{}, unavailable(err)
	}
	return bundle.Status(), nil
}

func modelInfo(b *predictor.Bundle) models.ModelInfo {
	return models.ModelInfo{
		Accuracy:      b.Accuracy,
		TotalDiseases: b.Catalog.Len(),
		TotalSymptoms: b.Vocabulary.Size(),
		Version:       b.Version,
	}
}
