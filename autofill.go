// Package autofill wires the form understanding and prediction engine: the
// local classifier, the crowdsourced prediction client, the orchestrator
// that owns observed forms, and the card unmask coordinator. Most callers
// only need New and the Engine methods; the pkg subpackages expose each
// subsystem for direct use.
package autofill

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-autofill/pkg/classify"
	"github.com/goliatone/go-autofill/pkg/form"
	"github.com/goliatone/go-autofill/pkg/orchestrator"
	"github.com/goliatone/go-autofill/pkg/predict"
	"github.com/goliatone/go-autofill/pkg/record"
	"github.com/goliatone/go-autofill/pkg/telemetry"
	"github.com/goliatone/go-autofill/pkg/unmask"
)

// Aliases exported via the root package for convenience.
type (
	FormField     = form.FormField
	FormStructure = form.FormStructure
	Metadata      = form.Metadata

	Profile    = record.Profile
	CreditCard = record.CreditCard

	Instruction       = orchestrator.Instruction
	FillOptions       = orchestrator.FillOptions
	SubmissionOptions = orchestrator.SubmissionOptions
	UnmaskResult      = unmask.Result
	Verification      = unmask.Verification
	QueryResult       = predict.QueryResult
)

// ErrUnmaskDisabled rejects unmask flows when the feature flag is off.
var ErrUnmaskDisabled = errors.New("autofill: card unmasking disabled")

// Config carries the explicit construction-time settings. Nothing is read
// from ambient global state.
type Config struct {
	// PredictionBaseURL targets the crowdsourced prediction service.
	PredictionBaseURL string

	// ClientVersion is attached to every query and upload payload.
	ClientVersion string

	// Locale travels with prediction requests as a variation header.
	Locale string

	// CrowdsourcingEnabled gates network queries and uploads. When off the
	// engine still classifies and fills from local heuristics alone.
	CrowdsourcingEnabled bool

	// UnmaskEnabled gates the card verification flow.
	UnmaskEnabled bool
}

// Option customises engine construction.
type Option func(*builder)

type builder struct {
	log         zerolog.Logger
	sink        telemetry.Sink
	classifier  []classify.Option
	predictor   []predict.Option
	manager     []orchestrator.Option
	coordinator []unmask.Option
}

// WithLogger attaches one logger to every subsystem.
func WithLogger(log zerolog.Logger) Option {
	return func(b *builder) { b.log = log }
}

// WithTelemetry attaches one telemetry sink to every subsystem.
func WithTelemetry(sink telemetry.Sink) Option {
	return func(b *builder) { b.sink = sink }
}

// WithClassifierOptions forwards options to the classifier.
func WithClassifierOptions(options ...classify.Option) Option {
	return func(b *builder) { b.classifier = append(b.classifier, options...) }
}

// WithPredictorOptions forwards options to the prediction client.
func WithPredictorOptions(options ...predict.Option) Option {
	return func(b *builder) { b.predictor = append(b.predictor, options...) }
}

// WithOrchestratorOptions forwards options to the form manager.
func WithOrchestratorOptions(options ...orchestrator.Option) Option {
	return func(b *builder) { b.manager = append(b.manager, options...) }
}

// WithUnmaskOptions forwards options to the unmask coordinator.
func WithUnmaskOptions(options ...unmask.Option) Option {
	return func(b *builder) { b.coordinator = append(b.coordinator, options...) }
}

// Engine is the assembled form understanding and prediction pipeline.
type Engine struct {
	cfg Config

	Classifier *classify.Classifier
	Predictor  *predict.Client
	Forms      *orchestrator.Manager
	Unmasker   *unmask.Coordinator
}

// New assembles an Engine around the external collaborators: the record
// store, and (when unmasking is enabled) the risk provider and exchanger.
func New(cfg Config, store record.Store, risk unmask.RiskProvider, exchanger unmask.Exchanger, options ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("autofill: record store is required")
	}
	if cfg.CrowdsourcingEnabled && cfg.PredictionBaseURL == "" {
		return nil, errors.New("autofill: prediction base URL is required when crowdsourcing is enabled")
	}
	if cfg.UnmaskEnabled && (risk == nil || exchanger == nil) {
		return nil, errors.New("autofill: unmask collaborators are required when unmasking is enabled")
	}

	b := &builder{log: zerolog.Nop(), sink: telemetry.NopSink{}}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(b)
	}

	classifier := classify.New(append([]classify.Option{
		classify.WithLogger(b.log),
	}, b.classifier...)...)

	predictorOpts := []predict.Option{
		predict.WithLogger(b.log),
		predict.WithTelemetry(b.sink),
		predict.WithClientVersion(cfg.ClientVersion),
	}
	if cfg.Locale != "" {
		predictorOpts = append(predictorOpts, predict.WithHeaders(map[string]string{
			"Accept-Language": cfg.Locale,
		}))
	}
	predictor := predict.New(cfg.PredictionBaseURL, append(predictorOpts, b.predictor...)...)

	managerOpts := []orchestrator.Option{
		orchestrator.WithLogger(b.log),
		orchestrator.WithTelemetry(b.sink),
		orchestrator.WithCrowdsourcing(cfg.CrowdsourcingEnabled),
	}
	manager := orchestrator.New(classifier, predictor, store, append(managerOpts, b.manager...)...)

	e := &Engine{
		cfg:        cfg,
		Classifier: classifier,
		Predictor:  predictor,
		Forms:      manager,
	}
	if cfg.UnmaskEnabled {
		e.Unmasker = unmask.New(store, risk, exchanger, append([]unmask.Option{
			unmask.WithLogger(b.log),
			unmask.WithTelemetry(b.sink),
		}, b.coordinator...)...)
	}
	return e, nil
}

// Observe classifies newly observed forms and, when crowdsourcing is on,
// batches eligible ones into a prediction query.
func (e *Engine) Observe(ctx context.Context, forms []*form.FormStructure) {
	e.Forms.Observe(ctx, forms)
}

// Fill resolves the live form and returns the write instructions for the
// page boundary.
func (e *Engine) Fill(live *form.FormStructure, fieldIndex int, rec record.Record, opts FillOptions) ([]Instruction, error) {
	return e.Forms.Fill(live, fieldIndex, rec, opts)
}

// Preview computes fill instructions without committing any state.
func (e *Engine) Preview(live *form.FormStructure, fieldIndex int, rec record.Record, opts FillOptions) ([]Instruction, error) {
	return e.Forms.Preview(live, fieldIndex, rec, opts)
}

// HandleSubmission feeds a submit event through value matching and, when the
// form is eligible, a crowdsourcing upload.
func (e *Engine) HandleSubmission(ctx context.Context, live *form.FormStructure, opts orchestrator.SubmissionOptions) bool {
	return e.Forms.HandleSubmission(ctx, live, opts)
}

// Unmask starts the verification flow for a masked card.
func (e *Engine) Unmask(ctx context.Context, card record.CreditCard, deliver func(unmask.Result)) error {
	if e.Unmasker == nil {
		return ErrUnmaskDisabled
	}
	return e.Unmasker.Begin(ctx, card, deliver)
}

// Reset clears session state on navigation: pending uploads are drained,
// scheduled retries defused, retained structures dropped.
func (e *Engine) Reset() {
	e.Forms.Reset()
	if e.Unmasker != nil {
		e.Unmasker.Cancel()
	}
}
