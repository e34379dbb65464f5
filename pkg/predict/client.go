// Package predict exchanges compact, anonymized per-field statistics with
// the crowdsourced prediction service. Queries and uploads never block the
// caller, responses are cached by composite signature, and failures degrade
// through an exponential backoff with jitter.
package predict

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-autofill/internal/wire"
	"github.com/goliatone/go-autofill/pkg/fieldtype"
	"github.com/goliatone/go-autofill/pkg/form"
	"github.com/goliatone/go-autofill/pkg/telemetry"
)

const (
	// DefaultMaxQueryFields caps the aggregate active-field count of one
	// batched query. Larger batches are rejected before any request is
	// built.
	DefaultMaxQueryFields = 100

	// DefaultMaxRetries bounds how many times one request payload is
	// retried through the backoff schedule.
	DefaultMaxRetries = 3

	// maxLabelLength truncates diagnostic labels in query payloads.
	maxLabelLength = 200

	queryPath   = "/query"
	uploadPath  = "/upload"
	contentType = "text/proto"
)

var (
	// ErrVoteOutsideAvailable reports an upload vote type that is not a
	// member of the caller-supplied available set. This is a defensive
	// invariant on the caller's bookkeeping, not a network condition.
	ErrVoteOutsideAvailable = errors.New("predict: vote type outside available set")

	// ErrExchangeFailed is the terminal error after retries are exhausted.
	ErrExchangeFailed = errors.New("predict: exchange failed")
)

// Prediction is one crowdsourced per-field type, positionally aligned to the
// active fields of the queried forms in request order.
type Prediction struct {
	Type fieldtype.Type
}

// QueryResult delivers the outcome of one query exchange.
type QueryResult struct {
	Predictions []Prediction
	FromCache   bool
	Err         error
}

// Option customises the client configuration.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for exchanges.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithCacheCapacity bounds the response cache entry count.
func WithCacheCapacity(n int) Option {
	return func(c *Client) { c.cache = newResponseCache(n) }
}

// WithBackoffPolicy replaces the retry backoff policy.
func WithBackoffPolicy(p BackoffPolicy) Option {
	return func(c *Client) { c.backoff = newBackoffState(p) }
}

// WithMaxQueryFields overrides the per-request active-field ceiling.
func WithMaxQueryFields(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxQueryFields = n
		}
	}
}

// WithMaxRetries overrides the retry bound.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithClientVersion sets the client-version string attached to payloads.
func WithClientVersion(v string) Option {
	return func(c *Client) { c.version = v }
}

// WithHeaders attaches variation/experiment headers to every request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) { c.headers = h }
}

// WithQueryMetadata toggles the non-identifying diagnostic metadata
// (control kind, field name, truncated label) in query payloads. Field
// values are never sent regardless.
func WithQueryMetadata(enabled bool) Option {
	return func(c *Client) { c.queryMetadata = enabled }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithTelemetry attaches a telemetry sink.
func WithTelemetry(sink telemetry.Sink) Option {
	return func(c *Client) { c.sink = sink }
}

// Client is the crowdsourced prediction client. Cache and backoff state are
// private to one instance and process-lifetime only.
type Client struct {
	mu  sync.Mutex
	gen uint64

	http    *http.Client
	baseURL string

	cache   *responseCache
	backoff *backoffState

	version       string
	headers       map[string]string
	queryMetadata bool

	maxQueryFields int
	maxRetries     int

	log  zerolog.Logger
	sink telemetry.Sink

	// schedule defers a retry; injectable so tests can run without real
	// waits.
	schedule func(time.Duration, func())
}

// New constructs a client targeting the given service base URL.
func New(baseURL string, options ...Option) *Client {
	c := &Client{
		http:           &http.Client{Timeout: 30 * time.Second},
		baseURL:        baseURL,
		cache:          newResponseCache(DefaultCacheCapacity),
		backoff:        newBackoffState(DefaultBackoffPolicy()),
		queryMetadata:  true,
		maxQueryFields: DefaultMaxQueryFields,
		maxRetries:     DefaultMaxRetries,
		log:            zerolog.Nop(),
		sink:           telemetry.NopSink{},
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// Query batches a crowdsourced type lookup for the given forms. It returns
// false, with no request attempted, when the batch is empty or its aggregate
// active-field count exceeds the ceiling. A cache hit delivers synchronously
// with no network activity; otherwise delivery happens later on another
// goroutine.
func (c *Client) Query(ctx context.Context, forms []*form.FormStructure, deliver func(QueryResult)) bool {
	if deliver == nil || len(forms) == 0 {
		return false
	}

	total := 0
	signatures := make([]form.FormSignature, 0, len(forms))
	for _, s := range forms {
		total += s.ActiveCount()
		signatures = append(signatures, s.Signature())
	}
	if total > c.maxQueryFields {
		c.log.Debug().Int("fields", total).Int("ceiling", c.maxQueryFields).Msg("query rejected: too many fields")
		return false
	}

	key := form.CompositeSignature(signatures)

	c.mu.Lock()
	cached, hit := c.cache.Get(key)
	gen := c.gen
	c.mu.Unlock()

	if hit {
		telemetry.Emit(c.sink, telemetry.EventQueryCacheHit, telemetry.Fields{"key": key})
		deliver(QueryResult{Predictions: decodePredictions(cached), FromCache: true})
		return true
	}

	payload := wire.EncodeQuery(c.buildQuery(forms))
	telemetry.Emit(c.sink, telemetry.EventQuerySent, telemetry.Fields{"key": key, "forms": len(forms), "fields": total})
	go c.exchangeQuery(ctx, payload, key, gen, deliver, 0)
	return true
}

func (c *Client) buildQuery(forms []*form.FormStructure) wire.Query {
	q := wire.Query{ClientVersion: c.version}
	for _, s := range forms {
		qf := wire.QueryForm{Signature: uint64(s.Signature())}
		for _, i := range s.ActiveFieldIndices() {
			f := s.Field(i)
			wf := wire.QueryField{Signature: uint32(f.Signature)}
			if c.queryMetadata {
				wf.Name = f.Name
				wf.Control = string(f.Kind)
				wf.Label = truncate(f.Label, maxLabelLength)
			}
			qf.Fields = append(qf.Fields, wf)
		}
		q.Forms = append(q.Forms, qf)
	}
	return q
}

// exchangeQuery performs one attempt. Failures feed the backoff policy and
// schedule exactly one retry of the same payload; the retry reuses the
// original request bytes so it never needs to be rebuilt.
func (c *Client) exchangeQuery(ctx context.Context, payload []byte, key string, gen uint64, deliver func(QueryResult), attempt int) {
	status, body, err := c.post(ctx, queryPath, payload)
	switch {
	case err == nil && status == http.StatusOK:
		c.backoff.RecordSuccess()
		decoded, derr := wire.DecodeQueryResponse(body)
		if derr != nil {
			// A response that fails to parse is treated as no response at
			// all: an empty success, never cached.
			telemetry.Emit(c.sink, telemetry.EventQueryResponseIgnored, telemetry.Fields{"key": key})
			deliver(QueryResult{})
			return
		}
		c.mu.Lock()
		c.cache.Put(key, body)
		c.mu.Unlock()
		telemetry.Emit(c.sink, telemetry.EventQueryResponseParsed, telemetry.Fields{"key": key, "predictions": len(decoded.Predictions)})
		deliver(QueryResult{Predictions: toPredictions(decoded)})

	case err == nil && status == http.StatusNotFound:
		// No data available for these signatures: a successful exchange
		// carrying an empty result.
		c.backoff.RecordSuccess()
		deliver(QueryResult{})

	default:
		c.retryOrFail(ctx, payload, gen, attempt, func(finalErr error) {
			deliver(QueryResult{Err: finalErr})
		}, func(next int) {
			c.exchangeQuery(ctx, payload, key, gen, deliver, next)
		}, status, err)
	}
}

// UploadOptions carries the caller-side context for a vote upload.
type UploadOptions struct {
	WasAutofilled bool
	// AvailableTypes is the full set of types the caller's stored records
	// could produce. Every reported vote must be a member.
	AvailableTypes     []fieldtype.Type
	LoginSignature     form.FormSignature
	ObservedSubmission bool
}

// Upload sends the per-field possible-type votes computed at submission
// time. It returns false when the form's own upload determination says an
// upload is unnecessary, and an error when a vote violates the available-
// types invariant. Native-checkable fields are skipped. Completion (or the
// final failure) is reported through done, which may be nil.
func (c *Client) Upload(ctx context.Context, s *form.FormStructure, opts UploadOptions, done func(error)) (bool, error) {
	if s == nil {
		return false, errors.New("predict: nil form structure")
	}
	if !s.ShouldBeUploaded() {
		telemetry.Emit(c.sink, telemetry.EventUploadSkipped, telemetry.Fields{"form": s.Signature().String()})
		return false, nil
	}

	available := make(map[fieldtype.Type]bool, len(opts.AvailableTypes))
	for _, t := range opts.AvailableTypes {
		available[t] = true
	}

	u := wire.Upload{
		FormSignature:      uint64(s.Signature()),
		WasAutofilled:      opts.WasAutofilled,
		LoginSignature:     uint64(opts.LoginSignature),
		ObservedSubmission: opts.ObservedSubmission,
		ClientVersion:      c.version,
	}
	for i := range s.Fields {
		f := s.Field(i)
		if f.Kind.IsCheckable() || len(f.PossibleTypes) == 0 {
			continue
		}
		vote := wire.Vote{FieldSignature: uint32(f.Signature)}
		seen := make(map[fieldtype.Type]bool)
		for _, t := range f.PossibleTypes {
			if seen[t] {
				continue
			}
			seen[t] = true
			if t.Known() && !available[t] {
				return false, fmt.Errorf("%w: %s on field %s", ErrVoteOutsideAvailable, t, f.Signature)
			}
			vote.Types = append(vote.Types, int32(t))
		}
		u.Votes = append(u.Votes, vote)
	}

	payload := wire.EncodeUpload(u)

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	telemetry.Emit(c.sink, telemetry.EventUploadSent, telemetry.Fields{"form": s.Signature().String(), "votes": len(u.Votes)})
	go c.exchangeUpload(ctx, payload, gen, done, 0)
	return true, nil
}

func (c *Client) exchangeUpload(ctx context.Context, payload []byte, gen uint64, done func(error), attempt int) {
	status, _, err := c.post(ctx, uploadPath, payload)
	if err == nil && (status == http.StatusOK || status == http.StatusNoContent) {
		c.backoff.RecordSuccess()
		if done != nil {
			done(nil)
		}
		return
	}
	c.retryOrFail(ctx, payload, gen, attempt, func(finalErr error) {
		if done != nil {
			done(finalErr)
		}
	}, func(next int) {
		c.exchangeUpload(ctx, payload, gen, done, next)
	}, status, err)
}

// retryOrFail feeds the backoff policy and either schedules one retry of the
// same payload or surfaces the terminal failure.
func (c *Client) retryOrFail(ctx context.Context, payload []byte, gen uint64, attempt int, fail func(error), retry func(int), status int, err error) {
	delay := c.backoff.RecordFailure()
	telemetry.Emit(c.sink, telemetry.EventBackoffTriggered, telemetry.Fields{
		"attempt": attempt, "status": status, "delay_ms": delay.Milliseconds(),
	})
	c.log.Debug().Int("status", status).Err(err).Dur("delay", delay).Int("attempt", attempt).Msg("exchange failed")

	if attempt >= c.maxRetries || ctx.Err() != nil {
		fail(fmt.Errorf("%w: status %d after %d attempts: %v", ErrExchangeFailed, status, attempt+1, err))
		return
	}
	c.schedule(delay, func() {
		// A generation bump (navigation reset) defuses the retry; its
		// target state no longer exists.
		c.mu.Lock()
		stale := c.gen != gen
		c.mu.Unlock()
		if stale || ctx.Err() != nil {
			return
		}
		retry(attempt + 1)
	})
}

// CancelPending abandons every scheduled retry. Their callbacks become
// no-ops when they eventually fire.
func (c *Client) CancelPending() {
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()
}

// CacheLen reports the current response cache size.
func (c *Client) CacheLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

func (c *Client) post(ctx context.Context, path string, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("predict: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("predict: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("predict: read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func toPredictions(r wire.QueryResponse) []Prediction {
	out := make([]Prediction, len(r.Predictions))
	for i, p := range r.Predictions {
		out[i] = Prediction{Type: fieldtype.Type(p.Type)}
	}
	return out
}

// decodePredictions decodes a cached payload. The payload parsed once
// already, so a failure here yields an empty result rather than an error.
func decodePredictions(payload []byte) []Prediction {
	decoded, err := wire.DecodeQueryResponse(payload)
	if err != nil {
		return nil
	}
	return toPredictions(decoded)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
