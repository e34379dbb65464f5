// Package telemetry defines the named events the engine emits and the sink
// collaborators implement. Delivery is fire-and-forget: a sink must never
// block, and a panicking sink is contained so it cannot fail the operation
// that emitted the event.
package telemetry

import "github.com/rs/zerolog"

// Event names a notable engine occurrence.
type Event string

const (
	EventQuerySent             Event = "query_sent"
	EventQueryCacheHit         Event = "query_cache_hit"
	EventQueryFailed           Event = "query_failed"
	EventQueryResponseParsed   Event = "query_response_parsed"
	EventQueryResponseIgnored  Event = "query_response_ignored"
	EventUploadSent            Event = "upload_sent"
	EventUploadSkipped         Event = "upload_skipped"
	EventBackoffTriggered      Event = "backoff_triggered"
	EventFormsObserved         Event = "forms_observed"
	EventFormRetentionFull     Event = "form_retention_full"
	EventFillPerformed         Event = "fill_performed"
	EventDisambiguationApplied Event = "disambiguation_applied"
	EventSubmissionMatched     Event = "submission_matched"
	EventUnmaskStarted         Event = "unmask_started"
	EventUnmaskResolved        Event = "unmask_resolved"
	EventUnmaskFailed          Event = "unmask_failed"
)

// Fields carries event attributes. Values should be small scalars; never put
// user-entered field values in here.
type Fields map[string]any

// Sink receives events. Implementations must return quickly; the engine
// calls Emit inline on its own goroutines.
type Sink interface {
	Emit(event Event, fields Fields)
}

// Emit delivers an event to sink, tolerating a nil sink and containing
// panics so telemetry can never take down a core operation.
func Emit(sink Sink, event Event, fields Fields) {
	if sink == nil {
		return
	}
	defer func() { _ = recover() }()
	sink.Emit(event, fields)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Emit(Event, Fields) {}

// LogSink writes events to a zerolog logger at debug level.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) Emit(event Event, fields Fields) {
	e := s.Log.Debug().Str("event", string(event))
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg("telemetry")
}
