// Package classify turns raw observed fields into typed form structures:
// author autocomplete hints, data-driven label/name heuristics, and section
// assignment. Crowdsourced types are merged in later by the orchestrator.
package classify

import (
	"github.com/rs/zerolog"

	"github.com/goliatone/go-autofill/pkg/form"
)

// Option customises the classifier configuration.
type Option func(*Classifier)

// WithPatternSet replaces the embedded heuristic rule set.
func WithPatternSet(ps *PatternSet) Option {
	return func(c *Classifier) {
		if ps != nil {
			c.patterns = ps
		}
	}
}

// WithLogger attaches a logger. The default is a no-op logger so the library
// stays quiet unless asked.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Classifier) {
		c.log = log
	}
}

// Classifier runs the full local classification pipeline over a constructed
// FormStructure. It holds no per-form state and is safe to reuse across
// forms.
type Classifier struct {
	patterns *PatternSet
	log      zerolog.Logger
}

// New constructs a Classifier with the embedded default pattern set.
func New(options ...Option) *Classifier {
	c := &Classifier{
		patterns: DefaultPatternSet(),
		log:      zerolog.Nop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// Classify parses author hints, runs heuristics, and assigns sections, in
// that order. The structure is annotated in place.
func (c *Classifier) Classify(s *form.FormStructure) {
	if s == nil {
		return
	}
	ParseAuthorHints(s)
	RunHeuristics(s, c.patterns)
	IdentifySections(s)

	c.log.Debug().
		Uint64("form", uint64(s.Signature())).
		Int("fields", s.FieldCount()).
		Int("active", s.ActiveCount()).
		Bool("author_types", s.HasAuthorTypes).
		Msg("classified form")
}
