// Package signature loads detection rules and matches payloads against them.
package signature

import (
	"regexp"
	"strings"
	"sync"

	"netinspect/internal/log"
	"netinspect/internal/metrics"
)

// Kind selects how a pattern is interpreted.
type Kind int

const (
	KindASCII Kind = iota
	KindHex
	KindRegex
)

func (k Kind) String() string {
	switch k {
	case KindHex:
		return "hex"
	case KindRegex:
		return "regex"
	default:
		return "ascii"
	}
}

// Severity is advisory: matching never consults it.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityMedium:
		return "medium"
	case SeverityCritical:
		return "critical"
	default:
		return "low"
	}
}

// Signature is one detection rule. It is immutable once built and safe to
// share between goroutines.
type Signature struct {
	Kind     Kind
	Severity Severity
	Pattern  string

	re *compiled
}

// compiled caches the regular expression of a regex signature. The first
// compile failure is reported once; afterwards the signature never matches.
type compiled struct {
	once sync.Once
	re   *regexp.Regexp
	err  error
}

// New builds a signature. Regex patterns are compiled lazily on first use.
func New(kind Kind, severity Severity, pattern string) Signature {
	sig := Signature{Kind: kind, Severity: severity, Pattern: pattern}
	if kind == KindRegex {
		sig.re = &compiled{}
	}
	return sig
}

// Valid reports whether the signature can ever match.
func (s Signature) Valid() bool {
	if strings.TrimSpace(s.Pattern) == "" {
		return false
	}
	if s.Kind == KindRegex {
		_, err := s.regexp()
		return err == nil
	}
	return true
}

// Err returns the compile error of a regex signature, if any.
func (s Signature) Err() error {
	if s.Kind != KindRegex {
		return nil
	}
	_, err := s.regexp()
	return err
}

func (s Signature) regexp() (*regexp.Regexp, error) {
	if s.re == nil {
		// Built as a struct literal instead of through New.
		return regexp.Compile(s.Pattern)
	}
	s.re.once.Do(func() {
		s.re.re, s.re.err = regexp.Compile(s.Pattern)
		if s.re.err != nil {
			metrics.SignatureErrorsTotal.Inc()
			log.L().WithError(s.re.err).WithField("pattern", s.Pattern).
				Warn("signature regex does not compile, it will never match")
		}
	})
	return s.re.re, s.re.err
}
