package signature

import (
	"bytes"
	"strings"
)

// Match reports whether sig matches payload. Hex and ascii patterns match as
// a contiguous, case-sensitive substring of the payload text; regex patterns
// match anywhere. A regex that fails to compile never matches.
func Match(payload []byte, sig Signature) bool {
	if strings.TrimSpace(sig.Pattern) == "" {
		return false
	}

	switch sig.Kind {
	case KindRegex:
		re, err := sig.regexp()
		if err != nil {
			return false
		}
		return re.Match(payload)
	default:
		return bytes.Contains(payload, []byte(sig.Pattern))
	}
}

// MatchFirst returns the first signature, in store order, matching payload.
// Later signatures are not evaluated once one matches, whatever their
// severity.
func MatchFirst(payload []byte, sigs []Signature) (Signature, bool) {
	for _, sig := range sigs {
		if Match(payload, sig) {
			return sig, true
		}
	}
	return Signature{}, false
}
