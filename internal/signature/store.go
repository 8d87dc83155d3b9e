package signature

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"netinspect/internal/log"
)

// Load parses one signature per non-blank line. It never fails: a line
// without a usable pattern still yields a signature with an empty pattern,
// which never matches. Read errors stop parsing and are logged.
//
// Line grammar: `key:value` fields separated by `;` in any order, keys
// case-insensitive, e.g. `type:hex;severity:critique;pattern:deadbeef`.
func Load(r io.Reader) []Signature {
	var sigs []Signature

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sigs = append(sigs, parseLine(line))
	}
	if err := scanner.Err(); err != nil {
		log.L().WithError(err).Warn("signature source read stopped early")
	}
	return sigs
}

func parseLine(line string) Signature {
	kind := KindASCII
	severity := SeverityLow
	pattern := ""

	for _, field := range strings.Split(line, ";") {
		key, value, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "type":
			kind = parseKind(value)
		case "severity":
			severity = parseSeverity(value)
		case "pattern":
			pattern = value
		}
	}
	return New(kind, severity, pattern)
}

func parseKind(v string) Kind {
	switch strings.ToLower(v) {
	case "hex":
		return KindHex
	case "regex":
		return KindRegex
	default:
		return KindASCII
	}
}

func parseSeverity(v string) Severity {
	switch strings.ToLower(v) {
	case "critique", "critical":
		return SeverityCritical
	case "moyen", "medium":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// LoadFile reads a signature file. A missing or unreadable file yields an
// empty set and the error, which callers report before falling back to
// Defaults.
func LoadFile(path string) ([]Signature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open signature file %s: %w", path, err)
	}
	defer f.Close()
	return Load(f), nil
}

// Defaults returns the built-in rule set used when no file is configured.
func Defaults() []Signature {
	return []Signature{
		New(KindASCII, SeverityMedium, "malicious_pattern_1"),
		New(KindASCII, SeverityMedium, "malicious_pattern_2"),
		New(KindHex, SeverityCritical, "00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00"),
		New(KindRegex, SeverityCritical, `(?i)union\s+select`),
		New(KindASCII, SeverityLow, "/etc/passwd"),
	}
}

// Store holds the active rule set. Sessions take a Snapshot when they start
// and keep it for their lifetime; Reload only affects later snapshots.
type Store struct {
	path string
	sigs atomic.Pointer[[]Signature]
}

// NewStore loads path, or the defaults when path is empty. A file that
// cannot be read is reported and the defaults are used instead.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	err := s.Reload()
	return s, err
}

// Path returns the signature file backing the store, if any.
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the backing file. On error the defaults are installed.
func (s *Store) Reload() error {
	if s.path == "" {
		s.set(Defaults())
		return nil
	}
	sigs, err := LoadFile(s.path)
	if err != nil {
		s.set(Defaults())
		return err
	}
	s.set(sigs)
	return nil
}

func (s *Store) set(sigs []Signature) {
	s.sigs.Store(&sigs)
}

// Snapshot returns the current rule set. The slice must not be modified.
func (s *Store) Snapshot() []Signature {
	p := s.sigs.Load()
	if p == nil {
		return nil
	}
	return *p
}
