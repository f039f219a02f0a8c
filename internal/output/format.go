package output

import (
	"fmt"
	"strings"
)

// Verbosity controls how much of a record is emitted.
type Verbosity int

const (
	Minimal Verbosity = iota
	Standard
	Full
)

func (v Verbosity) String() string {
	switch v {
	case Minimal:
		return "minimal"
	case Standard:
		return "standard"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("verbosity(%d)", int(v))
	}
}

// ParseVerbosity maps a config string to a Verbosity. Empty means Standard.
func ParseVerbosity(s string) (Verbosity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal":
		return Minimal, nil
	case "", "standard":
		return Standard, nil
	case "full":
		return Full, nil
	default:
		return Standard, fmt.Errorf("unknown verbosity %q", s)
	}
}

// FormatRecord returns a copy of the record with fields stripped according to verbosity.
// At Minimal: similar cases and the standard description are cleared.
// At Standard: the standard description is cleared.
// At Full: all fields preserved.
func FormatRecord(rec Record, verbosity Verbosity) Record {
	switch verbosity {
	case Minimal:
		rec.SimilarCases = []string{}
		rec.StandardDescription = ""
	case Standard:
		rec.StandardDescription = ""
	default:
		if rec.SimilarCases != nil {
			rec.SimilarCases = append([]string(nil), rec.SimilarCases...)
		}
	}
	return rec
}
