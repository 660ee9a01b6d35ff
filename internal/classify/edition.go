package classify

import (
	"math"
	"regexp"
	"strings"
)

// editionDef maps an edition label to the pattern that detects it in a
// filename hint.
type editionDef struct {
	label   string
	pattern string
}

// editionDefs is the fixed keyword vocabulary, in tie-break order.
var editionDefs = []editionDef{
	{"Extended", `EXTENDED(\s*(CUT|EDITION|VERSION))?`},
	{"Director's Cut", `DIRECTOR['’]?S?\s*(CUT|EDITION|VERSION)?`},
	{"Unrated", `UNRATED(\s*(CUT|EDITION|VERSION))?`},
	{"Uncut", `UNCUT(\s*(EDITION|VERSION))?`},
	{"Remastered", `REMASTERED(\s*(EDITION|VERSION))?`},
	{"Special", `SPECIAL\s*(EDITION|CUT|VERSION)`},
	{"Theatrical", `THEATRICAL(\s*(CUT|EDITION|VERSION|RELEASE))?`},
}

type editionPattern struct {
	label   string
	pattern *regexp.Regexp
}

var editionPatterns []editionPattern

func init() {
	for _, def := range editionDefs {
		editionPatterns = append(editionPatterns, editionPattern{
			label:   def.label,
			pattern: regexp.MustCompile(`(?i)\b(` + def.pattern + `)\b`),
		})
	}
}

// Vocabulary returns the edition labels the keyword matcher recognises.
func Vocabulary() []string {
	out := make([]string, len(editionDefs))
	for i, def := range editionDefs {
		out[i] = def.label
	}
	return out
}

// MatchEditionKeyword finds the earliest vocabulary keyword in hint and
// returns its label and the matched text. Separators such as '.' and '_'
// count as spaces.
func MatchEditionKeyword(hint string) (label, matched string, ok bool) {
	cleaned := strings.NewReplacer("_", " ", ".", " ").Replace(hint)
	best := -1
	for _, p := range editionPatterns {
		loc := p.pattern.FindStringIndex(cleaned)
		if loc == nil {
			continue
		}
		if best == -1 || loc[0] < best {
			best = loc[0]
			label = p.label
			matched = strings.TrimSpace(cleaned[loc[0]:loc[1]])
		}
	}
	return label, matched, best >= 0
}

const (
	confidenceBoth        = 1.0
	confidenceKeywordOnly = 0.6
	confidenceRuntimeOnly = 0.4
)

// guessEdition combines the runtime delta and filename keyword signals.
func guessEdition(runtime, reference *float64, hint string, threshold float64) *EditionGuess {
	var delta *float64
	exceeds := false
	if runtime != nil && reference != nil && *reference > 0 {
		d := *runtime - *reference
		delta = &d
		exceeds = math.Abs(d) > threshold
	}
	label, matched, keyword := MatchEditionKeyword(hint)

	switch {
	case keyword && exceeds:
		return &EditionGuess{
			Label:               label,
			RuntimeDeltaSeconds: delta,
			MatchedKeyword:      matched,
			Confidence:          confidenceBoth,
			Signals:             []string{SignalRuntimeDelta, SignalFilenameKeyword},
		}
	case keyword:
		return &EditionGuess{
			Label:               label,
			RuntimeDeltaSeconds: delta,
			MatchedKeyword:      matched,
			Confidence:          confidenceKeywordOnly,
			Signals:             []string{SignalFilenameKeyword},
		}
	case exceeds:
		guess := &EditionGuess{
			Label:               LabelLikelyExtended,
			RuntimeDeltaSeconds: delta,
			Confidence:          confidenceRuntimeOnly,
			Signals:             []string{SignalRuntimeDelta},
		}
		if *delta < 0 {
			guess.Label = LabelLikelyAlternate
		}
		return guess
	default:
		return nil
	}
}
