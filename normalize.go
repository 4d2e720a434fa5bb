package dynamodel

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer maps a raw search value onto its normalized form.
type Normalizer func(string) string

// NormalizeStep is one stage of a normalizer pipeline. A step is either a
// named built-in or a custom function; Func wins when both are set.
type NormalizeStep struct {
	Name string
	Func Normalizer
}

// Step returns a named built-in step.
func Step(name string) NormalizeStep { return NormalizeStep{Name: name} }

// StepFunc returns a custom step.
func StepFunc(fn Normalizer) NormalizeStep { return NormalizeStep{Func: fn} }

// Built-in step names.
const (
	StepCaseInsensitive    = "ci"
	StepFold               = "fold"
	StepLower              = "lower"
	StepUpper              = "upper"
	StepTrim               = "trim"
	StepNoExtraWhitespaces = "no-extra-whitespaces"
	StepASCIIOnly          = "ascii-only"
	StepNoAccents          = "no-accents"
)

var (
	whitespaces = regexp.MustCompile(`\s+`)
	nonWord     = regexp.MustCompile(`\W+`)
)

func builtinStep(name string) Normalizer {
	switch name {
	case "ci", "fold":
		return func(s string) string { return cases.Fold().String(s) }
	case "lower", "lowercase":
		return func(s string) string { return cases.Lower(language.Und).String(s) }
	case "upper", "uppercase":
		return func(s string) string { return cases.Upper(language.Und).String(s) }
	case "trim":
		return strings.TrimSpace
	case "no-extra-whitespace", "no-extra-whitespaces":
		return func(s string) string { return whitespaces.ReplaceAllString(s, " ") }
	case "ascii-only":
		return func(s string) string { return nonWord.ReplaceAllString(s, " ") }
	case "no-accent", "no-accents":
		return stripAccents
	default:
		return nil
	}
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NewNormalizer composes steps in the given order. Unknown step names are
// skipped.
func NewNormalizer(steps ...NormalizeStep) Normalizer {
	fns := make([]Normalizer, 0, len(steps))
	for _, step := range steps {
		fn := step.Func
		if fn == nil {
			fn = builtinStep(step.Name)
		}
		if fn != nil {
			fns = append(fns, fn)
		}
	}
	return func(s string) string {
		for _, fn := range fns {
			s = fn(s)
		}
		return s
	}
}
