package tagsync

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"micromanagerr/internal/arr"
	"micromanagerr/internal/classify"
)

// Canonical label vocabulary (before prefixing).
const (
	LabelHDR10        = "hdr10"
	LabelHDR10Plus    = "hdr10plus"
	LabelHLG          = "hlg"
	LabelHybrid       = "hdr10plus-dv"
	LabelIMAXEnhanced = "imax-enhanced"
	editionLabelStem  = "edition-"
)

// DefaultManagedPrefix marks labels owned by this tool.
const DefaultManagedPrefix = "mm:"

var (
	fixedVocabulary = []string{LabelHDR10, LabelHDR10Plus, LabelHLG, LabelHybrid, LabelIMAXEnhanced}
	dvLabelPattern  = regexp.MustCompile(`^dv-p\d+(-fallback)?$`)
	editionPattern  = regexp.MustCompile(`^edition-[a-z0-9]+(-[a-z0-9]+)*$`)
	slugSeparators  = regexp.MustCompile(`[^a-z0-9]+`)
)

// Options controls label mapping and the managed namespace.
type Options struct {
	// Prefix is prepended to every desired label.
	Prefix string
	// ManagedPrefixes mark remote labels this tool may detach.
	ManagedPrefixes  []string
	IMAXThreshold    float64
	EditionThreshold float64
}

// DefaultOptions returns the defaults used when no configuration is given.
func DefaultOptions() Options {
	return Options{
		ManagedPrefixes:  []string{DefaultManagedPrefix},
		IMAXThreshold:    0.5,
		EditionThreshold: 0.5,
	}
}

// DesiredLabels maps a classification onto the labels the item should carry,
// sorted and prefixed.
func DesiredLabels(c classify.Classification, opts Options) []string {
	var labels []string
	switch c.HDRKind() {
	case classify.HDR10:
		labels = append(labels, LabelHDR10)
	case classify.HDR10Plus:
		labels = append(labels, LabelHDR10Plus)
	case classify.HLG:
		labels = append(labels, LabelHLG)
	case classify.HybridHDR10PlusDV:
		labels = append(labels, LabelHybrid)
	}
	if dv := c.DolbyVision; dv != nil && dv.Profile > 0 {
		label := fmt.Sprintf("dv-p%d", dv.Profile)
		if dv.HasFallback {
			label += "-fallback"
		}
		labels = append(labels, label)
	}
	if c.IMAX.Enhanced && c.IMAX.Confidence >= opts.IMAXThreshold {
		labels = append(labels, LabelIMAXEnhanced)
	}
	if e := c.Edition; e != nil && e.Confidence >= opts.EditionThreshold {
		if slug := editionSlug(e.Label); slug != "" {
			labels = append(labels, editionLabelStem+slug)
		}
	}
	for i, label := range labels {
		labels[i] = opts.Prefix + label
	}
	slices.Sort(labels)
	return labels
}

// editionSlug turns "Director's Cut" into "directors-cut".
func editionSlug(label string) string {
	lowered := cases.Lower(language.English).String(label)
	lowered = strings.NewReplacer("'", "", "’", "").Replace(lowered)
	return strings.Trim(slugSeparators.ReplaceAllString(lowered, "-"), "-")
}

// IsManaged reports whether label belongs to the managed namespace: it
// carries a managed or the configured prefix, or it is a canonical label
// once such a prefix is removed. Everything else belongs to the user.
func IsManaged(label string, opts Options) bool {
	key := arr.NormalizeLabel(label)
	if key == "" {
		return false
	}
	for _, prefix := range managedPrefixes(opts) {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return isVocabulary(key)
}

func managedPrefixes(opts Options) []string {
	out := make([]string, 0, len(opts.ManagedPrefixes)+1)
	for _, p := range opts.ManagedPrefixes {
		if p = arr.NormalizeLabel(p); p != "" {
			out = append(out, p)
		}
	}
	if p := arr.NormalizeLabel(opts.Prefix); p != "" {
		out = append(out, p)
	}
	return out
}

func isVocabulary(key string) bool {
	return slices.Contains(fixedVocabulary, key) ||
		dvLabelPattern.MatchString(key) ||
		editionPattern.MatchString(key)
}
