package audit

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// minDetectionLength is the shortest content sample worth running
// language detection on.
const minDetectionLength = 20

// NewLanguageDetector builds the detector used to label audited pages.
// The set covers the languages the audit sees in practice; the label
// is informational and never affects scoring.
func NewLanguageDetector() lingua.LanguageDetector {
	return lingua.NewLanguageDetectorBuilder().
		FromLanguages(
			lingua.English,
			lingua.Spanish,
			lingua.French,
			lingua.German,
			lingua.Italian,
			lingua.Portuguese,
			lingua.Dutch,
			lingua.Japanese,
			lingua.Chinese,
			lingua.Arabic,
		).
		Build()
}

// detectLanguage returns the lower-cased ISO 639-1 code for the page
// sample, or "" when the sample is too short or detection fails.
func detectLanguage(detector lingua.LanguageDetector, text string) string {
	if len(text) < minDetectionLength {
		return ""
	}
	lang, ok := detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
