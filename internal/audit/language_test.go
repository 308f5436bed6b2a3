package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectLanguage(t *testing.T) {
	detector := NewLanguageDetector()

	english := "Rapid Plumbing answers emergency plumbing calls across Melbourne day and night with fixed prices."
	assert.Equal(t, "en", detectLanguage(detector, english))

	german := "Wir beantworten Notrufe für Klempnerarbeiten in ganz Berlin, Tag und Nacht, zu festen Preisen."
	assert.Equal(t, "de", detectLanguage(detector, german))

	assert.Empty(t, detectLanguage(detector, "short"), "samples below the minimum length are skipped")
	assert.Empty(t, detectLanguage(detector, ""))
}
