package extract

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// minDetectLength guards against detection on text too short to carry a
// reliable signal.
const minDetectLength = 20

// DetectLanguage returns the ISO 639-1 code of the text's language, or
// "" when detection is unreliable.
func DetectLanguage(text string) string {
	text = strings.TrimSpace(text)
	if len(text) < minDetectLength {
		return ""
	}

	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
