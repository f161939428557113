package util

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// TruncateTokens cuts text down to at most maxTokens tokens under the given
// encoding. If the encoder cannot be loaded the text is cut by runes at
// maxTokens*4 as a rough approximation.
func TruncateTokens(text string, encoder string, maxTokens int) string {
	if maxTokens <= 0 || text == "" {
		return text
	}

	enc, err := tiktoken.GetEncoding(encoder)
	if err != nil {
		runes := []rune(text)
		limit := maxTokens * 4
		if len(runes) <= limit {
			return text
		}
		return string(runes[:limit])
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return enc.Decode(tokens[:maxTokens])
}

// CollapseWhitespace replaces every run of whitespace with a single space
// and trims the result.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
