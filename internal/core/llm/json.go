package llm

import (
	"strings"

	apperrors "github.com/lueurxax/idea-aggregator/internal/core/errors"
)

// ExtractJSONObject returns the text between the first '{' and the last '}'
// inclusive. It does not validate the JSON.
func ExtractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")

	if start < 0 || end <= start {
		return "", apperrors.ErrNoJSON
	}

	return text[start : end+1], nil
}
