package analysis

import (
	"fmt"
	"strings"

	"repolens/internal/article"
	"repolens/internal/github"
)

// DetectKind decides which pipeline serves input and returns the normalised
// target: "owner/repo" for repositories, the absolute URL for articles.
func DetectKind(input string) (Kind, string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", "", fmt.Errorf("%w: empty input", ErrUnsupportedInput)
	}
	if ref, err := github.ParseRepoRef(input); err == nil {
		return KindRepo, ref.String(), nil
	}
	u, err := article.ValidateURL(input)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedInput, input)
	}
	return KindArticle, u.String(), nil
}
