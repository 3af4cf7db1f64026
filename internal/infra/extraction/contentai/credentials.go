package contentai

import (
	"context"
	"fmt"

	"github.com/adityawrm/docintel/internal/domain/extraction"
)

// StaticCredentials hands out a fixed API key as the bearer token.
type StaticCredentials struct {
	key string
}

func NewStaticCredentials(key string) *StaticCredentials {
	return &StaticCredentials{key: key}
}

func (s *StaticCredentials) Token(ctx context.Context) (string, error) {
	if s.key == "" {
		return "", fmt.Errorf("%w: no api key configured", extraction.ErrAuth)
	}
	return s.key, nil
}
