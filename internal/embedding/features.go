package embedding

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// FeatureProvider is an offline stand-in that maps text to
// [charLength, tokenCount, uniqueTokenCount]. The vectors carry no meaning
// and exist for tests and disconnected development only.
type FeatureProvider struct{}

// NewFeatureProvider creates the offline feature provider
func NewFeatureProvider() *FeatureProvider {
	return &FeatureProvider{}
}

// Features computes the three-dimensional feature vector for text
func Features(text string) []float32 {
	tokens := wordRe.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return []float32{0, 0, 0}
	}
	unique := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		unique[t] = struct{}{}
	}
	return []float32{
		float32(utf8.RuneCountInString(text)),
		float32(len(tokens)),
		float32(len(unique)),
	}
}

func (p *FeatureProvider) Embed(_ context.Context, text string) ([]float32, error) {
	return Features(text), nil
}

func (p *FeatureProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Features(t)
	}
	return out, nil
}

func (p *FeatureProvider) Name() string {
	return "features"
}
