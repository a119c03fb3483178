package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/myrag/myrag/internal/retriever"
)

// DefaultContextChars is the context budget used when none is configured
const DefaultContextChars = 3500

const entrySeparator = "\n\n"

// AssembleContext numbers the first topK results as "[i] snippet" and joins
// them until the next entry would push the context past charBudget runes.
// The source list always covers the full topK window with the same
// numbering, so a citation [i] resolves even when its snippet was dropped.
func AssembleContext(results []retriever.RankedResult, topK, charBudget int) (string, string) {
	if topK < 0 {
		topK = 0
	}
	if topK < len(results) {
		results = results[:topK]
	}

	var context strings.Builder
	used := 0
	for i, r := range results {
		entry := fmt.Sprintf("[%d] %s", i+1, snippet(r.Content))
		size := utf8.RuneCountInString(entry)
		if context.Len() > 0 {
			size += len(entrySeparator)
		}
		if used+size > charBudget {
			break
		}
		if context.Len() > 0 {
			context.WriteString(entrySeparator)
		}
		context.WriteString(entry)
		used += size
	}

	sources := make([]string, len(results))
	for i, r := range results {
		sources[i] = fmt.Sprintf("[%d] %s", i+1, sourceLabel(r.Metadata))
	}

	return context.String(), strings.Join(sources, "\n")
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func snippet(content string) string {
	return lineBreaks.Replace(strings.TrimSpace(content))
}

func sourceLabel(metadata map[string]any) string {
	for _, key := range []string{"source", "url"} {
		if s, ok := metadata[key].(string); ok && s != "" {
			return s
		}
	}
	return "unknown"
}
