package agent

import "fmt"

const systemPrompt = `You are a helpful and precise assistant for a Retrieval-Augmented Generation (RAG) system.
Use ONLY the provided context to answer. If the context is insufficient, say you don't know.
Be concise and factual. Answer in the user's language.
`

// buildPrompt renders the final user turn
func buildPrompt(question string, k int, context, sources string, maxTokens int) string {
	return fmt.Sprintf(`Question:
%s

Context (top %d chunks):
%s

Instructions:
- Cite short source hints like [1], [2] if helpful.
- Do NOT fabricate sources or facts.
- Keep it under %d tokens (roughly).

Sources:
%s
`, question, k, context, maxTokens, sources)
}
