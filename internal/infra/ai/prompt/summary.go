package prompt

import "fmt"

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a senior document analyst. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- summary is two to four sentences in plain language.
- highlights is an array of the most decision-relevant extracted values; keep items concise.
- confidence is one of: high, medium, low, based on how complete the extracted fields are.
- Base everything strictly on the extraction payload given in the prompt; never invent values.

Schema (example with empty values):
{
  "summary": "<string>",
  "highlights": [
    {"field": "<string>", "value": "<string>", "note": "<string>"}
  ],
  "confidence": "<high|medium|low>"
}`
}

// GetUserPrompt wraps the raw extraction result payload.
func GetUserPrompt(payload string) string {
	return fmt.Sprintf("Summarize this document extraction result and respond with the JSON per schema. Payload: %s", payload)
}
