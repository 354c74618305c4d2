package llm

import (
	"fmt"
	"strings"
)

// SentimentSystemPrompt frames the model as a JSON-only news analyst
const SentimentSystemPrompt = `You are a financial news analyst. You score crypto and equity headlines for market sentiment. Respond only with JSON, no prose.`

// BuildSentimentPrompt asks the model to score a batch of headlines
func BuildSentimentPrompt(symbol string, headlines []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Score the overall market sentiment for %s from these headlines:\n\n", symbol)
	for i, h := range headlines {
		fmt.Fprintf(&b, "%d. %s\n", i+1, h)
	}
	b.WriteString(`
Respond in this JSON format:
{
  "sentiment": "POSITIVE" | "NEGATIVE" | "NEUTRAL",
  "score": 0.0-1.0,
  "confidence": 0.0-1.0,
  "reasoning": "one sentence"
}
A score of 0.5 is neutral; above 0.6 is positive, below 0.4 is negative.`)
	return b.String()
}

// BuildHeadlinePrompt asks the model to score a single headline
func BuildHeadlinePrompt(headline string) string {
	return fmt.Sprintf(`Score the market sentiment of this headline:

%q

Respond in this JSON format:
{
  "sentiment": "POSITIVE" | "NEGATIVE" | "NEUTRAL",
  "score": 0.0-1.0,
  "confidence": 0.0-1.0,
  "reasoning": "one sentence"
}`, headline)
}
