package llm

// ChatRequest is the OpenAI-compatible completion request body
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatMessage is a single chat turn
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatResponse is the OpenAI-compatible completion response body
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ErrorResponse is the error body returned by the completion API
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// SentimentVerdict is the structured output requested from the model when
// scoring headlines
type SentimentVerdict struct {
	Sentiment  string  `json:"sentiment"` // "POSITIVE", "NEGATIVE", "NEUTRAL"
	Score      float64 `json:"score"`     // 0.0 (bearish) to 1.0 (bullish)
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}
