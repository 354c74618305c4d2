// Package news scores headline sentiment, preferring an LLM when one is
// configured and falling back to keyword counting.
package news

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/llm"
	"github.com/autofinance/autofinance/internal/market"
)

var positiveKeywords = []string{
	"surge", "rally", "bullish", "breakthrough", "record", "profit",
	"adoption", "growth", "upgrade", "partnership", "innovation",
	"outperform", "optimistic", "gain", "rise", "soar",
}

var negativeKeywords = []string{
	"crash", "plunge", "bearish", "decline", "loss", "concern", "risk",
	"fear", "regulatory", "ban", "hack", "vulnerability", "underperform",
	"pessimistic", "fall", "drop", "tumble",
}

var neutralKeywords = []string{
	"stable", "steady", "maintain", "hold", "unchanged", "flat",
}

// mockHeadlines are the templates served when no feed is wired up
var mockHeadlines = []string{
	"%s sees increased institutional adoption as funds add exposure",
	"Analysts remain optimistic on %s following network upgrade",
	"%s price holds steady amid mixed trading volume",
	"Regulatory concern weighs on %s in European markets",
	"%s developers announce partnership with major payments provider",
}

// simOverride is a pinned sentiment for a symbol
type simOverride struct {
	Sentiment  string
	Score      float64
	Confidence float64
}

// Service scores sentiment for symbols and headlines
type Service struct {
	completer llm.Completer // nil means keyword scoring only

	mu        sync.RWMutex
	overrides map[string]simOverride

	log zerolog.Logger
}

// NewService creates the news service. completer may be nil.
func NewService(completer llm.Completer) *Service {
	return &Service{
		completer: completer,
		overrides: make(map[string]simOverride),
		log:       config.NewMCPLogger("news"),
	}
}

// ScoreHeadline gives a headline a 0..1 keyword score, 0.5 being neutral
func ScoreHeadline(headline string) float64 {
	lower := strings.ToLower(headline)

	score := 0.5
	for _, kw := range positiveKeywords {
		if strings.Contains(lower, kw) {
			score += 0.1
		}
	}
	for _, kw := range negativeKeywords {
		if strings.Contains(lower, kw) {
			score -= 0.1
		}
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// classify maps an average score to a sentiment label with confidence
func classify(avg float64) (string, float64) {
	if avg > 0.6 {
		conf := (avg - 0.5) * 2
		if conf > 1 {
			conf = 1
		}
		return "POSITIVE", conf
	}
	if avg < 0.4 {
		conf := (0.5 - avg) * 2
		if conf > 1 {
			conf = 1
		}
		return "NEGATIVE", conf
	}
	return "NEUTRAL", 0.5
}

// keywordAggregate scores a headline batch with the keyword lists
func keywordAggregate(headlines []string) (avg float64, sentiment string, confidence float64) {
	total := 0.0
	for _, h := range headlines {
		total += ScoreHeadline(h)
	}
	avg = total / float64(len(headlines))
	sentiment, confidence = classify(avg)
	return avg, sentiment, confidence
}

// scoreBatch runs the LLM when available, keyword scoring otherwise
func (s *Service) scoreBatch(ctx context.Context, symbol string, headlines []string) map[string]any {
	if s.completer != nil {
		out, err := s.completer.CompleteWithSystem(ctx,
			llm.SentimentSystemPrompt, llm.BuildSentimentPrompt(symbol, headlines))
		if err == nil {
			var v llm.SentimentVerdict
			if perr := llm.ParseJSONResponse(out, &v); perr == nil && v.Sentiment != "" {
				return map[string]any{
					"symbol":     symbol,
					"sentiment":  v.Sentiment,
					"score":      v.Score,
					"confidence": v.Confidence,
					"reasoning":  v.Reasoning,
					"method":     "llm",
					"headlines":  len(headlines),
				}
			}
		}
		s.log.Warn().Err(err).Msg("LLM scoring unavailable, using keyword fallback")
	}

	avg, sentiment, confidence := keywordAggregate(headlines)
	return map[string]any{
		"symbol":     symbol,
		"sentiment":  sentiment,
		"score":      avg,
		"confidence": confidence,
		"method":     "keyword",
		"headlines":  len(headlines),
	}
}

// AnalyzeSentiment scores the supplied headlines for a symbol
func (s *Service) AnalyzeSentiment(ctx context.Context, symbol string, headlines []string) map[string]any {
	normalized := market.NormalizeSymbol(symbol)

	if res, ok := s.overrideFor(normalized); ok {
		return res
	}
	if len(headlines) == 0 {
		return map[string]any{
			"symbol":     normalized,
			"sentiment":  "UNKNOWN",
			"confidence": 0.0,
			"reason":     "no headlines available",
		}
	}
	return s.scoreBatch(ctx, normalized, headlines)
}

// GetMarketSentiment scores the current headline feed for a symbol. Without
// a real feed the mock templates stand in.
func (s *Service) GetMarketSentiment(ctx context.Context, symbol string) map[string]any {
	normalized := market.NormalizeSymbol(symbol)

	if res, ok := s.overrideFor(normalized); ok {
		return res
	}

	headlines := make([]string, len(mockHeadlines))
	for i, tmpl := range mockHeadlines {
		headlines[i] = fmt.Sprintf(tmpl, normalized)
	}

	res := s.scoreBatch(ctx, normalized, headlines)
	res["source"] = "mock"
	res["sample_headlines"] = headlines
	return res
}

// AnalyzeCustomHeadline scores a single user-supplied headline
func (s *Service) AnalyzeCustomHeadline(ctx context.Context, headline string) map[string]any {
	if s.completer != nil {
		out, err := s.completer.CompleteWithSystem(ctx,
			llm.SentimentSystemPrompt, llm.BuildHeadlinePrompt(headline))
		if err == nil {
			var v llm.SentimentVerdict
			if perr := llm.ParseJSONResponse(out, &v); perr == nil && v.Sentiment != "" {
				return map[string]any{
					"headline":   headline,
					"sentiment":  v.Sentiment,
					"score":      v.Score,
					"confidence": v.Confidence,
					"reasoning":  v.Reasoning,
					"method":     "llm",
				}
			}
		}
	}

	score := ScoreHeadline(headline)
	sentiment, confidence := classify(score)
	return map[string]any{
		"headline":   headline,
		"sentiment":  sentiment,
		"score":      score,
		"confidence": confidence,
		"method":     "keyword",
	}
}

// overrideFor returns the pinned sentiment for a symbol if one is set
func (s *Service) overrideFor(normalized string) (map[string]any, bool) {
	s.mu.RLock()
	ov, ok := s.overrides[normalized]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return map[string]any{
		"symbol":     normalized,
		"sentiment":  ov.Sentiment,
		"score":      ov.Score,
		"confidence": ov.Confidence,
		"method":     "simulation",
	}, true
}

// SetSimulationSentiment pins the sentiment reported for a symbol
func (s *Service) SetSimulationSentiment(symbol, sentiment string, score, confidence float64) {
	normalized := market.NormalizeSymbol(symbol)

	s.mu.Lock()
	s.overrides[normalized] = simOverride{
		Sentiment:  strings.ToUpper(sentiment),
		Score:      score,
		Confidence: confidence,
	}
	s.mu.Unlock()

	s.log.Info().Str("symbol", normalized).Str("sentiment", sentiment).Msg("Simulation sentiment set")
}

// ClearSimulationMode drops all pinned sentiments
func (s *Service) ClearSimulationMode() int {
	s.mu.Lock()
	n := len(s.overrides)
	s.overrides = make(map[string]simOverride)
	s.mu.Unlock()

	s.log.Info().Int("cleared", n).Msg("Simulation mode cleared")
	return n
}
