// Package fundamental scores assets on market cap, adoption and network
// growth, and produces investment theses from those scores.
package fundamental

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/market"
)

// Metrics are the raw fundamentals tracked per asset
type Metrics struct {
	MarketCap     float64 `json:"market_cap"`
	AdoptionScore float64 `json:"adoption_score"`
	NetworkGrowth float64 `json:"network_growth"`
	Category      string  `json:"category"`
}

// baseline fundamentals for the majors; anything else gets defaultMetrics
var baselineMetrics = map[string]Metrics{
	"BTC": {MarketCap: 940e9, AdoptionScore: 0.95, NetworkGrowth: 0.15, Category: "Store of Value"},
	"ETH": {MarketCap: 336e9, AdoptionScore: 0.92, NetworkGrowth: 0.25, Category: "Smart Contract Platform"},
	"SOL": {MarketCap: 45e9, AdoptionScore: 0.75, NetworkGrowth: 0.40, Category: "Layer 1"},
}

var defaultMetrics = Metrics{MarketCap: 10e9, AdoptionScore: 0.60, NetworkGrowth: 0.20, Category: "Altcoin"}

// Service holds the metrics table plus any simulation overrides
type Service struct {
	mu        sync.RWMutex
	overrides map[string]Metrics
	log       zerolog.Logger
}

// NewService creates the fundamental service
func NewService() *Service {
	return &Service{
		overrides: make(map[string]Metrics),
		log:       config.NewMCPLogger("fundamental"),
	}
}

// baseTicker reduces any symbol spelling to the bare asset ticker
func baseTicker(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.TrimSuffix(s, "USDT")
	s = strings.TrimSuffix(s, "-USD")
	return s
}

// metricsFor resolves the effective metrics, overrides first
func (s *Service) metricsFor(symbol string) Metrics {
	base := baseTicker(symbol)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.overrides[base]; ok {
		return m
	}
	if m, ok := baselineMetrics[base]; ok {
		return m
	}
	return defaultMetrics
}

// Scores are the derived fundamental scores
type Scores struct {
	Valuation float64 `json:"valuation_score"`
	Quality   float64 `json:"quality_score"`
	Growth    float64 `json:"growth_score"`
	Overall   float64 `json:"overall_score"`
}

// score derives the composite fundamental scores from raw metrics
func score(m Metrics) Scores {
	// Smaller caps score better on valuation, growth adds up to 0.3
	valuation := 0.3
	if m.MarketCap < 50e9 {
		valuation = 0.7
	} else if m.MarketCap < 200e9 {
		valuation = 0.5
	}
	valuation += math.Min(m.NetworkGrowth*0.5, 0.3)
	valuation = math.Min(valuation, 1.0)

	quality := m.AdoptionScore
	growth := math.Min(m.NetworkGrowth/0.5, 1.0)

	return Scores{
		Valuation: valuation,
		Quality:   quality,
		Growth:    growth,
		Overall:   0.3*valuation + 0.4*quality + 0.3*growth,
	}
}

// recommend maps the overall score to a recommendation with confidence
func recommend(overall float64) (string, float64) {
	if overall > 0.7 {
		return "BUY", overall
	}
	if overall < 0.4 {
		return "SELL", 1 - overall
	}
	return "HOLD", 0.6
}

// Analyze scores a single asset
func (s *Service) Analyze(symbol string) map[string]any {
	normalized := market.NormalizeSymbol(symbol)
	m := s.metricsFor(symbol)
	sc := score(m)
	rec, conf := recommend(sc.Overall)

	return map[string]any{
		"symbol":         normalized,
		"category":       m.Category,
		"metrics":        m,
		"scores":         sc,
		"recommendation": rec,
		"confidence":     conf,
	}
}

// Compare ranks assets by overall fundamental score, best first
func (s *Service) Compare(symbols []string) map[string]any {
	rankings := make([]map[string]any, 0, len(symbols))
	for _, sym := range symbols {
		sc := score(s.metricsFor(sym))
		rankings = append(rankings, map[string]any{
			"symbol":        market.NormalizeSymbol(sym),
			"overall_score": sc.Overall,
			"scores":        sc,
		})
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i]["overall_score"].(float64) > rankings[j]["overall_score"].(float64)
	})

	result := map[string]any{"rankings": rankings}
	if len(rankings) > 0 {
		result["top_pick"] = rankings[0]["symbol"]
	}
	return result
}

// InvestmentThesis assembles strengths and weaknesses from the score profile
func (s *Service) InvestmentThesis(symbol string) map[string]any {
	normalized := market.NormalizeSymbol(symbol)
	m := s.metricsFor(symbol)
	sc := score(m)
	rec, conf := recommend(sc.Overall)

	var strengths, weaknesses []string
	if sc.Quality > 0.7 {
		strengths = append(strengths, "Strong adoption and network effects")
	} else if sc.Quality < 0.5 {
		weaknesses = append(weaknesses, "Weak adoption relative to peers")
	}
	if sc.Valuation > 0.6 {
		strengths = append(strengths, "Attractive valuation for the growth profile")
	} else if sc.Valuation < 0.4 {
		weaknesses = append(weaknesses, "Rich valuation at current market cap")
	}
	if sc.Growth > 0.6 {
		strengths = append(strengths, "High network growth momentum")
	} else if sc.Growth < 0.4 {
		weaknesses = append(weaknesses, "Slowing network growth")
	}

	return map[string]any{
		"symbol":         normalized,
		"category":       m.Category,
		"recommendation": rec,
		"confidence":     conf,
		"overall_score":  sc.Overall,
		"strengths":      strengths,
		"weaknesses":     weaknesses,
		"horizon":        "Long-term (6-12 months)",
	}
}

// SetSimulationMetrics overrides the fundamentals for a symbol
func (s *Service) SetSimulationMetrics(symbol string, m Metrics) {
	base := baseTicker(symbol)
	if m.Category == "" {
		if existing, ok := baselineMetrics[base]; ok {
			m.Category = existing.Category
		} else {
			m.Category = defaultMetrics.Category
		}
	}

	s.mu.Lock()
	s.overrides[base] = m
	s.mu.Unlock()

	s.log.Info().Str("symbol", base).Msg("Simulation fundamentals set")
}

// ClearSimulationMode drops all overrides
func (s *Service) ClearSimulationMode() int {
	s.mu.Lock()
	n := len(s.overrides)
	s.overrides = make(map[string]Metrics)
	s.mu.Unlock()

	s.log.Info().Int("cleared", n).Msg("Simulation mode cleared")
	return n
}
