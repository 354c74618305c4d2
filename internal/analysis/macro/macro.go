// Package macro reports the macroeconomic backdrop: regime, risk
// environment, sector outlooks and equity correlation.
package macro

import (
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
)

// Indicators is the macro snapshot the service reasons over
type Indicators struct {
	MarketRegime          string  `json:"market_regime"`
	RiskAppetite          float64 `json:"risk_appetite"`
	GDPGrowth             float64 `json:"gdp_growth"`
	Inflation             float64 `json:"inflation"`
	Unemployment          float64 `json:"unemployment"`
	InterestRate          float64 `json:"interest_rate"`
	Liquidity             float64 `json:"liquidity"`
	VolatilityRegime      string  `json:"volatility_regime"`
	CorrelationToEquities float64 `json:"correlation_to_equities"`
}

// defaultIndicators is the current modeled macro state
var defaultIndicators = Indicators{
	MarketRegime:          "CONSOLIDATION",
	RiskAppetite:          0.62,
	GDPGrowth:             0.024,
	Inflation:             0.029,
	Unemployment:          0.037,
	InterestRate:          0.0525,
	Liquidity:             0.68,
	VolatilityRegime:      "NORMAL",
	CorrelationToEquities: 0.55,
}

// sectorMultipliers scale risk appetite into a per-sector outlook
var sectorMultipliers = map[string]float64{
	"defi":   1.2,
	"layer1": 1.0,
	"nft":    0.8,
	"gaming": 0.9,
}

// Service serves macro analysis from the indicator snapshot
type Service struct {
	ind Indicators
	log zerolog.Logger
}

// NewService creates the macro service with the default indicators
func NewService() *Service {
	return &Service{
		ind: defaultIndicators,
		log: config.NewMCPLogger("macro"),
	}
}

// riskEnvironment classifies the environment and assigns a risk score
func riskEnvironment(ind Indicators) (string, float64) {
	if ind.RiskAppetite > 0.7 && ind.Liquidity > 0.7 {
		return "FAVORABLE", 0.3
	}
	if ind.RiskAppetite < 0.5 || ind.Liquidity < 0.5 {
		return "CHALLENGING", 0.7
	}
	return "NEUTRAL", 0.5
}

// stance picks the allocation stance with a volatility-adjusted confidence
func stance(ind Indicators, env string) (string, float64) {
	var name string
	var conf float64
	switch {
	case ind.MarketRegime == "BULL" && env == "FAVORABLE":
		name, conf = "AGGRESSIVE", 0.8
	case ind.MarketRegime == "BEAR" || env == "CHALLENGING":
		name, conf = "DEFENSIVE", 0.75
	default:
		name, conf = "BALANCED", 0.65
	}

	switch ind.VolatilityRegime {
	case "HIGH":
		conf -= 0.1
	case "LOW":
		conf += 0.05
	}
	conf = math.Max(0.5, math.Min(conf, 0.95))
	return name, conf
}

// Analyze returns the full macro assessment
func (s *Service) Analyze() map[string]any {
	env, score := riskEnvironment(s.ind)
	st, conf := stance(s.ind, env)

	return map[string]any{
		"market_regime":    s.ind.MarketRegime,
		"risk_environment": env,
		"risk_score":       score,
		"stance":           st,
		"confidence":       conf,
		"indicators":       s.ind,
	}
}

// Stance exposes the current stance for the investor pipeline
func (s *Service) Stance() (string, float64) {
	env, _ := riskEnvironment(s.ind)
	return stance(s.ind, env)
}

// GetIndicators returns the raw snapshot with plain-language readings
func (s *Service) GetIndicators() map[string]any {
	interpretation := map[string]string{
		"market_regime":    "Sideways consolidation, no dominant trend",
		"risk_appetite":    interpretScale(s.ind.RiskAppetite, "Risk appetite"),
		"gdp_growth":       "Moderate expansion",
		"inflation":        "Near target, not a policy constraint",
		"unemployment":     "Tight labor market",
		"interest_rate":    "Restrictive policy rate",
		"liquidity":        interpretScale(s.ind.Liquidity, "Market liquidity"),
		"volatility_regime": "Volatility within normal range",
	}

	return map[string]any{
		"indicators":     s.ind,
		"interpretation": interpretation,
	}
}

func interpretScale(v float64, label string) string {
	switch {
	case v > 0.7:
		return label + " is elevated"
	case v < 0.5:
		return label + " is depressed"
	default:
		return label + " is moderate"
	}
}

// SectorOutlook scores a sector by scaling risk appetite
func (s *Service) SectorOutlook(sector string) map[string]any {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(sector), " ", ""))
	multiplier, known := sectorMultipliers[key]
	if !known {
		multiplier = 1.0
	}

	score := s.ind.RiskAppetite * multiplier
	outlook := "NEUTRAL"
	if score > 0.65 {
		outlook = "POSITIVE"
	} else if score < 0.45 {
		outlook = "NEGATIVE"
	}

	return map[string]any{
		"sector":     sector,
		"known":      known,
		"multiplier": multiplier,
		"score":      score,
		"outlook":    outlook,
	}
}

// AssessTiming rates the present moment for portfolio changes
func (s *Service) AssessTiming() map[string]any {
	env, _ := riskEnvironment(s.ind)

	timing := "NEUTRAL"
	score := 0.5
	recommendation := "No strong macro signal; rebalance on schedule"
	switch env {
	case "FAVORABLE":
		timing = "FAVORABLE"
		score = 0.8
		recommendation = "Supportive backdrop for adding risk"
	case "CHALLENGING":
		timing = "UNFAVORABLE"
		score = 0.3
		recommendation = "Defer discretionary risk-taking; keep dry powder"
	}

	return map[string]any{
		"timing":           timing,
		"score":            score,
		"risk_environment": env,
		"recommendation":   recommendation,
	}
}

// CorrelationAnalysis reports the crypto-to-equities correlation
func (s *Service) CorrelationAnalysis() map[string]any {
	corr := s.ind.CorrelationToEquities

	level := "MODERATE"
	if corr > 0.6 {
		level = "HIGH"
	} else if corr < 0.4 {
		level = "LOW"
	}

	return map[string]any{
		"correlation_to_equities": corr,
		"level":                   level,
		"diversification_benefit": 1 - corr,
	}
}
