package configstore

import (
	"log"
	"os"
	"strconv"
	"strings"

	"trading-systemv1/internal/model"
)

// LoadFromEnv bootstraps the initial Settings document from environment
// variables, applying overrides on top of DefaultSettings rather than
// parsing into a separate struct, since the store is the sole owner of
// runtime settings from process start onward.
func LoadFromEnv() Settings {
	s := DefaultSettings()

	s.Binance.APIKey = getEnv("BINANCE_API_KEY", s.Binance.APIKey)
	s.Binance.APISecret = getEnv("BINANCE_API_SECRET", s.Binance.APISecret)
	s.Binance.Testnet = getEnvBool("BINANCE_TESTNET", s.Binance.Testnet)
	if wl := os.Getenv("BINANCE_IP_WHITELIST"); wl != "" {
		s.Binance.IPWhitelist = splitCSV(wl)
	}

	if mode := os.Getenv("TRADING_MODE"); mode != "" {
		s.Trading.Mode = TradingMode(mode)
	}
	s.Trading.DefaultLeverage = getEnvInt("DEFAULT_LEVERAGE", s.Trading.DefaultLeverage)
	s.Trading.MaxPositionSizeUSDT = getEnvFloat("MAX_POSITION_SIZE_USDT", s.Trading.MaxPositionSizeUSDT)
	s.Trading.RiskPerTradePercent = getEnvFloat("RISK_PER_TRADE_PERCENT", s.Trading.RiskPerTradePercent)
	s.Trading.DailyLossLimitUSDT = getEnvFloat("DAILY_LOSS_LIMIT_USDT", s.Trading.DailyLossLimitUSDT)

	if syms := os.Getenv("ACTIVE_SYMBOLS"); syms != "" {
		var out []model.SymbolId
		for _, p := range splitCSV(syms) {
			out = append(out, model.SymbolId(p))
		}
		s.Market.ActiveSymbols = out
	}
	if tf := os.Getenv("PRIMARY_TIMEFRAME"); tf != "" {
		if parsed, err := model.ParseTimeframe(tf); err == nil {
			s.Market.PrimaryTimeframe = parsed
		} else {
			log.Printf("[configstore] skipping invalid PRIMARY_TIMEFRAME: %q", tf)
		}
	}
	if tf := os.Getenv("HIGHER_TIMEFRAME"); tf != "" {
		if parsed, err := model.ParseTimeframe(tf); err == nil {
			s.Market.HigherTimeframe = parsed
		} else {
			log.Printf("[configstore] skipping invalid HIGHER_TIMEFRAME: %q", tf)
		}
	}
	if tf := os.Getenv("LOWER_TIMEFRAME"); tf != "" {
		if parsed, err := model.ParseTimeframe(tf); err == nil {
			s.Market.LowerTimeframe = parsed
		} else {
			log.Printf("[configstore] skipping invalid LOWER_TIMEFRAME: %q", tf)
		}
	}

	return s
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[configstore] skipping invalid %s: %q", key, v)
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[configstore] skipping invalid %s: %q", key, v)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[configstore] skipping invalid %s: %q", key, v)
		return fallback
	}
	return f
}
