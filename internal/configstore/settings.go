// Package configstore implements versioned runtime configuration with
// rollback and change events. Settings is a layered record split into
// independently-updatable sections rather than one flat struct, so a
// patch to one section can be validated and committed without touching
// the others.
package configstore

import "trading-systemv1/internal/model"

// TradingMode is the closed set for trading.mode.
type TradingMode string

const (
	Paper TradingMode = "paper"
	Live  TradingMode = "live"
)

// BinanceSettings is the exchange-credentials section.
type BinanceSettings struct {
	Testnet     bool
	APIKey      string
	APISecret   string
	IPWhitelist []string
}

// TradingSettings is the risk/sizing section.
type TradingSettings struct {
	Mode                  TradingMode
	DefaultLeverage       int
	MaxPositionSizeUSDT   float64
	RiskPerTradePercent   float64
	DailyLossLimitUSDT    float64
}

// StrategySettings toggles which pluggable strategies are active.
type StrategySettings struct {
	Enable1 bool
	Enable2 bool
	Enable3 bool
}

// ICTSettings tunes the ICT pattern detectors' configurable thresholds.
type ICTSettings struct {
	FVGMinSizePercent       float64
	OBLookbackPeriods       int
	LiquiditySweepThreshold float64
}

// MarketSettings declares the active subscription set.
type MarketSettings struct {
	ActiveSymbols    []model.SymbolId
	PrimaryTimeframe model.Timeframe
	HigherTimeframe  model.Timeframe
	LowerTimeframe   model.Timeframe
}

// Settings is the single versioned document the store tracks.
type Settings struct {
	Binance  BinanceSettings
	Trading  TradingSettings
	Strategy StrategySettings
	ICT      ICTSettings
	Market   MarketSettings
}

// Clone returns a deep-enough copy for copy-on-write updates (slice fields
// are copied explicitly).
func (s Settings) Clone() Settings {
	out := s
	out.Binance.IPWhitelist = append([]string(nil), s.Binance.IPWhitelist...)
	out.Market.ActiveSymbols = append([]model.SymbolId(nil), s.Market.ActiveSymbols...)
	return out
}

// DefaultSettings picks a conservative, paper-trading-safe starting
// configuration; which timeframes/symbols are active by default is a
// deployment decision left to this function and to LoadFromEnv overrides.
func DefaultSettings() Settings {
	return Settings{
		Binance: BinanceSettings{Testnet: true},
		Trading: TradingSettings{
			Mode:                Paper,
			DefaultLeverage:     1,
			MaxPositionSizeUSDT: 1000,
			RiskPerTradePercent: 1,
			DailyLossLimitUSDT:  500,
		},
		Strategy: StrategySettings{Enable1: true},
		ICT: ICTSettings{
			FVGMinSizePercent:       0.02,
			OBLookbackPeriods:       50,
			LiquiditySweepThreshold: 0.001,
		},
		Market: MarketSettings{
			ActiveSymbols:    []model.SymbolId{"BTCUSDT"},
			PrimaryTimeframe: model.M5,
			HigherTimeframe:  model.H1,
			LowerTimeframe:   model.M1,
		},
	}
}

// Section is the closed set of updatable settings sections.
type Section string

const (
	SectionBinance  Section = "binance"
	SectionTrading  Section = "trading"
	SectionStrategy Section = "strategy"
	SectionICT      Section = "ict"
	SectionMarket   Section = "market"
)

// BinancePatch, TradingPatch, etc. carry only the fields to change; a nil
// pointer leaves the field untouched, so each section updates atomically
// without the caller needing to read-modify-write the whole document.
type BinancePatch struct {
	Testnet     *bool
	APIKey      *string
	APISecret   *string
	IPWhitelist []string // nil means unchanged; non-nil (incl. empty) replaces
}

type TradingPatch struct {
	Mode                *TradingMode
	DefaultLeverage     *int
	MaxPositionSizeUSDT *float64
	RiskPerTradePercent *float64
	DailyLossLimitUSDT  *float64
}

type StrategyPatch struct {
	Enable1 *bool
	Enable2 *bool
	Enable3 *bool
}

type ICTPatch struct {
	FVGMinSizePercent       *float64
	OBLookbackPeriods       *int
	LiquiditySweepThreshold *float64
}

type MarketPatch struct {
	ActiveSymbols    []model.SymbolId // nil means unchanged
	PrimaryTimeframe *model.Timeframe
	HigherTimeframe  *model.Timeframe
	LowerTimeframe   *model.Timeframe
}

func applyBinance(s *Settings, p BinancePatch) {
	if p.Testnet != nil {
		s.Binance.Testnet = *p.Testnet
	}
	if p.APIKey != nil {
		s.Binance.APIKey = *p.APIKey
	}
	if p.APISecret != nil {
		s.Binance.APISecret = *p.APISecret
	}
	if p.IPWhitelist != nil {
		s.Binance.IPWhitelist = p.IPWhitelist
	}
}

func applyTrading(s *Settings, p TradingPatch) {
	if p.Mode != nil {
		s.Trading.Mode = *p.Mode
	}
	if p.DefaultLeverage != nil {
		s.Trading.DefaultLeverage = *p.DefaultLeverage
	}
	if p.MaxPositionSizeUSDT != nil {
		s.Trading.MaxPositionSizeUSDT = *p.MaxPositionSizeUSDT
	}
	if p.RiskPerTradePercent != nil {
		s.Trading.RiskPerTradePercent = *p.RiskPerTradePercent
	}
	if p.DailyLossLimitUSDT != nil {
		s.Trading.DailyLossLimitUSDT = *p.DailyLossLimitUSDT
	}
}

func applyStrategy(s *Settings, p StrategyPatch) {
	if p.Enable1 != nil {
		s.Strategy.Enable1 = *p.Enable1
	}
	if p.Enable2 != nil {
		s.Strategy.Enable2 = *p.Enable2
	}
	if p.Enable3 != nil {
		s.Strategy.Enable3 = *p.Enable3
	}
}

func applyICT(s *Settings, p ICTPatch) {
	if p.FVGMinSizePercent != nil {
		s.ICT.FVGMinSizePercent = *p.FVGMinSizePercent
	}
	if p.OBLookbackPeriods != nil {
		s.ICT.OBLookbackPeriods = *p.OBLookbackPeriods
	}
	if p.LiquiditySweepThreshold != nil {
		s.ICT.LiquiditySweepThreshold = *p.LiquiditySweepThreshold
	}
}

func applyMarket(s *Settings, p MarketPatch) {
	if p.ActiveSymbols != nil {
		s.Market.ActiveSymbols = p.ActiveSymbols
	}
	if p.PrimaryTimeframe != nil {
		s.Market.PrimaryTimeframe = *p.PrimaryTimeframe
	}
	if p.HigherTimeframe != nil {
		s.Market.HigherTimeframe = *p.HigherTimeframe
	}
	if p.LowerTimeframe != nil {
		s.Market.LowerTimeframe = *p.LowerTimeframe
	}
}
