package configstore

// validate enforces range and consistency rules on a candidate Settings
// document before it is committed.
func validate(s Settings) error {
	if s.Trading.RiskPerTradePercent <= 0 || s.Trading.RiskPerTradePercent > 10 {
		return &ValidationError{Field: "trading.risk_per_trade_percent", Detail: "must be in (0, 10]"}
	}
	if s.Trading.DefaultLeverage < 1 || s.Trading.DefaultLeverage > 125 {
		return &ValidationError{Field: "trading.default_leverage", Detail: "must be in [1, 125]"}
	}
	if s.Trading.MaxPositionSizeUSDT <= 0 {
		return &ValidationError{Field: "trading.max_position_size_usdt", Detail: "must be positive"}
	}
	if s.Trading.DailyLossLimitUSDT <= 0 {
		return &ValidationError{Field: "trading.daily_loss_limit_usdt", Detail: "must be positive"}
	}
	if s.Trading.Mode != Paper && s.Trading.Mode != Live {
		return &ValidationError{Field: "trading.mode", Detail: "must be paper or live"}
	}
	if s.ICT.FVGMinSizePercent < 0 {
		return &ValidationError{Field: "ict.fvg_min_size_percent", Detail: "must be non-negative"}
	}
	if s.ICT.OBLookbackPeriods <= 0 {
		return &ValidationError{Field: "ict.ob_lookback_periods", Detail: "must be positive"}
	}
	if len(s.Market.ActiveSymbols) == 0 {
		return &ValidationError{Field: "market.active_symbols", Detail: "must not be empty"}
	}
	return nil
}
