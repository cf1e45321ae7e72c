package model

import "fmt"

// Timeframe is a closed enum of candle resolutions. Always a typed value,
// never a free-form string, on the wire or across events.
type Timeframe uint8

const (
	TimeframeUnknown Timeframe = iota
	M1
	M5
	M15
	H1
	H4
	D1
)

// Seconds returns the timeframe's bucket width.
func (tf Timeframe) Seconds() int64 {
	switch tf {
	case M1:
		return 60
	case M5:
		return 5 * 60
	case M15:
		return 15 * 60
	case H1:
		return 60 * 60
	case H4:
		return 4 * 60 * 60
	case D1:
		return 24 * 60 * 60
	default:
		return 0
	}
}

func (tf Timeframe) String() string {
	switch tf {
	case M1:
		return "M1"
	case M5:
		return "M5"
	case M15:
		return "M15"
	case H1:
		return "H1"
	case H4:
		return "H4"
	case D1:
		return "D1"
	default:
		return "UNKNOWN"
	}
}

// ParseTimeframe parses a timeframe token, rejecting anything outside the
// closed set above.
func ParseTimeframe(s string) (Timeframe, error) {
	switch s {
	case "M1":
		return M1, nil
	case "M5":
		return M5, nil
	case "M15":
		return M15, nil
	case "H1":
		return H1, nil
	case "H4":
		return H4, nil
	case "D1":
		return D1, nil
	default:
		return TimeframeUnknown, fmt.Errorf("model: invalid timeframe token %q", s)
	}
}

// AllTimeframes lists the full supported set. Which of these are active by
// default is a deployment decision, resolved in
// internal/configstore.DefaultSettings.
var AllTimeframes = []Timeframe{M1, M5, M15, H1, H4, D1}

// SymbolId is an exchange ticker, e.g. "BTCUSDT".
type SymbolId string

// StreamKey is the unit of subscription and per-key state: (SymbolId, Timeframe).
type StreamKey struct {
	Symbol    SymbolId
	Timeframe Timeframe
}

// String renders "SYMBOL:TF", used as a map key and log tag.
func (k StreamKey) String() string {
	return string(k.Symbol) + ":" + k.Timeframe.String()
}
