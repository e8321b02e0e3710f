package indicators

import (
	"math"

	"github.com/markcheno/go-talib"

	"hypertrader/internal/adapters/exchanges"
	"hypertrader/pkg/errors"
)

// TalibData holds OHLCV data in the format expected by ta-lib
type TalibData struct {
	High  []float64
	Low   []float64
	Close []float64
}

// PrepareData converts candles (oldest first) to ta-lib input slices
func PrepareData(candles []exchanges.OHLCV) (*TalibData, error) {
	if len(candles) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "no candles provided")
	}
	data := &TalibData{
		High:  make([]float64, len(candles)),
		Low:   make([]float64, len(candles)),
		Close: make([]float64, len(candles)),
	}
	for i, c := range candles {
		data.High[i] = c.High.InexactFloat64()
		data.Low[i] = c.Low.InexactFloat64()
		data.Close[i] = c.Close.InexactFloat64()
	}
	return data, nil
}

// Compute calculates the standard indicator set on the latest candle.
// Indicators without enough history are omitted.
func Compute(candles []exchanges.OHLCV) (map[string]float64, error) {
	data, err := PrepareData(candles)
	if err != nil {
		return nil, err
	}
	closes := data.Close
	n := len(closes)
	out := make(map[string]float64)

	if n >= 20 {
		set(out, "sma_20", talib.Sma(closes, 20))
	}
	if n >= 50 {
		set(out, "sma_50", talib.Sma(closes, 50))
	}
	if n >= 12 {
		set(out, "ema_12", talib.Ema(closes, 12))
	}
	if n >= 26 {
		set(out, "ema_26", talib.Ema(closes, 26))
	}
	// MACD(12,26,9) needs slow + signal - 1 closes before its first value
	if n >= 34 {
		macd, signal, hist := talib.Macd(closes, 12, 26, 9)
		set(out, "macd", macd)
		set(out, "macd_signal", signal)
		set(out, "macd_hist", hist)
	}
	if n >= 15 {
		set(out, "rsi_14", talib.Rsi(closes, 14))
	}
	if n >= 20 {
		upper, middle, lower := talib.BBands(closes, 20, 2, 2, talib.SMA)
		set(out, "bb_upper", upper)
		set(out, "bb_middle", middle)
		set(out, "bb_lower", lower)
	}
	if n >= 15 {
		set(out, "atr_14", talib.Atr(data.High, data.Low, closes, 14))
	}

	return out, nil
}

// Payload rounds indicator values for the model
func Payload(values map[string]float64) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		out[k] = math.Round(v*1e6) / 1e6
	}
	return out
}

func set(out map[string]float64, name string, values []float64) {
	if len(values) == 0 {
		return
	}
	v := values[len(values)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	out[name] = v
}
