package storage

import (
	"math"

	"github.com/san-kum/gantrysim/internal/dynamo"
)

// SignalInfo is the JSON form of a descriptor. JSON has no infinities, so
// unbounded limits are stored as null.
type SignalInfo struct {
	Name   string   `json:"name"`
	Unit   string   `json:"unit"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Symbol string   `json:"symbol,omitempty"`
}

func signalInfos(signals dynamo.Signals) []SignalInfo {
	infos := make([]SignalInfo, len(signals))
	for i, s := range signals {
		infos[i] = SignalInfo{
			Name:   s.Name,
			Unit:   s.Unit,
			Min:    finiteOrNil(s.Min),
			Max:    finiteOrNil(s.Max),
			Symbol: s.Symbol,
		}
	}
	return infos
}

func toSignals(infos []SignalInfo) dynamo.Signals {
	signals := make(dynamo.Signals, len(infos))
	for i, info := range infos {
		signals[i] = dynamo.Signal{
			Name:   info.Name,
			Unit:   info.Unit,
			Min:    math.Inf(-1),
			Max:    math.Inf(1),
			Symbol: info.Symbol,
		}
		if info.Min != nil {
			signals[i].Min = *info.Min
		}
		if info.Max != nil {
			signals[i].Max = *info.Max
		}
	}
	return signals
}

func finiteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
