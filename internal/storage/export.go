package storage

import (
	"encoding/json"
	"io"
)

// ExportData is a self-contained JSON dump of one run.
type ExportData struct {
	Meta    RunMetadata           `json:"meta"`
	Streams map[string]StreamData `json:"streams"`
}

type StreamData struct {
	Signals []SignalInfo `json:"signals"`
	Times   []float64    `json:"times"`
	Rows    [][]float64  `json:"rows"`
}

// ExportJSON writes meta and every stream to w without touching the store.
func ExportJSON(w io.Writer, meta RunMetadata, streams []Stream) error {
	if err := checkStreams(streams); err != nil {
		return err
	}
	data := ExportData{
		Meta:    meta,
		Streams: make(map[string]StreamData, len(streams)),
	}
	data.Meta.Streams = make([]string, 0, len(streams))
	for _, st := range streams {
		data.Meta.Streams = append(data.Meta.Streams, st.Name)
		data.Streams[st.Name] = StreamData{
			Signals: signalInfos(st.Signals),
			Times:   st.Table.Times,
			Rows:    st.Table.Rows,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
