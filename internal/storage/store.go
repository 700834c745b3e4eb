package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/gantrysim/internal/dynamo"
)

// RunDirFormat names run directories after their creation time.
const RunDirFormat = "2006-01-02_15-04-05"

const (
	metadataFile = "metadata.json"
	signalsFile  = "signals.json"
)

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Dir returns the directory of a run.
func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

// Stream is one table of a run together with the descriptors of its
// columns, in column order.
type Stream struct {
	Name    string
	Table   *dynamo.Table
	Signals dynamo.Signals
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Plant      string             `json:"plant"`
	Algorithm  string             `json:"algorithm"`
	Integrator string             `json:"integrator"`
	Timestamp  time.Time          `json:"timestamp"`
	Dt         float64            `json:"dt"`
	Cycles     int                `json:"cycles"`
	Reference  []float64          `json:"reference,omitempty"`
	Params     map[string]float64 `json:"params,omitempty"`
	Metrics    map[string]float64 `json:"metrics"`
	Streams    []string           `json:"streams"`
	Error      string             `json:"error,omitempty"`
}

// Save writes every stream into a fresh run directory and returns its ID.
// Each stream becomes <name>.csv and <name>.xlsx; descriptors go to
// signals.json and meta to metadata.json.
func (s *Store) Save(meta RunMetadata, streams []Stream) (string, error) {
	if err := checkStreams(streams); err != nil {
		return "", err
	}
	if err := s.Init(); err != nil {
		return "", err
	}
	runID, err := s.createRunDir()
	if err != nil {
		return "", err
	}
	runDir := s.Dir(runID)

	meta.ID = runID
	meta.Timestamp = s.now()
	meta.Streams = make([]string, 0, len(streams))
	signals := make(map[string][]SignalInfo, len(streams))
	for _, st := range streams {
		meta.Streams = append(meta.Streams, st.Name)
		signals[st.Name] = signalInfos(st.Signals)

		if err := writeCSV(filepath.Join(runDir, st.Name+".csv"), st.Table); err != nil {
			return runID, err
		}
		if err := writeXLSX(filepath.Join(runDir, st.Name+".xlsx"), st.Name, st.Table); err != nil {
			return runID, err
		}
	}

	if err := writeJSON(filepath.Join(runDir, signalsFile), signals); err != nil {
		return runID, err
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return runID, err
	}
	return runID, nil
}

func checkStreams(streams []Stream) error {
	seen := make(map[string]bool, len(streams))
	for _, st := range streams {
		if st.Name == "" || st.Name != filepath.Base(st.Name) {
			return fmt.Errorf("%w: invalid stream name %q", dynamo.ErrConfiguration, st.Name)
		}
		if seen[st.Name] {
			return fmt.Errorf("%w: duplicate stream %q", dynamo.ErrConfiguration, st.Name)
		}
		seen[st.Name] = true
		if st.Table == nil {
			return fmt.Errorf("%w: stream %q has no table", dynamo.ErrConfiguration, st.Name)
		}
		if len(st.Signals) != len(st.Table.Columns) {
			return fmt.Errorf("%w: stream %q has %d descriptors for %d columns", dynamo.ErrDimensionMismatch, st.Name, len(st.Signals), len(st.Table.Columns))
		}
		for i, sig := range st.Signals {
			if sig.Name != st.Table.Columns[i] {
				return fmt.Errorf("%w: stream %q column %d is %q, descriptor is %q", dynamo.ErrDimensionMismatch, st.Name, i, st.Table.Columns[i], sig.Name)
			}
		}
	}
	return nil
}

// createRunDir makes a directory named after the current second, with a
// numeric suffix when that name is taken.
func (s *Store) createRunDir() (string, error) {
	base := s.now().Format(RunDirFormat)
	id := base
	for n := 1; ; n++ {
		err := os.Mkdir(s.Dir(id), 0755)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
}

func writeCSV(path string, table *dynamo.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"time"}, table.Columns...)); err != nil {
		return err
	}
	for i, row := range table.Rows {
		rec := make([]string, 0, len(row)+1)
		rec = append(rec, strconv.FormatFloat(table.Times[i], 'g', -1, 64))
		for _, val := range row {
			rec = append(rec, strconv.FormatFloat(val, 'g', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return f.Close()
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].ID < runs[j].ID })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadSignals returns the descriptors of every stream of a run.
func (s *Store) LoadSignals(runID string) (map[string]dynamo.Signals, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), signalsFile))
	if err != nil {
		return nil, err
	}

	var infos map[string][]SignalInfo
	if err := json.Unmarshal(data, &infos); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	out := make(map[string]dynamo.Signals, len(infos))
	for name, list := range infos {
		out[name] = toSignals(list)
	}
	return out, nil
}

// LoadStream reads <name>.csv of a run back into a table.
func (s *Store) LoadStream(runID, name string) (*dynamo.Table, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.Dir(runID), name+".csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s stream %s: %w", runID, name, err)
	}
	if len(records) == 0 || len(records[0]) == 0 || records[0][0] != "time" {
		return nil, fmt.Errorf("run %s stream %s: missing header", runID, name)
	}

	table := &dynamo.Table{Columns: records[0][1:]}
	for i, rec := range records[1:] {
		vals := make([]float64, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("run %s stream %s row %d: %w", runID, name, i+1, err)
			}
			vals[j] = v
		}
		if err := table.Append(vals[0], vals[1:]); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func checkRunID(runID string) error {
	if runID == "" || runID != filepath.Base(runID) || runID == "." || runID == ".." {
		return fmt.Errorf("%w: invalid run id %q", dynamo.ErrConfiguration, runID)
	}
	return nil
}
