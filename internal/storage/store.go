package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/quadsim/internal/dynamo"
	"github.com/san-kum/quadsim/internal/rollout"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunInfo describes how an episode was produced.
type RunInfo struct {
	Variant   string
	Policy    string
	Dt        float64
	TimeLimit float64
	Discount  float64
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Variant    string             `json:"variant"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       uint64             `json:"seed"`
	Dt         float64            `json:"dt"`
	TimeLimit  float64            `json:"time_limit"`
	Discount   float64            `json:"discount"`
	Policy     string             `json:"policy"`
	Steps      int                `json:"steps"`
	Return     float64            `json:"return"`
	Terminated bool               `json:"terminated"`
	ObsDim     int                `json:"obs_dim"`
	ActionDim  int                `json:"action_dim"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Save writes one episode as metadata.json plus states.csv. Each CSV row
// holds the time, the observation, the action taken from it and the cost
// it incurred; the final row has zero action and cost.
func (s *Store) Save(info RunInfo, ep *rollout.Episode) (string, error) {
	if ep == nil || len(ep.Observations) == 0 {
		return "", fmt.Errorf("%w: empty episode", dynamo.ErrInvalidState)
	}

	now := time.Now()
	runID := fmt.Sprintf("%s_%d_s%d", info.Variant, now.UnixNano(), ep.Seed)
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Variant:    info.Variant,
		Timestamp:  now,
		Seed:       ep.Seed,
		Dt:         info.Dt,
		TimeLimit:  info.TimeLimit,
		Discount:   info.Discount,
		Policy:     info.Policy,
		Steps:      ep.Steps,
		Return:     ep.Return,
		Terminated: ep.Terminated,
		ObsDim:     len(ep.Observations[0]),
		Metrics:    ep.Metrics,
	}
	if len(ep.Actions) > 0 {
		meta.ActionDim = len(ep.Actions[0])
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeStates(filepath.Join(runDir, statesFile), meta, ep); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeStates(path string, meta RunMetadata, ep *rollout.Episode) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{"time"}
	for i := 0; i < meta.ObsDim; i++ {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	for i := 0; i < meta.ActionDim; i++ {
		header = append(header, fmt.Sprintf("u%d", i))
	}
	header = append(header, "cost")
	if err := w.Write(header); err != nil {
		return err
	}

	for i, x := range ep.Observations {
		row := []string{formatFloat(ep.Times[i])}
		for _, val := range x {
			row = append(row, formatFloat(val))
		}
		for j := 0; j < meta.ActionDim; j++ {
			val := 0.0
			if i < len(ep.Actions) && j < len(ep.Actions[i]) {
				val = ep.Actions[i][j]
			}
			row = append(row, formatFloat(val))
		}
		cost := 0.0
		if i < len(ep.Costs) {
			cost = ep.Costs[i]
		}
		row = append(row, formatFloat(cost))

		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// List returns the metadata of every run, oldest first. Directories
// without readable metadata are skipped.
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

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadStates returns the observations and their times.
func (s *Store) LoadStates(runID string) ([][]float64, []float64, error) {
	ep, err := s.LoadEpisode(runID)
	if err != nil {
		return nil, nil, err
	}
	states := make([][]float64, len(ep.Observations))
	for i, x := range ep.Observations {
		states[i] = x
	}
	return states, ep.Times, nil
}

// LoadEpisode rebuilds the recorded episode from disk.
func (s *Store) LoadEpisode(runID string) (*rollout.Episode, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	ep := &rollout.Episode{
		Seed:       meta.Seed,
		Return:     meta.Return,
		Terminated: meta.Terminated,
		Steps:      meta.Steps,
		Metrics:    meta.Metrics,
	}
	if len(records) < 2 {
		return ep, nil
	}

	width := 1 + meta.ObsDim + meta.ActionDim + 1
	for i, record := range records[1:] {
		if len(record) != width {
			return nil, fmt.Errorf("run %s row %d: %w: %d columns, want %d",
				runID, i+1, dynamo.ErrDimensionMismatch, len(record), width)
		}
		vals := make([]float64, width)
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("run %s row %d: %w", runID, i+1, err)
			}
			vals[j] = v
		}

		ep.Times = append(ep.Times, vals[0])
		ep.Observations = append(ep.Observations, dynamo.State(vals[1:1+meta.ObsDim]))
		if i < meta.Steps {
			ep.Actions = append(ep.Actions, dynamo.Control(vals[1+meta.ObsDim:width-1]))
			ep.Costs = append(ep.Costs, vals[width-1])
		}
	}
	return ep, nil
}

// Delete removes a run directory.
func (s *Store) Delete(runID string) error {
	if runID == "" || filepath.Base(runID) != runID {
		return errors.New("storage: invalid run id")
	}
	return os.RemoveAll(filepath.Join(s.baseDir, runID))
}
