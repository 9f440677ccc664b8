package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/quadsim/internal/rollout"
)

type ExportData struct {
	Variant string             `json:"variant"`
	Policy  string             `json:"policy"`
	Dt      float64            `json:"dt"`
	Seed    uint64             `json:"seed"`
	Steps   int                `json:"steps"`
	Return  float64            `json:"return"`
	Times   []float64          `json:"times"`
	States  [][]float64        `json:"states"`
	Actions [][]float64        `json:"actions"`
	Costs   []float64          `json:"costs"`
	Metrics map[string]float64 `json:"metrics"`
}

func NewExportData(info RunInfo, ep *rollout.Episode) ExportData {
	data := ExportData{
		Variant: info.Variant,
		Policy:  info.Policy,
		Dt:      info.Dt,
		Seed:    ep.Seed,
		Steps:   ep.Steps,
		Return:  ep.Return,
		Times:   ep.Times,
		States:  make([][]float64, len(ep.Observations)),
		Actions: make([][]float64, len(ep.Actions)),
		Costs:   ep.Costs,
		Metrics: ep.Metrics,
	}
	for i, s := range ep.Observations {
		data.States[i] = s
	}
	for i, a := range ep.Actions {
		data.Actions[i] = a
	}
	return data
}

// ExportJSON writes the episode as indented JSON to w.
func ExportJSON(w io.Writer, info RunInfo, ep *rollout.Episode) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewExportData(info, ep))
}

// ExportFile writes the episode as JSON to path, or to stdout when path
// is "-".
func ExportFile(path string, info RunInfo, ep *rollout.Episode) error {
	if path == "-" {
		return ExportJSON(os.Stdout, info, ep)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ExportJSON(file, info, ep); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
