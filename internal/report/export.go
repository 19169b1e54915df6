package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	massbalance "github.com/jamesainslie/go-massbalance"
)

// Meta describes the run that produced a result.
type Meta struct {
	RunID    uuid.UUID
	Dataset  string
	Model    string
	Step     float64
	Started  time.Time
	Finished time.Time
}

// Document converts a result into a protobuf Struct.
func Document(meta Meta, res *massbalance.Result) (*structpb.Struct, error) {
	coefs := make([]any, len(res.Coefficients))
	for i, c := range res.Coefficients {
		coefs[i] = map[string]any{"name": c.Name, "value": c.Value}
	}

	samples := make([]any, len(res.Samples))
	for i, s := range res.Samples {
		samples[i] = map[string]any{
			"line":       s.Line,
			"map_id":     s.Input.MapID,
			"name":       s.Name,
			"mods":       s.Input.Mods,
			"target":     s.Target,
			"computed":   s.Computed,
			"difference": s.Difference(),
		}
	}

	summary := map[string]any{
		"deviation":       res.Summary.Deviation,
		"mean_difference": res.Summary.MeanDifference,
	}
	if res.Summary.RatiosDefined {
		summary["mean_ratio"] = res.Summary.MeanRatio
		summary["ratio_deviation"] = res.Summary.RatioDeviation
	}

	doc, err := structpb.NewStruct(map[string]any{
		"run_id":              meta.RunID.String(),
		"dataset":             meta.Dataset,
		"model":               meta.Model,
		"step_multiplier":     meta.Step,
		"started":             meta.Started.UTC().Format(time.RFC3339),
		"finished":            meta.Finished.UTC().Format(time.RFC3339),
		"epochs":              res.Epochs,
		"reference_deviation": res.Deviation,
		"global_scale":        res.Scale,
		"coefficients":        coefs,
		"summary":             summary,
		"samples":             samples,
	})
	if err != nil {
		return nil, fmt.Errorf("building report document: %w", err)
	}
	return doc, nil
}

// WriteJSON writes the result as indented JSON.
func WriteJSON(w io.Writer, meta Meta, res *massbalance.Result) error {
	doc, err := Document(meta, res)
	if err != nil {
		return err
	}
	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// WriteJSONFile writes the result to path, replacing any existing file.
func WriteJSONFile(path string, meta Meta, res *massbalance.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := WriteJSON(f, meta, res); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
