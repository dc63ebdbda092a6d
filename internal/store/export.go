package store

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/galaxysim/internal/analysis"
	"github.com/san-kum/galaxysim/internal/phase"
)

// Report is the JSON form of a buffer's diagnostics.
type Report struct {
	Metadata Metadata         `json:"metadata"`
	Profile  []analysis.Shell `json:"profile"`
}

func NewReport(meta Metadata, buf *phase.Buffer, plane analysis.Plane, bins int) Report {
	meta.Requested = buf.Requested
	meta.Capacity = buf.Capacity()
	meta.Summary = analysis.Summarize(buf)
	return Report{Metadata: meta, Profile: analysis.RadialProfile(buf, plane, bins)}
}

func ExportJSON(path string, r Report) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, r)
}

func WriteJSON(w io.Writer, r Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}
