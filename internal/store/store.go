// Package store persists snapshots of a simulation epoch for offline
// inspection: a metadata.json describing the run and a particles.csv with
// one row per buffer slot.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/san-kum/galaxysim/internal/analysis"
	"github.com/san-kum/galaxysim/internal/config"
	"github.com/san-kum/galaxysim/internal/phase"
)

var ErrCorrupt = errors.New("store: snapshot does not match its metadata")

const (
	metadataFile  = "metadata.json"
	particlesFile = "particles.csv"
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

type Metadata struct {
	ID         string           `json:"id"`
	Timestamp  time.Time        `json:"timestamp"`
	Seed       int64            `json:"seed"`
	Generation int              `json:"generation"`
	Frames     uint64           `json:"frames"`
	Kernel     string           `json:"kernel,omitempty"`
	Requested  int              `json:"requested"`
	Capacity   int              `json:"capacity"`
	Params     config.Params    `json:"params"`
	Summary    analysis.Summary `json:"summary"`
}

// Particle is one row of particles.csv.
type Particle struct {
	Index    int     `csv:"index"`
	X        float32 `csv:"x"`
	Y        float32 `csv:"y"`
	Z        float32 `csv:"z"`
	VX       float32 `csv:"vx"`
	VY       float32 `csv:"vy"`
	VZ       float32 `csv:"vz"`
	Obscured bool    `csv:"obscured"`
}

// Save writes a snapshot of buf. ID, timestamp, counts and summary are filled
// in from the buffer; the rest of meta is stored as given.
func (s *Store) Save(meta Metadata, buf *phase.Buffer) (string, error) {
	now := time.Now()
	meta.ID = fmt.Sprintf("%s_%s_%d", meta.Params.Tier, meta.Params.Kind, now.UnixNano())
	meta.Timestamp = now
	meta.Requested = buf.Requested
	meta.Capacity = buf.Capacity()
	meta.Summary = analysis.Summarize(buf)

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, particlesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := gocsv.Marshal(Particles(buf), csvFile); err != nil {
		return "", fmt.Errorf("store: write particles: %w", err)
	}
	return meta.ID, nil
}

// Particles flattens buf into one record per slot.
func Particles(buf *phase.Buffer) []*Particle {
	out := make([]*Particle, buf.Capacity())
	for i := range out {
		x, y, z := buf.Position(i)
		vx, vy, vz := buf.Velocity(i)
		out[i] = &Particle{
			Index:    i,
			X:        x,
			Y:        y,
			Z:        z,
			VX:       vx,
			VY:       vy,
			VZ:       vz,
			Obscured: buf.Obscured(i),
		}
	}
	return out
}

// List returns every readable snapshot, oldest first.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Metadata{}, nil
		}
		return nil, err
	}

	runs := make([]Metadata, 0)
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

func (s *Store) Load(runID string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadParticles(runID string) ([]*Particle, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, particlesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var particles []*Particle
	if err := gocsv.UnmarshalFile(file, &particles); err != nil {
		return nil, fmt.Errorf("store: read particles: %w", err)
	}
	return particles, nil
}

// Restore rebuilds the phase buffer a snapshot was taken from.
func (s *Store) Restore(runID string) (*Metadata, *phase.Buffer, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	particles, err := s.LoadParticles(runID)
	if err != nil {
		return nil, nil, err
	}

	buf, err := phase.New(meta.Requested)
	if err != nil {
		return nil, nil, err
	}
	if len(particles) != buf.Capacity() {
		return nil, nil, fmt.Errorf("%w: %d rows, capacity %d", ErrCorrupt, len(particles), buf.Capacity())
	}
	for _, p := range particles {
		if p.Index < 0 || p.Index >= buf.Capacity() {
			return nil, nil, fmt.Errorf("%w: slot %d out of range", ErrCorrupt, p.Index)
		}
		buf.SetSlot(p.Index, [3]float32{p.X, p.Y, p.Z}, [3]float32{p.VX, p.VY, p.VZ})
	}
	return meta, buf, nil
}
