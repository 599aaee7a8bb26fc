// Package storage persists experiment runs: a directory per run holding
// metadata and one CSV trace gather per supersource and receiver field.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/seisfd/internal/fdtd"
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

type RunMetadata struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Nz        int       `json:"nz"`
	Nx        int       `json:"nx"`
	Dz        float64   `json:"dz"`
	Dx        float64   `json:"dx"`
	Nt        int       `json:"nt"`
	Dt        float64   `json:"dt"`
	Freq      float64   `json:"freq"`
	NSS       int       `json:"nss"`
	Fields    []string  `json:"fields"`
}

// Save writes metadata and the record gathers of every supersource.
func (s *Store) Save(name string, meta RunMetadata, e *fdtd.Expt, fields []fdtd.Field, dt float64) (string, error) {
	runID := fmt.Sprintf("%s_%d", name, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = time.Now()
	meta.NSS = e.NSS()
	for _, f := range fields {
		meta.Fields = append(meta.Fields, f.String())
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()
	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	for iss := 0; iss < e.NSS(); iss++ {
		for _, f := range fields {
			rec := e.Records(iss, f)
			if rec == nil {
				continue
			}
			path := filepath.Join(runDir, fmt.Sprintf("ss%03d_%s.csv", iss, f))
			if err := writeGather(path, rec, dt); err != nil {
				return "", err
			}
		}
	}
	return runID, nil
}

func writeGather(path string, rec [][]float64, dt float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{"time"}
	for r := range rec[0] {
		header = append(header, fmt.Sprintf("r%d", r))
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for it, row := range rec {
		out := []string{strconv.FormatFloat(float64(it)*dt, 'f', 6, 64)}
		for _, v := range row {
			out = append(out, strconv.FormatFloat(v, 'e', 8, 64))
		}
		if err := w.Write(out); err != nil {
			return err
		}
	}
	return nil
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
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadGather reads one trace gather back: a (nt x nr) matrix plus times.
func (s *Store) LoadGather(runID string, iss int, field string) ([][]float64, []float64, error) {
	path := filepath.Join(s.baseDir, runID, fmt.Sprintf("ss%03d_%s.csv", iss, field))
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return [][]float64{}, []float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	rows := make([][]float64, 0, len(records)-1)
	for i := 1; i < len(records); i++ {
		rec := records[i]
		if len(rec) < 2 {
			continue
		}
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			continue
		}
		row := make([]float64, 0, len(rec)-1)
		for j := 1; j < len(rec); j++ {
			v, err := strconv.ParseFloat(rec[j], 64)
			if err != nil {
				continue
			}
			row = append(row, v)
		}
		times = append(times, t)
		rows = append(rows, row)
	}
	return rows, times, nil
}
