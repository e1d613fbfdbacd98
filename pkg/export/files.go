package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kilianp07/mesplan/core/results"
	"github.com/kilianp07/mesplan/core/sweep"
)

// WriteFile creates dir/name and hands it to write.
func WriteFile(dir, name string, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := write(f); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}

type fileJob struct {
	suffix string
	write  func(io.Writer) error
}

// ScenarioFiles writes <scenario>_summary.json and, when profiles are given,
// the energy balance, storage SOC and grid import tables. It returns the
// written paths.
func ScenarioFiles(dir string, sum results.Summary, ps []results.HourProfile) ([]string, error) {
	jobs := []fileJob{
		{"_summary.json", func(w io.Writer) error { return WriteJSON(w, sum) }},
	}
	if len(ps) > 0 {
		jobs = append(jobs,
			fileJob{"_energy_balance.csv", func(w io.Writer) error { return WriteEnergyBalanceCSV(w, ps) }},
			fileJob{"_storage_soc.csv", func(w io.Writer) error { return WriteSOCCSV(w, ps) }},
			fileJob{"_grid_import.csv", func(w io.Writer) error { return WriteGridImportCSV(w, ps) }},
		)
	}
	var paths []string
	for _, j := range jobs {
		p, err := WriteFile(dir, sum.Scenario+j.suffix, j.write)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// SweepFile writes the sweep table to dir/<name>_sweep_results.csv.
func SweepFile(dir, name string, rows []sweep.Row) (string, error) {
	return WriteFile(dir, name+"_sweep_results.csv", func(w io.Writer) error {
		return WriteSweepCSV(w, rows)
	})
}
