package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/salescast/internal/contracts"
)

// Artifact file names
const (
	CSVFile  = "sales_forecast.csv"
	JSONFile = "sales_forecast.json"
)

// header is the tabular column order
var header = []string{"date", "predicted_sales", "lower_bound", "upper_bound"}

// Record is the exported shape of one forecast week
type Record struct {
	Date           string  `json:"date"`
	PredictedSales float64 `json:"predicted_sales"`
	LowerBound     float64 `json:"lower_bound"`
	UpperBound     float64 `json:"upper_bound"`
}

// Artifacts are the paths written by one export
type Artifacts struct {
	CSVPath  string `json:"csv_path"`
	JSONPath string `json:"json_path"`
	PlotPath string `json:"plot_path"`
}

// Records converts forecast points into export records
func Records(points []contracts.ForecastPoint) []Record {
	out := make([]Record, len(points))
	for i, p := range points {
		out[i] = Record{
			Date:           p.Date.Format(contracts.DateLayout),
			PredictedSales: p.PredictedValue,
			LowerBound:     p.LowerBound,
			UpperBound:     p.UpperBound,
		}
	}
	return out
}

// Points converts export records back into forecast points
func Points(records []Record) ([]contracts.ForecastPoint, error) {
	out := make([]contracts.ForecastPoint, len(records))
	for i, r := range records {
		d, err := time.Parse(contracts.DateLayout, r.Date)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out[i] = contracts.ForecastPoint{
			Date:           d,
			PredictedValue: r.PredictedSales,
			LowerBound:     r.LowerBound,
			UpperBound:     r.UpperBound,
		}
	}
	return out, nil
}

// Exporter writes forecast artifacts into a directory
type Exporter struct {
	dir string
	log zerolog.Logger
}

// NewExporter creates an exporter writing into dir
func NewExporter(dir string, log zerolog.Logger) *Exporter {
	return &Exporter{
		dir: dir,
		log: log.With().Str("component", "export").Logger(),
	}
}

// Export writes the CSV, JSON and PNG artifacts as one unit: every file is
// staged under a temporary name first, then all are swapped into place. If
// any step fails, the previous artifacts are left as they were.
// history only feeds the chart and may be nil.
func (e *Exporter) Export(history *contracts.Series, points []contracts.ForecastPoint) (*Artifacts, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	records := Records(points)
	art := &Artifacts{
		CSVPath:  filepath.Join(e.dir, CSVFile),
		JSONPath: filepath.Join(e.dir, JSONFile),
		PlotPath: filepath.Join(e.dir, PlotFile),
	}

	files := []struct {
		kind  string
		path  string
		write func(io.Writer) error
	}{
		{"csv", art.CSVPath, func(w io.Writer) error { return WriteCSV(w, records) }},
		{"json", art.JSONPath, func(w io.Writer) error { return WriteJSON(w, records) }},
		{"plot", art.PlotPath, func(w io.Writer) error { return WritePlot(w, history, points) }},
	}

	staged := make([]stagedFile, 0, len(files))
	defer func() {
		for _, f := range staged {
			_ = os.Remove(f.tmp)
		}
	}()
	for _, f := range files {
		sf, err := stage(f.path, f.write)
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", f.kind, err)
		}
		staged = append(staged, sf)
	}

	if err := commit(staged); err != nil {
		return nil, fmt.Errorf("commit artifacts: %w", err)
	}

	e.log.Info().
		Int("rows", len(records)).
		Str("csv", art.CSVPath).
		Str("json", art.JSONPath).
		Str("plot", art.PlotPath).
		Msg("forecast exported")
	return art, nil
}

// WriteCSV writes a header and one row per record. Floats use the shortest
// representation that parses back to the same value.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Date,
			formatFloat(r.PredictedSales),
			formatFloat(r.LowerBound),
			formatFloat(r.UpperBound),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file written by WriteCSV
func ReadCSV(r io.Reader) ([]Record, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty csv", contracts.ErrSchema)
	}
	if len(rows[0]) != len(header) {
		return nil, fmt.Errorf("%w: csv header has %d columns, want %d", contracts.ErrSchema, len(rows[0]), len(header))
	}
	for i, h := range header {
		if rows[0][i] != h {
			return nil, fmt.Errorf("%w: csv column %d is %q, want %q", contracts.ErrSchema, i, rows[0][i], h)
		}
	}

	out := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec := Record{Date: row[0]}
		vals := []*float64{&rec.PredictedSales, &rec.LowerBound, &rec.UpperBound}
		for j, dst := range vals {
			v, err := strconv.ParseFloat(row[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %s: %v", contracts.ErrSchema, i+1, header[j+1], err)
			}
			*dst = v
		}
		out = append(out, rec)
	}
	return out, nil
}

// WriteJSON writes the records as an indented JSON array
func WriteJSON(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// ReadJSON parses a file written by WriteJSON
func ReadJSON(r io.Reader) ([]Record, error) {
	var out []Record
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrSchema, err)
	}
	return out, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// rename is swapped in tests to fail a chosen commit step
var rename = os.Rename

// stagedFile is a fully written temporary file waiting to replace path
type stagedFile struct {
	tmp    string
	path   string
	backup string // previous artifact moved aside during commit
}

func stage(path string, write func(io.Writer) error) (stagedFile, error) {
	if info, err := os.Lstat(path); err == nil && !info.Mode().IsRegular() {
		return stagedFile{}, fmt.Errorf("%s exists and is not a regular file", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return stagedFile{}, err
	}
	sf := stagedFile{tmp: tmp.Name(), path: path}

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(sf.tmp)
		return stagedFile{}, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(sf.tmp)
		return stagedFile{}, err
	}
	return sf, nil
}

// commit moves every staged file into place. Existing artifacts are moved
// aside first and restored if a later step fails.
func commit(files []stagedFile) error {
	for i := range files {
		f := &files[i]
		if _, err := os.Lstat(f.path); err == nil {
			f.backup = f.tmp + ".prev"
			if err := rename(f.path, f.backup); err != nil {
				f.backup = ""
				rollback(files[:i])
				return err
			}
		}
		if err := rename(f.tmp, f.path); err != nil {
			if f.backup != "" {
				_ = os.Rename(f.backup, f.path)
			}
			rollback(files[:i])
			return err
		}
	}

	for _, f := range files {
		if f.backup != "" {
			_ = os.Remove(f.backup)
		}
	}
	return nil
}

// rollback undoes committed files, newest first
func rollback(files []stagedFile) {
	for i := len(files) - 1; i >= 0; i-- {
		f := files[i]
		if f.backup != "" {
			_ = os.Rename(f.backup, f.path)
		} else {
			_ = os.Remove(f.path)
		}
	}
}
