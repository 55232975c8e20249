// Package export writes ingested measurements to CSV files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Sternrassler/measurement-ingest/pkg/measurement"
)

// Header is the CSV column order.
var Header = []string{"id", "device_id", "timestamp", "temperature", "humidity", "pressure", "battery_level"}

// EmptyMessage is the only row written when there are no measurements.
const EmptyMessage = "No measurements available"

// WriteCSV writes ms to w with a header row. An empty ms yields a single
// EmptyMessage row instead.
func WriteCSV(w io.Writer, ms []measurement.Measurement) error {
	cw := csv.NewWriter(w)

	if len(ms) == 0 {
		if err := cw.Write([]string{EmptyMessage}); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		cw.Flush()
		return cw.Error()
	}

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, m := range ms {
		if err := cw.Write(record(m)); err != nil {
			return fmt.Errorf("write csv row %s: %w", m.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes ms to <dir>/<prefix>_YYYYMMDD_HHMMSS.csv and returns the path.
func SaveCSV(dir, prefix string, ms []measurement.Measurement) (string, error) {
	return saveCSV(dir, prefix, ms, time.Now())
}

func saveCSV(dir, prefix string, ms []measurement.Measurement, now time.Time) (path string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path = filepath.Join(dir, fmt.Sprintf("%s_%s.csv", prefix, now.Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close csv file: %w", cerr)
		}
	}()

	if err := WriteCSV(f, ms); err != nil {
		return "", err
	}
	return path, nil
}

func record(m measurement.Measurement) []string {
	return []string{
		m.ID,
		m.DeviceID,
		m.Timestamp.UTC().Format(time.RFC3339),
		formatFloat(m.Temperature),
		formatFloat(m.Humidity),
		formatFloat(m.Pressure),
		formatFloat(m.BatteryLevel),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
