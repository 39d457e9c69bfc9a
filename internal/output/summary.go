package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dpup/pctdiff/internal/lib/divergence"
)

// Output formats accepted by WriteFile
const (
	FormatGeoJSON = "geojson"
	FormatKML     = "kml"
)

// ErrUnknownFormat is returned by WriteFile for formats it cannot produce
var ErrUnknownFormat = errors.New("unknown output format")

// SummaryLine formats one divergence for the console
func SummaryLine(d divergence.Divergence) string {
	return fmt.Sprintf("  %s - %.0fm long, max %.0fm, mean %.0fm off",
		d.SectionName, d.Length, d.MaxDistance, d.MeanDistance)
}

// WriteSummary writes one SummaryLine per divergence
func WriteSummary(w io.Writer, divs []divergence.Divergence) error {
	for _, d := range divs {
		if _, err := fmt.Fprintln(w, SummaryLine(d)); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes divs to path in the given format, replacing any existing file
func WriteFile(path, format string, divs []divergence.Divergence) error {
	var write func(io.Writer) error
	switch format {
	case "", FormatGeoJSON:
		write = func(w io.Writer) error { return WriteGeoJSON(w, divs) }
	case FormatKML:
		name := filepath.Base(path)
		write = func(w io.Writer) error { return WriteKML(w, name, divs) }
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
