package reference

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dpup/pctdiff/internal/lib/divergence"
	"github.com/dpup/pctdiff/internal/lib/geo"
)

// ParseEncoded reads one encoded polyline per line, optionally prefixed by "name<TAB>".
// Consecutive lines with the same name are merged into one section. Blank lines and lines starting
// with # are ignored.
func ParseEncoded(r io.Reader) ([]divergence.Section, error) {
	var sections []divergence.Section

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		name := UnknownSection
		encoded := text
		if i := strings.LastIndexByte(text, '\t'); i >= 0 {
			if n := strings.TrimSpace(text[:i]); n != "" {
				name = n
			}
			encoded = strings.TrimSpace(text[i+1:])
		}

		line, err := geo.DecodePolyline(encoded)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if len(line) < 2 {
			continue
		}

		if n := len(sections); n > 0 && sections[n-1].Name == name {
			sections[n-1].Geometry = append(sections[n-1].Geometry, line)
			continue
		}
		sections = append(sections, divergence.Section{Name: name, Geometry: []geo.Polyline{line}})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read polylines: %w", err)
	}

	return sections, nil
}
