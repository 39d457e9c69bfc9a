package osm

import (
	"encoding/json"
	"fmt"

	"github.com/dpup/pctdiff/internal/lib/geo"
)

// Response is the JSON envelope of the OSM API
type Response struct {
	Version  string    `json:"version"`
	Elements []Element `json:"elements"`
}

// Element is a node, way or relation. Fields that do not apply to a type are left empty.
type Element struct {
	Type    string   `json:"type"`
	ID      int64    `json:"id"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
	Nodes   []int64  `json:"nodes,omitempty"`
	Members []Member `json:"members,omitempty"`
}

// Member is one entry of a relation
type Member struct {
	Type string `json:"type"`
	Ref  int64  `json:"ref"`
	Role string `json:"role"`
}

// ParseSubRelations returns the ids of relation members of every relation in a /relation/{id}.json body
func ParseSubRelations(body []byte) ([]int64, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode relation: %w", err)
	}

	var ids []int64
	for _, e := range resp.Elements {
		if e.Type != "relation" {
			continue
		}
		for _, m := range e.Members {
			if m.Type == "relation" {
				ids = append(ids, m.Ref)
			}
		}
	}
	return ids, nil
}

// ParseFullResponse turns a /relation/{id}/full.json body into one polyline per way.
// Node references that do not resolve are dropped, as are ways left with fewer than 2 points.
func ParseFullResponse(body []byte) ([]geo.Polyline, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode relation: %w", err)
	}

	nodes := make(map[int64]geo.Point)
	for _, e := range resp.Elements {
		if e.Type == "node" && e.Lat != nil && e.Lon != nil {
			nodes[e.ID] = geo.Point{Longitude: *e.Lon, Latitude: *e.Lat}
		}
	}

	var lines []geo.Polyline
	for _, e := range resp.Elements {
		if e.Type != "way" || len(e.Nodes) == 0 {
			continue
		}

		line := make(geo.Polyline, 0, len(e.Nodes))
		for _, ref := range e.Nodes {
			if p, ok := nodes[ref]; ok {
				line = append(line, p)
			}
		}
		if len(line) >= 2 {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
