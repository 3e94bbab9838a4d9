package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// UnknownSector groups holdings whose symbol has no sector entry.
const UnknownSector = "UNKNOWN"

// SectorLookup resolves a symbol to its sector.
type SectorLookup interface {
	SectorOf(symbol string) (string, bool)
}

// SectorMap is a static symbol → sector table.
type SectorMap map[string]string

func (m SectorMap) SectorOf(symbol string) (string, bool) {
	s, ok := m[normalizeSymbol(symbol)]
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// LoadSectorMap reads a CSV with a header row containing "symbol" and
// "sector" columns. A missing file yields an empty map.
func LoadSectorMap(path string) (SectorMap, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return SectorMap{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSectorMap(f)
}

// ReadSectorMap parses sector CSV rows from r.
func ReadSectorMap(r io.Reader) (SectorMap, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return SectorMap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sector map header: %w", err)
	}

	symCol, secCol := -1, -1
	for i, h := range header {
		// Excel writes a UTF-8 BOM in front of the first header cell.
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "symbol":
			symCol = i
		case "sector":
			secCol = i
		}
	}
	if symCol < 0 || secCol < 0 {
		return nil, fmt.Errorf("sector map: header must contain symbol and sector columns")
	}

	out := SectorMap{}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sector map: %w", err)
		}
		if len(row) <= symCol || len(row) <= secCol {
			continue
		}
		sym := normalizeSymbol(row[symCol])
		if sym == "" {
			continue
		}
		sec := strings.TrimSpace(row[secCol])
		if sec == "" {
			sec = UnknownSector
		}
		out[sym] = sec
	}
	return out, nil
}

// normalizeSymbol restores zero padding on numeric exchange codes that a
// spreadsheet round trip stripped (5930 → 005930).
func normalizeSymbol(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || len(s) >= 6 {
		return s
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	return strings.Repeat("0", 6-len(s)) + s
}
