package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"

	"termwatch/internal/terminal"
)

var ErrEmptyRoster = errors.New("roster contains no terminals")

// Load reads the roster file and returns one identity per row. The file is
// header-delimited CSV and must carry "mid" and "tid" columns; column order
// and extra columns do not matter. Duplicate rows collapse to one identity.
func Load(path string) ([]terminal.Identity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyRoster
	}

	midIndex, tidIndex, err := headerIndexes(records[0])
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", path, err)
	}

	seen := make(map[terminal.Identity]struct{})
	identities := make([]terminal.Identity, 0, len(records)-1)
	for line, record := range records[1:] {
		if blankRow(record) {
			continue
		}
		identity, err := terminal.NewIdentity(record[midIndex], record[tidIndex])
		if err != nil {
			return nil, fmt.Errorf("roster %s row %d: %w", path, line+2, err)
		}
		if _, duplicate := seen[identity]; duplicate {
			continue
		}
		seen[identity] = struct{}{}
		identities = append(identities, identity)
	}
	if len(identities) == 0 {
		return nil, ErrEmptyRoster
	}
	return identities, nil
}

func headerIndexes(header []string) (int, int, error) {
	midIndex, tidIndex := -1, -1
	for index, column := range header {
		switch strings.ToLower(strings.TrimSpace(column)) {
		case "mid":
			midIndex = index
		case "tid":
			tidIndex = index
		}
	}
	if midIndex < 0 || tidIndex < 0 {
		return 0, 0, errors.New(`header must contain "mid" and "tid" columns`)
	}
	return midIndex, tidIndex, nil
}

func blankRow(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
