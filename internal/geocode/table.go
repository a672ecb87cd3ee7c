package geocode

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kjstillabower/attire-decider/internal/models"
)

//go:embed zipcodes.csv
var builtinZips []byte

// StaticTable is an in-process zip table. It is read-only after construction.
type StaticTable struct {
	byZip map[string]models.Location
}

// NewBuiltinTable returns the table embedded in the binary.
func NewBuiltinTable() (*StaticTable, error) {
	return ParseTable(bytes.NewReader(builtinZips))
}

// ParseTable reads CSV rows of zip,town,state,lat,lon. A header row is skipped.
func ParseTable(r io.Reader) (*StaticTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 5
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read zip table: %w", err)
	}
	t := &StaticTable{byZip: make(map[string]models.Location, len(records))}
	for i, rec := range records {
		if i == 0 && strings.EqualFold(rec[0], "zip") {
			continue
		}
		lat, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("zip table line %d: latitude: %w", i+1, err)
		}
		lon, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return nil, fmt.Errorf("zip table line %d: longitude: %w", i+1, err)
		}
		t.byZip[rec[0]] = models.Location{
			Zip:       rec[0],
			Town:      rec[1],
			State:     rec[2],
			Latitude:  lat,
			Longitude: lon,
		}
	}
	return t, nil
}

// Locate implements Locator.
func (t *StaticTable) Locate(ctx context.Context, zip string) (models.Location, error) {
	loc, ok := t.byZip[zip]
	if !ok {
		return models.Location{}, ErrUnknownZip
	}
	return loc, nil
}

// Len returns the number of zips in the table.
func (t *StaticTable) Len() int {
	return len(t.byZip)
}
