package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Column names of the input schema. Header matching is case-insensitive.
var requiredColumns = []string{
	"fire_size", "fire_size_class", "stat_cause_descr",
	"latitude", "longitude", "state",
	"disc_year", "disc_month",
	"vegetation", "remoteness", "weather_file",
}

// regionOf maps a two-letter state code to one of five regions. Unknown
// states fail loudly via SchemaError.
var regionOf = map[string]string{
	"WA": "west", "OR": "west", "CA": "west", "NV": "west", "ID": "west",
	"MT": "west", "WY": "west", "UT": "west", "CO": "west", "AK": "west",
	"HI": "west",
	"AZ": "southwest", "NM": "southwest", "TX": "southwest", "OK": "southwest",
	"ND": "midwest", "SD": "midwest", "NE": "midwest", "KS": "midwest",
	"MN": "midwest", "IA": "midwest", "MO": "midwest", "WI": "midwest",
	"IL": "midwest", "IN": "midwest", "MI": "midwest", "OH": "midwest",
	"AR": "southeast", "LA": "southeast", "MS": "southeast", "AL": "southeast",
	"TN": "southeast", "KY": "southeast", "WV": "southeast", "VA": "southeast",
	"NC": "southeast", "SC": "southeast", "GA": "southeast", "FL": "southeast",
	"PR": "southeast",
	"PA": "northeast", "NY": "northeast", "NJ": "northeast", "CT": "northeast",
	"RI": "northeast", "MA": "northeast", "VT": "northeast", "NH": "northeast",
	"ME": "northeast", "MD": "northeast", "DE": "northeast", "DC": "northeast",
}

// Regions lists the five region labels records are assigned to.
func Regions() []string {
	return []string{"west", "southwest", "midwest", "southeast", "northeast"}
}

// Load reads all CSV files matching the glob pattern into a RawTable. Each
// record gets a region label from its state code and a year-offset relative
// to the earliest discovery year found across all files.
func Load(pattern string) (*RawTable, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob pattern %s: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no CSV files found matching pattern: %s", pattern)
	}

	var records []RawRecord
	for _, path := range paths {
		recs, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		records = append(records, recs...)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no records found in files matching %s", pattern)
	}

	baseYear := records[0].Year
	for _, r := range records {
		if r.Year < baseYear {
			baseYear = r.Year
		}
	}
	for i := range records {
		records[i].YearOffset = float64(records[i].Year - baseYear)
	}

	return &RawTable{Records: records, BaseYear: baseYear}, nil
}

func loadFile(path string) ([]RawRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		normalized := strings.TrimSpace(strings.ToLower(col))
		colIndex[normalized] = i
	}
	for _, col := range append(requiredColumns, WeatherNames()...) {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("required column %q not found", col)
		}
	}

	var records []RawRecord
	rowIdx := 1 // header is row 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", rowIdx, err)
		}
		rec, err := parseRow(row, colIndex, rowIdx)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		rowIdx++
	}
	return records, nil
}

func parseRow(row []string, colIndex map[string]int, rowIdx int) (RawRecord, error) {
	field := func(name string) string {
		return strings.TrimSpace(row[colIndex[name]])
	}
	num := func(name string) (float64, error) {
		v, err := strconv.ParseFloat(field(name), 64)
		if err != nil {
			return 0, fmt.Errorf("row %d: failed to parse %s: %w", rowIdx, name, err)
		}
		return v, nil
	}

	var rec RawRecord
	var err error
	if rec.Size, err = num("fire_size"); err != nil {
		return rec, err
	}
	rec.SizeClass = field("fire_size_class")
	rec.Cause = field("stat_cause_descr")
	if rec.Lat, err = num("latitude"); err != nil {
		return rec, err
	}
	if rec.Lon, err = num("longitude"); err != nil {
		return rec, err
	}
	if rec.Remoteness, err = num("remoteness"); err != nil {
		return rec, err
	}

	state := strings.ToUpper(field("state"))
	region, ok := regionOf[state]
	if !ok {
		return rec, &SchemaError{Column: "state", Value: state, Row: rowIdx}
	}
	rec.State = state
	rec.Region = region

	year, err := strconv.Atoi(field("disc_year"))
	if err != nil {
		return rec, fmt.Errorf("row %d: failed to parse disc_year: %w", rowIdx, err)
	}
	rec.Year = year
	rec.Month = strings.ToLower(field("disc_month"))

	veg, err := strconv.Atoi(field("vegetation"))
	if err != nil {
		return rec, fmt.Errorf("row %d: failed to parse vegetation: %w", rowIdx, err)
	}
	rec.VegetationCode = veg
	rec.WeatherSource = field("weather_file")

	for i, name := range WeatherNames() {
		raw := field(name)
		if raw == "" {
			rec.Weather[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return rec, fmt.Errorf("row %d: failed to parse %s: %w", rowIdx, name, err)
		}
		rec.Weather[i] = v
	}

	return rec, nil
}
