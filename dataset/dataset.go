package dataset

import (
	"math"
	"sort"
)

// This package loads the wildfire CSV data and prepares it for the analysis
// pipeline. Loading and cleaning are split into two steps:
//
// Load
//   - Reads CSV rows matching a glob pattern into RawRecords.
//   - Assigns a categorical region label from the state code.
//   - Derives a year-offset feature from the discovery year (offset from the
//     earliest year observed across all files).
//
// Clean
//   - Restricts records to the analysis column set.
//   - Maps numeric vegetation codes to one of six categorical labels;
//     unmapped codes fail with a SchemaError rather than being kept numeric.
//   - Drops records whose weather-source indicator is absent.
//   - Replaces sentinel zero readings in temperature/humidity/wind with NaN
//     and forces precipitation to share the missingness of the other three
//     variables at the same lead time (co-missingness rule).
//   - Derives a season category from the discovery month and drops the raw
//     date columns.
//
// Missing weather values are represented as math.NaN() throughout.

// Weather variables measured for each fire.
const (
	VarTemp = iota
	VarHum
	VarWind
	VarPrec
	NumVars
)

// Lead times at which each weather variable is measured: 30, 15 and 7 days
// before discovery, and at containment.
const (
	LeadPre30 = iota
	LeadPre15
	LeadPre7
	LeadCont
	NumLeads
)

// WeatherDim is the number of weather covariates per record.
const WeatherDim = NumVars * NumLeads

// WeatherIndex maps a (variable, lead time) pair to its position in the
// weather block.
func WeatherIndex(variable, lead int) int {
	return variable*NumLeads + lead
}

// WeatherNames returns the column names of the weather block in block order.
func WeatherNames() []string {
	vars := []string{"temp", "hum", "wind", "prec"}
	leads := []string{"pre_30", "pre_15", "pre_7", "cont"}
	names := make([]string, 0, WeatherDim)
	for _, v := range vars {
		for _, l := range leads {
			names = append(names, v+"_"+l)
		}
	}
	return names
}

// RawRecord is one wildfire observation as loaded, before cleaning. Weather
// values hold the raw CSV readings, including sentinel zeros.
type RawRecord struct {
	Size           float64
	SizeClass      string
	Cause          string
	VegetationCode int
	State          string
	Region         string
	Year           int
	YearOffset     float64
	Month          string
	Lat, Lon       float64
	Remoteness     float64
	WeatherSource  string
	Weather        [WeatherDim]float64
}

// Record is one cleaned wildfire observation. Fire size (acres) is the
// regression target. Every cleaned record belongs to exactly one region and
// exactly one season.
type Record struct {
	Size       float64
	SizeClass  string
	Cause      string
	Vegetation string
	Region     string
	Season     string
	YearOffset float64
	Lat, Lon   float64
	Remoteness float64
	Weather    [WeatherDim]float64
}

// RawTable holds loaded records plus the base year used for the year-offset
// derivation.
type RawTable struct {
	Records  []RawRecord
	BaseYear int
}

// Table holds cleaned records ready for splitting and modeling.
type Table struct {
	Records  []Record
	BaseYear int
}

// Len returns the number of records in the table.
func (t *Table) Len() int { return len(t.Records) }

// Sizes returns the fire-size target for the given rows. With nil rows it
// returns the target for every record.
func (t *Table) Sizes(rows []int) []float64 {
	if rows == nil {
		rows = allRows(t.Len())
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = t.Records[r].Size
	}
	return out
}

// WeatherBlock returns the weather covariates for the given rows as a dense
// row-major matrix of shape len(rows) x WeatherDim. Missing cells are NaN.
func (t *Table) WeatherBlock(rows []int) [][]float64 {
	if rows == nil {
		rows = allRows(t.Len())
	}
	out := make([][]float64, len(rows))
	for i, r := range rows {
		row := make([]float64, WeatherDim)
		copy(row, t.Records[r].Weather[:])
		out[i] = row
	}
	return out
}

// Causes returns the sorted set of fire-cause labels present in the table.
// The cause vocabulary is part of the schema shared by every partition, so
// it is derived from the whole table.
func (t *Table) Causes() []string {
	seen := make(map[string]bool)
	for _, r := range t.Records {
		seen[r.Cause] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

// missingAt reports whether the record's weather value for (variable, lead)
// is a missing-value marker.
func (r *Record) missingAt(variable, lead int) bool {
	return math.IsNaN(r.Weather[WeatherIndex(variable, lead)])
}
