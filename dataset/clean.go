package dataset

import (
	"math"
	"strconv"
)

// vegetationOf maps the numeric vegetation codes present in the dataset to
// their six categorical labels. Any other code is a SchemaError.
var vegetationOf = map[int]string{
	4:  "forest",
	9:  "savanna",
	12: "shrubland",
	14: "grassland",
	15: "cropland",
	16: "urban",
}

// seasonOf maps a lowercase three-letter discovery month to its season.
var seasonOf = map[string]string{
	"dec": "winter", "jan": "winter", "feb": "winter",
	"mar": "spring", "apr": "spring", "may": "spring",
	"jun": "summer", "jul": "summer", "aug": "summer",
	"sep": "fall", "oct": "fall", "nov": "fall",
}

// Seasons lists the four season labels records are assigned to.
func Seasons() []string {
	return []string{"winter", "spring", "summer", "fall"}
}

// VegetationClasses lists the six vegetation labels in a fixed order.
func VegetationClasses() []string {
	return []string{"forest", "savanna", "shrubland", "grassland", "cropland", "urban"}
}

// Clean converts loaded records into analysis-ready records. It does not
// mutate the input.
//
// Records with an absent weather-source indicator are excluded entirely: the
// weather station join for these rows never happened, so their weather
// readings are meaningless. For the remaining rows, zero temperature,
// humidity and wind readings are sentinels for "no measurement" and become
// NaN. Precipitation legitimately reads zero on dry days, so it is only
// marked missing when temperature, humidity and wind are all missing at the
// same lead time; in that case its raw value is discarded even if nonzero.
// A precipitation field that was already absent in the raw file stays
// missing regardless of its companions.
func Clean(raw *RawTable) (*Table, error) {
	cleaned := make([]Record, 0, len(raw.Records))
	for i, rr := range raw.Records {
		if rr.WeatherSource == "" {
			continue
		}

		veg, ok := vegetationOf[rr.VegetationCode]
		if !ok {
			return nil, &SchemaError{Column: "vegetation", Value: strconv.Itoa(rr.VegetationCode), Row: i}
		}
		season, ok := seasonOf[rr.Month]
		if !ok {
			return nil, &SchemaError{Column: "disc_month", Value: rr.Month, Row: i}
		}

		rec := Record{
			Size:       rr.Size,
			SizeClass:  rr.SizeClass,
			Cause:      rr.Cause,
			Vegetation: veg,
			Region:     rr.Region,
			Season:     season,
			YearOffset: rr.YearOffset,
			Lat:        rr.Lat,
			Lon:        rr.Lon,
			Remoteness: rr.Remoteness,
			Weather:    rr.Weather,
		}
		markMissingWeather(&rec)
		cleaned = append(cleaned, rec)
	}
	return &Table{Records: cleaned, BaseYear: raw.BaseYear}, nil
}

// markMissingWeather replaces sentinel zeros with NaN and enforces the
// co-missingness rule on precipitation.
func markMissingWeather(rec *Record) {
	for _, v := range []int{VarTemp, VarHum, VarWind} {
		for lead := 0; lead < NumLeads; lead++ {
			idx := WeatherIndex(v, lead)
			if rec.Weather[idx] == 0 {
				rec.Weather[idx] = math.NaN()
			}
		}
	}
	for lead := 0; lead < NumLeads; lead++ {
		if rec.missingAt(VarTemp, lead) && rec.missingAt(VarHum, lead) && rec.missingAt(VarWind, lead) {
			rec.Weather[WeatherIndex(VarPrec, lead)] = math.NaN()
		}
	}
}
