package render

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/number"
)

var metadataKeys = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"version":    true,
}

var durationKeys = map[string]bool{
	"total_in_bed_time_milli":          true,
	"total_awake_time_milli":           true,
	"total_no_data_time_milli":         true,
	"total_light_sleep_time_milli":     true,
	"total_slow_wave_sleep_time_milli": true,
	"total_rem_sleep_time_milli":       true,
	"baseline_milli":                   true,
	"need_from_sleep_debt_milli":       true,
	"need_from_recent_strain_milli":    true,
	"need_from_recent_nap_milli":       true,
}

var percentageKeys = map[string]bool{
	"recovery_score":               true,
	"spo2_percentage":              true,
	"sleep_performance_percentage": true,
	"sleep_consistency_percentage": true,
	"sleep_efficiency_percentage":  true,
}

var heartRateKeys = map[string]bool{
	"resting_heart_rate": true,
	"average_heart_rate": true,
	"max_heart_rate":     true,
}

var pathLabels = map[string]string{
	"profile":            "Profile",
	"profile.first_name": "First Name",
	"profile.last_name":  "Last Name",
	"profile.email":      "Email",

	"cycle":                          "Cycle",
	"cycle.start":                    "Cycle Start",
	"cycle.end":                      "Cycle End",
	"cycle.timezone_offset":          "Time Zone",
	"cycle.score_state":              "Score Status",
	"cycle.score":                    "Cycle Score",
	"cycle.score.strain":             "Day Strain",
	"cycle.score.kilojoule":          "Energy Expenditure",
	"cycle.score.average_heart_rate": "Average Heart Rate",
	"cycle.score.max_heart_rate":     "Maximum Heart Rate",

	"recovery":                          "Recovery",
	"recovery.score_state":              "Score Status",
	"recovery.score":                    "Recovery Metrics",
	"recovery.score.user_calibrating":   "User Calibrating",
	"recovery.score.recovery_score":     "Recovery Score",
	"recovery.score.resting_heart_rate": "Resting Heart Rate",
	"recovery.score.hrv_rmssd_milli":    "HRV (RMSSD)",
	"recovery.score.spo2_percentage":    "Blood Oxygen (SpO2)",
	"recovery.score.skin_temp_celsius":  "Skin Temperature",

	"sleep":                             "Sleep",
	"sleep.start":                       "Sleep Start",
	"sleep.end":                         "Sleep End",
	"sleep.timezone_offset":             "Time Zone",
	"sleep.nap":                         "Nap",
	"sleep.score_state":                 "Score Status",
	"sleep.score":                       "Sleep Metrics",
	"sleep.score.stage_summary":         "Sleep Stages",
	"sleep.score.stage_summary.total_in_bed_time_milli":          "Time In Bed",
	"sleep.score.stage_summary.total_awake_time_milli":           "Awake Time",
	"sleep.score.stage_summary.total_no_data_time_milli":         "No Data Time",
	"sleep.score.stage_summary.total_light_sleep_time_milli":     "Light Sleep",
	"sleep.score.stage_summary.total_slow_wave_sleep_time_milli": "Slow Wave Sleep",
	"sleep.score.stage_summary.total_rem_sleep_time_milli":       "REM Sleep",
	"sleep.score.stage_summary.sleep_cycle_count":                "Sleep Cycles",
	"sleep.score.stage_summary.disturbance_count":                "Disturbances",
	"sleep.score.sleep_needed":                                   "Sleep Need",
	"sleep.score.sleep_needed.baseline_milli":                    "Baseline Sleep Need",
	"sleep.score.sleep_needed.need_from_sleep_debt_milli":        "Added Need From Sleep Debt",
	"sleep.score.sleep_needed.need_from_recent_strain_milli":     "Added Need From Recent Strain",
	"sleep.score.sleep_needed.need_from_recent_nap_milli":        "Need Reduction From Recent Nap",
	"sleep.score.respiratory_rate":                               "Respiratory Rate",
	"sleep.score.sleep_performance_percentage":                   "Sleep Performance",
	"sleep.score.sleep_consistency_percentage":                   "Sleep Consistency",
	"sleep.score.sleep_efficiency_percentage":                    "Sleep Efficiency",

	"bodyMeasurement":                "Body Measurement",
	"bodyMeasurement.max_heart_rate": "Maximum Heart Rate",
}

// keyPriority puts identifying fields first; everything else follows alphabetically.
var keyPriority = map[string]int{
	"first_name":      1,
	"last_name":       2,
	"email":           3,
	"start":           4,
	"end":             5,
	"timezone_offset": 6,
	"nap":             7,
	"score_state":     8,
	"score":           9,
}

var (
	numericKey = regexp.MustCompile(`^\d+$`)
	wordStart  = regexp.MustCompile(`\b\w`)
	acronyms   = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`(?i)\bspo2\b`), "SpO2"},
		{regexp.MustCompile(`(?i)\bhrv\b`), "HRV"},
		{regexp.MustCompile(`(?i)\brmssd\b`), "RMSSD"},
		{regexp.MustCompile(`(?i)\brem\b`), "REM"},
		{regexp.MustCompile(`(?i)\bmilli\b`), "ms"},
		{regexp.MustCompile(`(?i)\btimezone\b`), "Time Zone"},
	}
)

// filterMetadata drops identifiers and bookkeeping keys at every depth. Objects
// left empty disappear; the result is nil when nothing remains.
func filterMetadata(value any) any {
	switch v := value.(type) {
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			if f := filterMetadata(item); f != nil || item == nil {
				out = append(out, f)
			}
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, nested := range v {
			if metadataKeys[key] || strings.HasSuffix(key, "_id") {
				continue
			}
			if f := filterMetadata(nested); f != nil || nested == nil {
				out[key] = f
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return value
	}
}

func orderedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := keyPriority[keys[i]], keyPriority[keys[j]]
		if pi == 0 {
			pi = math.MaxInt
		}
		if pj == 0 {
			pj = math.MaxInt
		}
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func label(path []string) string {
	if mapped, ok := pathLabels[strings.Join(path, ".")]; ok {
		return mapped
	}

	key := path[len(path)-1]
	if numericKey.MatchString(key) {
		n, _ := strconv.Atoi(key)
		return "Item " + strconv.Itoa(n+1)
	}
	return titleCase(key)
}

func titleCase(key string) string {
	s := strings.ReplaceAll(key, "_", " ")
	for _, a := range acronyms {
		s = a.re.ReplaceAllString(s, a.repl)
	}
	return wordStart.ReplaceAllStringFunc(s, strings.ToUpper)
}

func (r *Renderer) scalar(path []string, value any) string {
	key := path[len(path)-1]

	switch v := value.(type) {
	case nil:
		if strings.Join(path, ".") == "cycle.end" {
			return "In progress"
		}
		return "Not available"
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	case string:
		return r.text(key, v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return v.String()
		}
		return r.number(key, f)
	case float64:
		return r.number(key, v)
	case int:
		return r.number(key, float64(v))
	case int64:
		return r.number(key, float64(v))
	default:
		return ""
	}
}

func (r *Renderer) text(key, v string) string {
	if ts, ok := parseTimestamp(v); ok {
		return ts.In(r.loc).Format("Jan 2, 2006, 3:04:05 PM")
	}
	switch key {
	case "score_state":
		parts := strings.Split(strings.ToLower(v), "_")
		for i, p := range parts {
			if p != "" {
				parts[i] = strings.ToUpper(p[:1]) + p[1:]
			}
		}
		return strings.Join(parts, " ")
	case "timezone_offset":
		if v == "Z" {
			return "UTC+00:00"
		}
		return "UTC" + v
	}
	return v
}

func (r *Renderer) number(key string, v float64) string {
	switch {
	case durationKeys[key]:
		return duration(v)
	case percentageKeys[key]:
		return r.decimal(v, 2) + "%"
	case heartRateKeys[key]:
		return r.decimal(v, 0) + " bpm"
	case key == "hrv_rmssd_milli":
		return r.decimal(v, 2) + " ms"
	case key == "respiratory_rate":
		return r.decimal(v, 2) + " breaths/min"
	case key == "skin_temp_celsius":
		return r.decimal(v, 2) + " °C"
	case key == "kilojoule":
		return r.decimal(v, 2) + " kJ"
	case key == "strain":
		return r.decimal(v, 2) + " / 21"
	}
	return r.decimal(v, 2)
}

func (r *Renderer) decimal(v float64, maxFraction int) string {
	return r.printer.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(maxFraction)))
}

// duration formats milliseconds as "1h 2m 3s", omitting leading zero units and
// a zero seconds part.
func duration(ms float64) string {
	sign := ""
	if ms < 0 {
		sign = "-"
	}
	total := int64(math.Round(math.Abs(ms) / 1000))
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, strconv.FormatInt(hours, 10)+"h")
	}
	if minutes > 0 || hours > 0 {
		parts = append(parts, strconv.FormatInt(minutes, 10)+"m")
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, strconv.FormatInt(seconds, 10)+"s")
	}
	return sign + strings.Join(parts, " ")
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
