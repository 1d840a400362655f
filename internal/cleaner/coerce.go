package cleaner

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order; day-first numeric dates follow the
// report cards this tool was built for.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2006",
	"January 2006",
	"01-02-06", // spreadsheet default short date
}

// Excel stores dates as days since 1899-12-30.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

const maxExcelSerial = 2958465 // 9999-12-31

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("value of type %T is not a number", v)
	}
}

// toText renders identifiers and labels. Integral numbers lose their
// fractional part so 1001.0 and "1001" identify the same student.
func toText(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return strings.Join(strings.Fields(x), " "), nil
	case bool:
		return "", fmt.Errorf("boolean %v is not an identifier", x)
	case time.Time:
		return x.Format("2006-01-02"), nil
	}
	f, err := toFloat(v)
	if err != nil {
		return "", err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%v is not an identifier", f)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10), nil
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

func toDate(v any) (*time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		t := x
		return &t, nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return &t, nil
			}
		}
		// bare numbers below this are more likely years or codes than serials
		if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 10000 {
			return excelSerial(f)
		}
		return nil, fmt.Errorf("%q is not a recognized date", x)
	case bool:
		return nil, fmt.Errorf("boolean %v is not a date", x)
	}
	f, err := toFloat(v)
	if err != nil {
		return nil, err
	}
	return excelSerial(f)
}

func excelSerial(f float64) (*time.Time, error) {
	if f < 1 || f > maxExcelSerial || math.IsNaN(f) {
		return nil, fmt.Errorf("%v is outside the spreadsheet date range", f)
	}
	days := math.Floor(f)
	frac := f - days
	t := excelEpoch.AddDate(0, 0, int(days)).Add(time.Duration(frac * float64(24*time.Hour)))
	return &t, nil
}
