package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

const (
	// days between the spreadsheet epoch (1899-12-30) and the unix epoch
	spreadsheetEpochOffset = 25569
	msPerDay               = 86400 * 1000

	// serial of 9999-12-31, the last day spreadsheets can represent
	maxSerial = 2958465
)

var (
	dateRegex   = regexp.MustCompile(`(\d{1,4})[/-](\d{1,2})[/-](\d{2,4})`)
	serialRegex = regexp.MustCompile(`^\d+(\.\d+)?$`)

	ErrInvalidDate = errors.New("invalid date")
)

// FlexTime is a date input that accepts ISO dates, RFC 3339 timestamps, day-first dates,
// spreadsheet serial numbers and null. Set tells whether the field was present at all.
// An unparseable value does not fail decoding: Invalid is set and Raw keeps the input,
// so that validation can report it next to the other field errors.
type FlexTime struct {
	Time    time.Time
	Valid   bool
	Set     bool
	Invalid bool
	Raw     string
}

func FlexTimeFrom(t time.Time) FlexTime {
	return FlexTime{Time: t, Valid: true, Set: true}
}

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	t.Set = true
	if bytes.Equal(data, []byte("null")) {
		t.Valid = false
		return nil
	}

	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		t.Valid = false
		return nil
	}

	parsed, err := ParseSpreadsheetDate(raw)
	if err != nil {
		t.Valid = false
		t.Invalid = true
		t.Raw = fmt.Sprint(raw)
		return nil
	}
	t.Time = parsed
	t.Valid = true
	return nil
}

func (t FlexTime) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time)
}

// FieldErrors reports an unparseable value under path.
func (t FlexTime) FieldErrors(path string) []FieldError {
	if !t.Invalid {
		return nil
	}
	return []FieldError{{Path: path, Message: ErrInvalidDate.Error()}}
}

// NullTime converts the input to its storage representation.
func (t FlexTime) NullTime() null.Time {
	return null.NewTime(t.Time, t.Valid)
}

// ParseSpreadsheetDate normalizes a date cell to midnight UTC of its calendar day.
// Numbers are spreadsheet serial days; strings are tried as D/M/YYYY, YYYY-M-D or RFC 3339.
func ParseSpreadsheetDate(v interface{}) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return DateOnly(val), nil
	case float64:
		return fromSerial(val)
	case float32:
		return fromSerial(float64(val))
	case int:
		return fromSerial(float64(val))
	case int64:
		return fromSerial(float64(val))
	case json.Number:
		return parseDateString(val.String())
	case string:
		return parseDateString(val)
	case nil:
		return time.Time{}, ErrInvalidDate
	default:
		return parseDateString(fmt.Sprint(val))
	}
}

// DateOnly drops the time of day, keeping the calendar day as seen in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fromSerial(serial float64) (time.Time, error) {
	if math.IsNaN(serial) || serial < 0 || serial > maxSerial {
		return time.Time{}, errors.Wrap(ErrInvalidDate, strconv.FormatFloat(serial, 'f', -1, 64))
	}
	ms := math.Round((serial - spreadsheetEpochOffset) * msPerDay)
	return DateOnly(time.Unix(0, int64(ms)*int64(time.Millisecond))), nil
}

func parseDateString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}

	// serial numbers exported as text
	if serialRegex.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, errors.Wrap(ErrInvalidDate, s)
		}
		return fromSerial(f)
	}

	if parts := dateRegex.FindStringSubmatch(s); parts != nil {
		var y, m, d string
		switch {
		case len(parts[1]) == 4:
			y, m, d = parts[1], parts[2], parts[3]
		case len(parts[3]) == 4:
			y, m, d = parts[3], parts[2], parts[1]
		}
		if y != "" {
			year, _ := strconv.Atoi(y)
			month, _ := strconv.Atoi(m)
			day, _ := strconv.Atoi(d)
			iso := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
			if t, err := time.Parse("2006-01-02", iso); err == nil {
				return t, nil
			}
			return time.Time{}, errors.Wrap(ErrInvalidDate, s)
		}
	}

	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOnly(t), nil
		}
	}
	return time.Time{}, errors.Wrap(ErrInvalidDate, s)
}
