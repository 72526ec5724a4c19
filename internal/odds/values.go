package odds

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var jsonNull = []byte("null")

// American is a signed American-format price. Feeds send it as a number, a
// string such as "+150", or null; a zero or unparseable value means no quote.
type American struct {
	value int
	valid bool
}

// NewAmerican wraps a price. Zero yields an absent quote.
func NewAmerican(v int) American {
	return American{value: v, valid: v != 0}
}

// Value reports the price and whether one was quoted.
func (a American) Value() (int, bool) {
	return a.value, a.valid
}

// Valid reports whether the price can be fed to the odds math.
func (a American) Valid() bool { return a.valid }

// String formats the price with an explicit sign, or "" when absent.
func (a American) String() string {
	if !a.valid {
		return ""
	}
	if a.value > 0 {
		return "+" + strconv.Itoa(a.value)
	}
	return strconv.Itoa(a.value)
}

func (a *American) UnmarshalJSON(data []byte) error {
	*a = American{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if v, ok := leadingInt(s); ok {
			*a = NewAmerican(v)
		}
		return nil
	case 't', 'f':
		return nil
	case '{', '[':
		return fmt.Errorf("american odds: unexpected json %s", truncate(data))
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("american odds: %w", err)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	*a = NewAmerican(int(math.Trunc(f)))
	return nil
}

func (a American) MarshalJSON() ([]byte, error) {
	if !a.valid {
		return jsonNull, nil
	}
	return []byte(strconv.Itoa(a.value)), nil
}

// leadingInt reads an optionally signed run of digits from the start of s,
// ignoring anything after it ("+150" → 150, "-110.0" → -110).
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	sign := 1
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return sign * v, true
}

// NoSpread is the grouping key used when a record carries no line.
const NoSpread = "no-spread"

// Spread is a point line sent as a number, a string, or null.
type Spread struct {
	text    string
	numeric bool
}

// NewSpread builds a numeric spread.
func NewSpread(v float64) Spread {
	return Spread{text: strconv.FormatFloat(v, 'f', -1, 64), numeric: true}
}

// NewSpreadText builds a spread from free text.
func NewSpreadText(s string) Spread {
	return Spread{text: s}
}

// Present reports whether the spread takes part in market keys. A numeric
// zero and an empty string count as absent.
func (s Spread) Present() bool {
	if s.text == "" {
		return false
	}
	return !(s.numeric && s.text == "0")
}

// Key returns the market-key component for this spread.
func (s Spread) Key() string {
	if !s.Present() {
		return NoSpread
	}
	return s.text
}

// String returns the raw textual form.
func (s Spread) String() string { return s.text }

// Float parses the spread for numeric sorting; unparseable values are 0.
func (s Spread) Float() float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s.text), 64)
	if err != nil {
		return 0
	}
	return f
}

func (s *Spread) UnmarshalJSON(data []byte) error {
	*s = Spread{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return nil
	}
	switch data[0] {
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = NewSpreadText(text)
		return nil
	case 't', 'f':
		return nil
	case '{', '[':
		return fmt.Errorf("spread: unexpected json %s", truncate(data))
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("spread: %w", err)
	}
	*s = NewSpread(f)
	return nil
}

func (s Spread) MarshalJSON() ([]byte, error) {
	if s.text == "" && !s.numeric {
		return jsonNull, nil
	}
	if s.numeric {
		return []byte(s.text), nil
	}
	return json.Marshal(s.text)
}

// Timestamp is a feed time sent either as an ISO-8601 string or as unix
// seconds. Anything else is treated as absent.
type Timestamp struct {
	time.Time
	Valid bool
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	*t = Timestamp{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if !strings.Contains(s, "T") {
			return nil
		}
		for _, layout := range isoLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				*t = Timestamp{Time: parsed.UTC(), Valid: true}
				return nil
			}
		}
		return nil
	case '{', '[', 't', 'f':
		return nil
	}
	secs, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return nil
	}
	whole, frac := math.Modf(secs)
	*t = Timestamp{Time: time.Unix(int64(whole), int64(frac*1e9)).UTC(), Valid: true}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return jsonNull, nil
	}
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}

// UnixMilli returns milliseconds since epoch for sorting; absent is 0.
func (t Timestamp) UnixMilli() int64 {
	if !t.Valid {
		return 0
	}
	return t.Time.UnixMilli()
}

// Text is an identifier or label the feeds send as either a string or a bare
// number. Other JSON kinds decode to the empty string.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	*t = ""
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(s))
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		*t = Text(data)
	}
	return nil
}

// Number is an optional float sent as a number, a numeric string, or null.
// Non-finite and unparseable values are absent.
type Number struct {
	value float64
	valid bool
}

// Ptr returns the value, or nil when absent.
func (n Number) Ptr() *float64 {
	if !n.valid {
		return nil
	}
	v := n.value
	return &v
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	text := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	*n = Number{value: f, valid: true}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.valid {
		return jsonNull, nil
	}
	return []byte(strconv.FormatFloat(n.value, 'f', -1, 64)), nil
}

func truncate(data []byte) string {
	if len(data) > 32 {
		return string(data[:32]) + "..."
	}
	return string(data)
}
