package present

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/patrickspencer/pipewatch/internal/aggregate"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0s"},
		{59.94, "59.9s"},
		{59.96, "60.0s"},
		{60, "1.0m"},
		{90, "1.5m"},
		{3599.95, "60.0m"},
		{3600, "1.0h"},
		{5400, "1.5h"},
		{math.NaN(), "N/A"},
		{math.Inf(1), "N/A"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), "FormatDuration(%v)", tt.in)
	}
}

func TestFormatOptionalDuration(t *testing.T) {
	assert.Equal(t, "N/A", FormatOptionalDuration(aggregate.Float{}))
	assert.Equal(t, "0.0s", FormatOptionalDuration(aggregate.Some(0)))
	assert.Equal(t, "15.0s", FormatOptionalDuration(aggregate.Some(15)))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "N/A", FormatPercent(aggregate.Float{}))
	assert.Equal(t, "66.7%", FormatPercent(aggregate.Some(66.7)))
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-06-10T14:05:09Z", "6/10/2024, 2:05:09 PM"},
		{"2024-06-10T14:05:09.123456+00:00", "6/10/2024, 2:05:09 PM"},
		{"2024-06-10T16:05:09+02:00", "6/10/2024, 2:05:09 PM"},
		{"2024-06-10T00:00:01", "6/10/2024, 12:00:01 AM"},
		{"2024-06-10 14:05:09", "6/10/2024, 2:05:09 PM"},
		{"", "Invalid Date"},
		{"yesterday", "Invalid Date"},
		{"2024-13-40T00:00:00Z", "Invalid Date"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTimestampIn(tt.in, time.UTC), "FormatTimestampIn(%q)", tt.in)
	}
}

func TestFormatTimeZeroIsInvalid(t *testing.T) {
	assert.Equal(t, "Invalid Date", FormatTime(time.Time{}, time.UTC))
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "&lt;script&gt;", Escape("<script>"))
	assert.Equal(t, "a &amp; b &quot;c&quot; &#39;d&#39;", Escape(`a & b "c" 'd'`))
	assert.Equal(t, "&amp;lt;", Escape("&lt;"))

	assert.Equal(t, "", EscapeForDisplay(nil))
	s := "<b>etl</b>"
	assert.Equal(t, "&lt;b&gt;etl&lt;/b&gt;", EscapeForDisplay(&s))
}

func TestParseTimestampAssumesUTC(t *testing.T) {
	got, err := ParseTimestamp("2024-06-10T14:05:09")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 10, 14, 5, 9, 0, time.UTC), got)

	_, err = ParseTimestamp("not a time")
	assert.Error(t, err)
}
