package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventTime(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc3339 keeps offset", "2030-05-01T14:00:00+02:00", time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)},
		{"iso local seconds", "2030-05-01T14:00:00", time.Date(2030, 5, 1, 14, 0, 0, 0, loc)},
		{"iso local minutes", "2030-05-01T14:00", time.Date(2030, 5, 1, 14, 0, 0, 0, loc)},
		{"space separated", "2030-05-01 14:30", time.Date(2030, 5, 1, 14, 30, 0, 0, loc)},
		{"slashes", "2030/05/01 09:15", time.Date(2030, 5, 1, 9, 15, 0, 0, loc)},
		{"chinese date time", "2030年5月1日 14:00", time.Date(2030, 5, 1, 14, 0, 0, 0, loc)},
		{"bare date", "2030-05-01", time.Date(2030, 5, 1, 0, 0, 0, 0, loc)},
		{"surrounding noise", "  2030-05-01 14:00。 ", time.Date(2030, 5, 1, 14, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEventTime(tt.input, loc)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestParseEventTime_Invalid(t *testing.T) {
	for _, input := range []string{"", "tomorrow afternoon", "14:00", "2030-13-01"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseEventTime(input, nil)
			assert.Error(t, err)
		})
	}
}

func TestParseEventTime_NilLocationIsUTC(t *testing.T) {
	got, err := ParseEventTime("2030-05-01 14:00", nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.Location())
}
