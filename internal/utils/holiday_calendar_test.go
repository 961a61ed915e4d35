package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextWorkdayAt(t *testing.T) {
	ar, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	require.NoError(t, err)

	cases := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{"weekday stays", time.Date(2025, time.March, 11, 15, 0, 0, 0, ar), time.Date(2025, time.March, 11, 9, 0, 0, 0, ar)},
		{"saturday moves to monday", time.Date(2025, time.March, 15, 8, 0, 0, 0, ar), time.Date(2025, time.March, 17, 9, 0, 0, 0, ar)},
		{"carnival skipped", time.Date(2025, time.March, 3, 8, 0, 0, 0, ar), time.Date(2025, time.March, 5, 9, 0, 0, 0, ar)},
		{"independence day skipped", time.Date(2025, time.July, 9, 8, 0, 0, 0, ar), time.Date(2025, time.July, 10, 9, 0, 0, 0, ar)},
		// 01:00 UTC on the 12th is still the 11th in Buenos Aires
		{"local calendar day", time.Date(2025, time.March, 12, 1, 0, 0, 0, time.UTC), time.Date(2025, time.March, 11, 9, 0, 0, 0, ar)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextWorkdayAt(tc.from, ar, 9)
			assert.True(t, tc.want.Equal(got), "want %s, got %s", tc.want, got)
		})
	}

	assert.True(t, IsARHoliday(time.Date(2025, time.May, 25, 12, 0, 0, 0, ar)))
	assert.False(t, IsWorkday(time.Date(2025, time.December, 25, 12, 0, 0, 0, ar)))
}

func TestLoadLocation(t *testing.T) {
	assert.Equal(t, "America/Argentina/Cordoba", LoadLocation("America/Argentina/Cordoba", "UTC").String())
	assert.Equal(t, "America/Argentina/Buenos_Aires", LoadLocation("Not/AZone", "America/Argentina/Buenos_Aires").String())
	assert.Equal(t, time.UTC, LoadLocation("", ""))
}
