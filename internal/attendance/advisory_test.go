package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		severe      bool
		percentage  float64
		maxBunkable int
		want        AdvisoryVerdict
		wantTip     bool
	}{
		{name: "allowance left wins regardless of weather", severe: false, percentage: 90, maxBunkable: 3, want: VerdictYes},
		{name: "allowance left in bad weather", severe: true, percentage: 60, maxBunkable: 1, want: VerdictYes},
		{name: "severe weather exception band", severe: true, percentage: 70, maxBunkable: 0, want: VerdictYesException},
		{name: "exception band needs severe weather", severe: false, percentage: 70, maxBunkable: 0, want: VerdictNo},
		{name: "severe weather outside band", severe: true, percentage: 60, maxBunkable: 0, want: VerdictNo},
		{name: "certificate tip band", severe: false, percentage: 80, maxBunkable: 0, want: VerdictNo, wantTip: true},
		{name: "tip band lower edge", severe: false, percentage: 75, maxBunkable: 0, want: VerdictNo, wantTip: true},
		{name: "above tip band", severe: false, percentage: 90, maxBunkable: 0, want: VerdictNo},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := Classify(tc.severe, tc.percentage, tc.maxBunkable)
			assert.Equal(t, tc.want, d.Verdict)
			if tc.wantTip {
				assert.NotEmpty(t, d.Tip)
			} else {
				assert.Empty(t, d.Tip)
			}
		})
	}
}

func TestIsSevereWeather(t *testing.T) {
	assert.True(t, IsSevereWeather("Thunderstorm with heavy rain"))
	assert.True(t, IsSevereWeather("moderate rain and STORM warning"))
	assert.False(t, IsSevereWeather("clear sky"))
	assert.False(t, IsSevereWeather("light drizzle"))
	assert.False(t, IsSevereWeather(""))
}
