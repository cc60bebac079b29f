package attendance

import "strings"

// AdvisoryVerdict is the deterministic outcome of the bunk decision table.
type AdvisoryVerdict string

const (
	VerdictYes          AdvisoryVerdict = "yes"
	VerdictYesException AdvisoryVerdict = "yes_exception"
	VerdictNo           AdvisoryVerdict = "no"
)

// Decision is the computed recommendation. Tip carries the softened guidance
// for borderline refusals; advisory text from the LLM only decorates this.
type Decision struct {
	Verdict     AdvisoryVerdict `json:"verdict"`
	MaxBunkable int             `json:"max_bunkable"`
	Tip         string          `json:"tip,omitempty"`
}

const certificateTip = "Attendance is borderline; keep a medical or emergency certificate handy before missing more classes."

// severeWeatherKeywords match OpenWeatherMap condition descriptions that count
// as adverse enough for the exception band.
var severeWeatherKeywords = []string{
	"thunderstorm",
	"heavy rain",
	"very heavy rain",
	"extreme rain",
	"torrential",
	"squall",
	"tornado",
	"hail",
	"flood",
	"cyclone",
	"storm",
}

// IsSevereWeather reports whether a weather description matches the adverse
// keyword set.
func IsSevereWeather(description string) bool {
	desc := strings.ToLower(description)
	for _, kw := range severeWeatherKeywords {
		if strings.Contains(desc, kw) {
			return true
		}
	}
	return false
}

// Classify applies the bunk decision table. The verdict never depends on the
// LLM; severe weather only unlocks the [65,72] exception band when the
// allowance is exhausted, and the [75,85] band gets the certificate tip.
func Classify(weatherSevere bool, currentPercentage float64, maxBunkable int) Decision {
	if maxBunkable > 0 {
		return Decision{Verdict: VerdictYes, MaxBunkable: maxBunkable}
	}
	if weatherSevere && currentPercentage >= 65 && currentPercentage <= 72 {
		return Decision{Verdict: VerdictYesException, MaxBunkable: 0}
	}
	if currentPercentage >= 75 && currentPercentage <= 85 {
		return Decision{Verdict: VerdictNo, MaxBunkable: 0, Tip: certificateTip}
	}
	return Decision{Verdict: VerdictNo, MaxBunkable: 0}
}
