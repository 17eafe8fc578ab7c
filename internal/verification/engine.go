// Package verification decides whether an activity's evidence satisfies the thresholds of its type.
package verification

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/green-campus-api/internal/config"
	"github.com/noah-isme/green-campus-api/internal/geotrack"
	"github.com/noah-isme/green-campus-api/internal/models"
)

// ErrUnknownActivityType indicates no verification rules exist for the activity type.
var ErrUnknownActivityType = errors.New("unknown activity type")

const (
	boundMin     = "min"
	boundMax     = "max"
	boundPresent = "present"

	sourceGPS      = "gps"
	sourceDeclared = "declared"
)

// Evidence is everything the engine may inspect for one activity.
type Evidence struct {
	ActivityType    models.ActivityType
	Title           string
	Description     string
	DistanceKm      *float64
	DurationMinutes *int
	EnergySavedKwh  *float64
	Track           *geotrack.Summary
}

// Check is the outcome of a single rule.
type Check struct {
	Name     string                    `json:"name"`
	Source   string                    `json:"source,omitempty"`
	Bound    string                    `json:"bound"`
	Measured *float64                  `json:"measured,omitempty"`
	Limit    *float64                  `json:"limit,omitempty"`
	Result   models.VerificationResult `json:"result"`
	Message  string                    `json:"message"`
}

// Score returns the contribution of the check on a 0-100 scale.
func (c Check) Score() float64 {
	switch c.Result {
	case models.VerificationPassed:
		return 100
	case models.VerificationWarning:
		return 50
	default:
		return 0
	}
}

// Details renders the check as the structured payload stored in verification logs.
func (c Check) Details() map[string]interface{} {
	details := map[string]interface{}{
		"check":   c.Name,
		"bound":   c.Bound,
		"outcome": string(c.Result),
		"message": c.Message,
	}
	if c.Source != "" {
		details["source"] = c.Source
	}
	if c.Measured != nil {
		details["measured"] = *c.Measured
	}
	if c.Limit != nil {
		details["threshold"] = *c.Limit
	}
	return details
}

// Verdict is the aggregated outcome of all checks for an activity.
type Verdict struct {
	Result models.VerificationResult `json:"result"`
	Score  float64                   `json:"score"`
	Checks []Check                   `json:"checks"`
}

// Passed reports whether every check passed comfortably.
func (v Verdict) Passed() bool {
	return v.Result == models.VerificationPassed
}

// Engine applies the configured thresholds. It holds no mutable state.
type Engine struct {
	thresholds config.VerificationThresholds
}

// NewEngine constructs an engine around the supplied thresholds.
func NewEngine(thresholds config.VerificationThresholds) *Engine {
	return &Engine{thresholds: thresholds}
}

// Verify evaluates the evidence and returns the verdict. The activity itself is never modified.
func (e *Engine) Verify(evidence Evidence) (Verdict, error) {
	var checks []Check

	switch evidence.ActivityType {
	case models.ActivityTypeCycling:
		if e.thresholds.Cycling == nil {
			return Verdict{}, fmt.Errorf("%w: no thresholds for %s", ErrUnknownActivityType, evidence.ActivityType)
		}
		checks = e.cyclingChecks(evidence, *e.thresholds.Cycling)
	case models.ActivityTypeEnergy:
		if e.thresholds.Energy == nil {
			return Verdict{}, fmt.Errorf("%w: no thresholds for %s", ErrUnknownActivityType, evidence.ActivityType)
		}
		checks = e.energyChecks(evidence, *e.thresholds.Energy)
	case models.ActivityTypeAssignments, models.ActivityTypeWorkshops:
		checks = []Check{
			presenceCheck("title_present", evidence.Title),
			presenceCheck("description_present", evidence.Description),
		}
	default:
		return Verdict{}, fmt.Errorf("%w: %q", ErrUnknownActivityType, evidence.ActivityType)
	}

	return aggregate(checks), nil
}

func (e *Engine) cyclingChecks(evidence Evidence, t config.CyclingThresholds) []Check {
	var distance, duration, speed *float64
	source := sourceDeclared

	if evidence.Track != nil {
		source = sourceGPS
		distance = floatPtr(evidence.Track.DistanceKm)
		duration = floatPtr(evidence.Track.DurationHours())
		speed = floatPtr(evidence.Track.AverageSpeedKmh)
	} else {
		distance = evidence.DistanceKm
		if evidence.DurationMinutes != nil {
			duration = floatPtr(float64(*evidence.DurationMinutes) / 60)
		}
		if distance != nil && duration != nil && *duration > 0 {
			speed = floatPtr(*distance / *duration)
		}
	}

	return []Check{
		e.boundCheck("cycling_distance", source, boundMin, distance, t.MinDistanceKm),
		e.boundCheck("cycling_min_speed", source, boundMin, speed, t.MinSpeedKmh),
		e.boundCheck("cycling_max_speed", source, boundMax, speed, t.MaxSpeedKmh),
		e.boundCheck("cycling_duration", source, boundMax, duration, t.MaxDurationHours),
	}
}

func (e *Engine) energyChecks(evidence Evidence, t config.EnergyThresholds) []Check {
	return []Check{
		e.boundCheck("energy_min_savings", sourceDeclared, boundMin, evidence.EnergySavedKwh, t.MinSavingsKwh),
		e.boundCheck("energy_max_savings", sourceDeclared, boundMax, evidence.EnergySavedKwh, t.MaxSavingsKwh),
	}
}

func (e *Engine) boundCheck(name, source, bound string, measured *float64, limit float64) Check {
	check := Check{
		Name:     name,
		Source:   source,
		Bound:    bound,
		Measured: measured,
		Limit:    floatPtr(limit),
	}

	if measured == nil || math.IsNaN(*measured) || math.IsInf(*measured, 0) {
		check.Result = models.VerificationFailed
		check.Message = "measurement missing"
		return check
	}

	value := *measured
	band := math.Abs(limit) * e.thresholds.Tolerance

	switch bound {
	case boundMin:
		switch {
		case value < limit:
			check.Result = models.VerificationFailed
			check.Message = fmt.Sprintf("%.2f is below minimum %.2f", value, limit)
		case value < limit+band:
			check.Result = models.VerificationWarning
			check.Message = fmt.Sprintf("%.2f is within tolerance of minimum %.2f", value, limit)
		default:
			check.Result = models.VerificationPassed
			check.Message = "within bounds"
		}
	case boundMax:
		switch {
		case value > limit:
			check.Result = models.VerificationFailed
			check.Message = fmt.Sprintf("%.2f exceeds maximum %.2f", value, limit)
		case value > limit-band:
			check.Result = models.VerificationWarning
			check.Message = fmt.Sprintf("%.2f is within tolerance of maximum %.2f", value, limit)
		default:
			check.Result = models.VerificationPassed
			check.Message = "within bounds"
		}
	}

	return check
}

func presenceCheck(name, value string) Check {
	check := Check{Name: name, Bound: boundPresent}
	if strings.TrimSpace(value) == "" {
		check.Result = models.VerificationFailed
		check.Message = "required field is empty"
		return check
	}
	check.Result = models.VerificationPassed
	check.Message = "present"
	return check
}

func aggregate(checks []Check) Verdict {
	verdict := Verdict{Result: models.VerificationPassed, Checks: checks}
	if len(checks) == 0 {
		return verdict
	}

	var total float64
	for _, check := range checks {
		total += check.Score()
		switch check.Result {
		case models.VerificationFailed:
			verdict.Result = models.VerificationFailed
		case models.VerificationWarning:
			if verdict.Result != models.VerificationFailed {
				verdict.Result = models.VerificationWarning
			}
		}
	}

	verdict.Score = math.Round(total/float64(len(checks))*100) / 100
	return verdict
}

func floatPtr(v float64) *float64 {
	return &v
}
