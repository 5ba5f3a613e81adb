package latefee

import (
	"math"
	"time"
)

// Policy prices each started hour past the expected checkout.
// HourlyRate wins over NightlyFraction when both are set.
type Policy struct {
	HourlyRate       int64   `mapstructure:"hourly_rate"`
	NightlyFraction  float64 `mapstructure:"nightly_fraction"`
	CapAtNightlyRate bool    `mapstructure:"cap_at_nightly_rate"`
	MaxFee           int64   `mapstructure:"max_fee"`
}

func DefaultPolicy() Policy {
	return Policy{
		NightlyFraction:  0.1, //nolint:gomnd
		CapAtNightlyRate: true,
	}
}

type Result struct {
	IsLate    bool  `json:"is_late"`
	HoursLate int   `json:"hours_late"`
	Fee       int64 `json:"fee"`
}

func (p Policy) hourly(ratePerNight int64) int64 {
	if p.HourlyRate > 0 {
		return p.HourlyRate
	}

	return int64(math.Round(float64(ratePerNight) * p.NightlyFraction))
}

// Compute depends only on its arguments, so the same timestamps always give the same fee.
func (p Policy) Compute(expected, actual time.Time, ratePerNight int64) Result {
	if !actual.After(expected) {
		return Result{}
	}

	hours := int(math.Ceil(actual.Sub(expected).Hours()))
	fee := int64(hours) * p.hourly(ratePerNight)

	if p.CapAtNightlyRate && ratePerNight > 0 && fee > ratePerNight {
		fee = ratePerNight
	}

	if p.MaxFee > 0 && fee > p.MaxFee {
		fee = p.MaxFee
	}

	if fee < 0 {
		fee = 0
	}

	return Result{
		IsLate:    true,
		HoursLate: hours,
		Fee:       fee,
	}
}
