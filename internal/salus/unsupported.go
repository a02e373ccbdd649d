package salus

import (
	"context"
	"fmt"
	"time"
)

// The vendor UI offers presets, schedules, holiday mode and frost protection,
// but their set.php forms have not been captured. These methods validate
// their arguments and then fail with ErrNotImplemented.

// Preset names shown in the vendor UI
const (
	PresetSchedule = "schedule"
	PresetManual   = "manual"
	PresetHoliday  = "holiday"
)

// Presets lists the supported preset names
var Presets = []string{PresetSchedule, PresetManual, PresetHoliday}

// Schedule program layouts
const (
	ProgramAllDays    = "all"
	ProgramWeekdays52 = "5/2"
	ProgramIndividual = "individual"
)

// ScheduleEntry is one switching point of a daily program
type ScheduleEntry struct {
	Day          time.Weekday
	At           time.Duration // offset from midnight
	TemperatureC float64
}

// SetPresetMode selects one of Presets.
func (c *Client) SetPresetMode(ctx context.Context, preset string) error {
	switch preset {
	case PresetSchedule, PresetManual, PresetHoliday:
	default:
		return &ClientError{Kind: KindOutOfRange, Op: "set_preset", Message: fmt.Sprintf("invalid preset %q", preset)}
	}
	return notImplemented("set_preset")
}

// SetHolidayMode holds the frost setpoint between start and end.
func (c *Client) SetHolidayMode(ctx context.Context, start, end time.Time) error {
	if !end.After(start) {
		return &ClientError{Kind: KindOutOfRange, Op: "set_holiday", Message: "holiday must end after it starts"}
	}
	return notImplemented("set_holiday")
}

// SetScheduleProgram uploads a weekly program of the given layout.
func (c *Client) SetScheduleProgram(ctx context.Context, program string, schedule []ScheduleEntry) error {
	switch program {
	case ProgramAllDays, ProgramWeekdays52, ProgramIndividual:
	default:
		return &ClientError{Kind: KindOutOfRange, Op: "set_schedule", Message: fmt.Sprintf("invalid program type %q (use all, 5/2 or individual)", program)}
	}
	for _, e := range schedule {
		if err := ValidateTemperature(e.TemperatureC); err != nil {
			return err
		}
	}
	return notImplemented("set_schedule")
}

// OverrideTargetTemperature overrides the running program until its next switching point.
func (c *Client) OverrideTargetTemperature(ctx context.Context, value float64) error {
	if err := ValidateTemperature(value); err != nil {
		return err
	}
	return notImplemented("override_temperature")
}

// SetFrostProtection enables frost protection at temperature, or disables it.
// A temperature is required when enabling.
func (c *Client) SetFrostProtection(ctx context.Context, enabled bool, temperature *float64) error {
	if enabled {
		if temperature == nil {
			return &ClientError{Kind: KindOutOfRange, Op: "set_frost", Message: "temperature is required to enable frost protection"}
		}
		if err := ValidateTemperature(*temperature); err != nil {
			return err
		}
	}
	return notImplemented("set_frost")
}

func notImplemented(op string) error {
	return fmt.Errorf("%s: %w", op, ErrNotImplemented)
}
