package salus

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Payload keys of ajax_device_values.php. Values arrive string-encoded.
const (
	KeySetpoint    = "CH1currentSetPoint"
	KeyRoomTemp    = "CH1currentRoomTemp"
	KeyFrost       = "frost"
	KeyRelayStatus = "CH1heatOnOffStatus"
	KeyModeFlag    = "CH1heatOnOff"
)

// flagSet is the vendor's "true" encoding for both flags
const flagSet = "1"

// Decode maps a raw device values payload to a ThermostatState.
//
// The mode flag is inverted: "1" means heating is switched OFF, any other
// value means ON. The relay status flag is not inverted: "1" means the
// heating output is energized.
func Decode(raw []byte) (ThermostatState, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(raw), &fields); err != nil {
		return ThermostatState{}, &DecodeError{Reason: ReasonMalformed, Err: err}
	}
	if fields == nil {
		return ThermostatState{}, &DecodeError{Reason: ReasonMalformed}
	}

	target, err := decodeTemperature(fields, KeySetpoint)
	if err != nil {
		return ThermostatState{}, err
	}
	if target < MinTemp || target > MaxTemp {
		return ThermostatState{}, &DecodeError{
			Field:  KeySetpoint,
			Reason: ReasonOutOfRange,
			Value:  FormatTemperature(target),
		}
	}

	current, err := decodeTemperature(fields, KeyRoomTemp)
	if err != nil {
		return ThermostatState{}, err
	}

	frost, err := decodeTemperature(fields, KeyFrost)
	if err != nil {
		return ThermostatState{}, err
	}

	relay, err := decodeFlag(fields, KeyRelayStatus)
	if err != nil {
		return ThermostatState{}, err
	}

	modeFlag, err := decodeFlag(fields, KeyModeFlag)
	if err != nil {
		return ThermostatState{}, err
	}

	mode := ModeOn
	if modeFlag == flagSet {
		mode = ModeOff
	}

	return ThermostatState{
		TargetTemperatureC:  target,
		CurrentTemperatureC: current,
		FrostTemperatureC:   frost,
		HeatingActive:       relay == flagSet,
		Mode:                mode,
	}, nil
}

// scalar returns a field's value as text. Strings are unquoted, numbers keep
// their literal form. Anything else (null, objects, bools) is not a scalar.
func scalar(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return string(raw), true
	default:
		return "", false
	}
}

func decodeTemperature(fields map[string]json.RawMessage, key string) (float64, error) {
	s, ok := scalar(fields, key)
	if !ok {
		return 0, &DecodeError{Field: key, Reason: ReasonMissingOrInvalid}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &DecodeError{Field: key, Reason: ReasonMissingOrInvalid, Value: s, Err: err}
	}
	return v, nil
}

func decodeFlag(fields map[string]json.RawMessage, key string) (string, error) {
	s, ok := scalar(fields, key)
	if !ok {
		return "", &DecodeError{Field: key, Reason: ReasonMissingOrInvalid}
	}
	return s, nil
}
