package util

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/elijahnyp/thermostat_controller/state"
)

const ( //command actions
	SET_TEMPERATURE = "set_temperature"
	TURN_ON         = "turn_on"
	TURN_OFF        = "turn_off"
	INCREASE        = "increase"
	DECREASE        = "decrease"
	SET_MODE        = "set_mode"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidValue   = errors.New("invalid command value")
)

// Command is a single operation requested for a room's thermostat.
// Value carries the temperature for SET_TEMPERATURE and the mode name for SET_MODE.
type Command struct {
	Action string          `json:"action"`
	Value  json.RawMessage `json:"value,omitempty"`
}

func NewSetTemperature(value int) Command {
	return Command{Action: SET_TEMPERATURE, Value: json.RawMessage(strconv.Itoa(value))}
}

// ParseCommand accepts either a JSON object or one of the short text forms
// used by simple MQTT publishers: on, off, heat, up, down or a bare integer.
func ParseCommand(payload []byte) (Command, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return Command{}, fmt.Errorf("%w: empty payload", ErrUnknownCommand)
	}
	if trimmed[0] == '{' {
		var c Command
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return Command{}, fmt.Errorf("decoding command: %w", err)
		}
		if c.Action == "" {
			return Command{}, fmt.Errorf("%w: missing action", ErrUnknownCommand)
		}
		return c, nil
	}

	text := strings.ToLower(string(trimmed))
	switch text {
	case "on", "heat":
		return Command{Action: TURN_ON}, nil
	case "off":
		return Command{Action: TURN_OFF}, nil
	case "up", "+":
		return Command{Action: INCREASE}, nil
	case "down", "-":
		return Command{Action: DECREASE}, nil
	}
	if v, err := strconv.Atoi(text); err == nil {
		return NewSetTemperature(v), nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, text)
}

// rawValue is the command value, or nil when it is absent or JSON null.
func (c Command) rawValue() json.RawMessage {
	raw := bytes.TrimSpace(c.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return raw
}

func (c Command) intValue() (int, error) {
	raw := c.rawValue()
	if raw == nil {
		return 0, fmt.Errorf("%w: missing temperature", ErrInvalidValue)
	}
	var v int
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, nil
	}
	// HA publishes setpoints as "72" or 72.0
	var s string
	if json.Unmarshal(raw, &s) == nil {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, fmt.Errorf("%w: temperature %q", ErrInvalidValue, s)
		}
		return v, nil
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil && f == float64(int(f)) {
		return int(f), nil
	}
	return 0, fmt.Errorf("%w: temperature %s", ErrInvalidValue, string(raw))
}

func (c Command) ApplyTo(t state.Controllable) error {
	switch c.Action {
	case SET_TEMPERATURE:
		v, err := c.intValue()
		if err != nil {
			return err
		}
		return t.SetTemperature(v)
	case TURN_ON:
		t.TurnOn()
	case TURN_OFF:
		t.TurnOff()
	case INCREASE:
		return t.IncreaseTemp()
	case DECREASE:
		return t.DecreaseTemp()
	case SET_MODE:
		raw := c.rawValue()
		if raw == nil {
			return fmt.Errorf("%w: missing mode", ErrInvalidValue)
		}
		var m state.Mode
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return fmt.Errorf("%w: mode %s", ErrInvalidValue, string(raw))
		}
		if err := m.UnmarshalText([]byte(name)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		if m == state.ModeHeat {
			t.TurnOn()
		} else {
			t.TurnOff()
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Action)
	}
	return nil
}
