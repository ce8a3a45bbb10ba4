package state

import (
	"errors"
	"fmt"
)

const (
	MinTemperature     = 50
	MaxTemperature     = 90
	DefaultTemperature = 70
)

type Mode uint8

const (
	ModeOff Mode = iota
	ModeHeat
)

func (m Mode) String() string {
	switch m {
	case ModeHeat:
		return "heat"
	default:
		return "off"
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMode accepts the names produced by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "off", "OFF", "Off":
		return ModeOff, nil
	case "heat", "HEAT", "Heat":
		return ModeHeat, nil
	}
	return ModeOff, fmt.Errorf("unknown mode %q", s)
}

var ErrOutOfRange = errors.New("temperature out of range")

// OutOfRangeError reports a rejected temperature along with the permitted bounds.
type OutOfRangeError struct {
	Value int
	Min   int
	Max   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("temperature %d out of range [%d, %d]", e.Value, e.Min, e.Max)
}

func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

// Controllable is the set of operations a thermostat exposes to its owner.
type Controllable interface {
	Temperature() int
	Mode() Mode
	SetTemperature(int) error
	IncreaseTemp() error
	DecreaseTemp() error
	TurnOn()
	TurnOff()
}

var _ Controllable = (*Thermostat)(nil)

// Thermostat holds a temperature setpoint in [MinTemperature, MaxTemperature]
// and an off/heat mode. It is not safe for concurrent use.
type Thermostat struct {
	temperature int
	mode        Mode
}

func NewThermostat() *Thermostat {
	return &Thermostat{
		temperature: DefaultTemperature,
		mode:        ModeOff,
	}
}

func (t *Thermostat) Temperature() int {
	return t.temperature
}

func (t *Thermostat) Mode() Mode {
	return t.mode
}

// SetTemperature leaves the current value untouched when value is rejected.
func (t *Thermostat) SetTemperature(value int) error {
	if value < MinTemperature || value > MaxTemperature {
		return &OutOfRangeError{Value: value, Min: MinTemperature, Max: MaxTemperature}
	}
	t.temperature = value
	return nil
}

func (t *Thermostat) IncreaseTemp() error {
	return t.SetTemperature(t.temperature + 1)
}

func (t *Thermostat) DecreaseTemp() error {
	return t.SetTemperature(t.temperature - 1)
}

func (t *Thermostat) TurnOn() {
	t.mode = ModeHeat
}

func (t *Thermostat) TurnOff() {
	t.mode = ModeOff
}
