package state

// Room is a named space owning exactly one thermostat.
type Room struct {
	name       string
	thermostat *Thermostat
}

func NewRoom(name string) *Room {
	return &Room{
		name:       name,
		thermostat: NewThermostat(),
	}
}

func (r *Room) Name() string {
	return r.name
}

func (r *Room) Thermostat() *Thermostat {
	return r.thermostat
}
