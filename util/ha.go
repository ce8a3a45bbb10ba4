package util

import (
	"encoding/json"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/elijahnyp/thermostat_controller/state"
)

type HAAvdvertisementAvailability struct {
	Topic               string `json:"topic"`                 // : "thermostat/online"
	PayloadAvailable    string `json:"payload_available"`     // : "online"
	PayloadNotAvailable string `json:"payload_not_available"` // : "offline"
}

type HADeviceSpec struct {
	Name        string   `json:"name"` // : "thermostat_controller"
	Identifiers []string `json:"ids"`
}

// HAClimate is a Home Assistant MQTT climate discovery payload.
// Commands arrive as JSON on the room's command topic, so every
// command template wraps the value in a Command object.
type HAClimate struct { //nolint:govet // struct layout follows JSON field order
	Availability               []HAAvdvertisementAvailability `json:"availability"`
	Device                     HADeviceSpec                   `json:"device"`
	UniqueID                   string                         `json:"uniq_id"`
	Name                       string                         `json:"name"`
	Modes                      []string                       `json:"modes"`
	ModeStateTopic             string                         `json:"mode_state_topic"`
	ModeStateTemplate          string                         `json:"mode_state_template"`
	ModeCommandTopic           string                         `json:"mode_command_topic"`
	ModeCommandTemplate        string                         `json:"mode_command_template"`
	TemperatureStateTopic      string                         `json:"temperature_state_topic"`
	TemperatureStateTemplate   string                         `json:"temperature_state_template"`
	TemperatureCommandTopic    string                         `json:"temperature_command_topic"`
	TemperatureCommandTemplate string                         `json:"temperature_command_template"`
	TemperatureUnit            string                         `json:"temperature_unit"`
	MinTemp                    int                            `json:"min_temp"`
	MaxTemp                    int                            `json:"max_temp"`
	TempStep                   float64                        `json:"temp_step"`
	Precision                  float64                        `json:"precision"`
	Platform                   string                         `json:"platform"`
	Qos                        int                            `json:"qos"`
	Retain                     bool                           `json:"retain"`
}

func (ha HAClimate) ToJson() string {
	data, err := json.Marshal(ha)
	if err != nil {
		Logger.Error().Msgf("Error marshalling HAClimate: %v", err)
		return ""
	}
	return string(data)
}

func ConstructHAClimate(name, stateTopic, commandTopic string) HAClimate {
	return HAClimate{
		Name: name,
		Availability: []HAAvdvertisementAvailability{
			{
				Topic:               OnlineTopic(),
				PayloadAvailable:    "online",
				PayloadNotAvailable: "offline",
			},
		},
		Modes:                      []string{state.ModeOff.String(), state.ModeHeat.String()},
		ModeStateTopic:             stateTopic,
		ModeStateTemplate:          "{{ value_json.mode }}",
		ModeCommandTopic:           commandTopic,
		ModeCommandTemplate:        `{"action":"set_mode","value":"{{ value }}"}`,
		TemperatureStateTopic:      stateTopic,
		TemperatureStateTemplate:   "{{ value_json.temperature }}",
		TemperatureCommandTopic:    commandTopic,
		TemperatureCommandTemplate: `{"action":"set_temperature","value":{{ value | int }}}`,
		TemperatureUnit:            "F",
		MinTemp:                    state.MinTemperature,
		MaxTemp:                    state.MaxTemperature,
		TempStep:                   1,
		Precision:                  1,
		Qos:                        0,
		UniqueID:                   "thermostat-" + name,
		Platform:                   "climate",
		Device: HADeviceSpec{
			Name:        "thermostat_controller",
			Identifiers: []string{"thermostat_controller"},
		},
	}
}

func HADiscoveryTopic(room string) string {
	return "homeassistant/climate/" + room + "/config"
}

func AdvertiseHA(rooms []RoomConfig, client MQTT.Client) {
	for _, room := range rooms {
		ha := ConstructHAClimate(room.Name, room.State_topic, room.Command_topic)
		if token := client.Publish(HADiscoveryTopic(room.Name), 0, true, ha.ToJson()); token.Wait() && token.Error() != nil {
			Logger.Error().Err(token.Error()).Str("room", room.Name).Msg("Error Publishing HA discovery")
		}
	}
}
