package util

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestConstructHAClimate(t *testing.T) {
	Config.Set("topic_prefix", "thermostat")
	name := "living_room"
	stateTopic := "thermostat/living_room/state"
	commandTopic := "thermostat/living_room/set"

	climate := ConstructHAClimate(name, stateTopic, commandTopic)

	if climate.Name != name {
		t.Errorf("Name = %s, expected %s", climate.Name, name)
	}

	if climate.Platform != "climate" {
		t.Errorf("Platform = %s, expected 'climate'", climate.Platform)
	}

	if climate.UniqueID != "thermostat-"+name {
		t.Errorf("UniqueID = %s, expected thermostat-%s", climate.UniqueID, name)
	}

	if climate.MinTemp != 50 || climate.MaxTemp != 90 {
		t.Errorf("Range = [%d, %d], expected [50, 90]", climate.MinTemp, climate.MaxTemp)
	}

	if len(climate.Modes) != 2 || climate.Modes[0] != "off" || climate.Modes[1] != "heat" {
		t.Errorf("Modes = %v, expected [off heat]", climate.Modes)
	}

	if climate.TemperatureStateTopic != stateTopic || climate.ModeStateTopic != stateTopic {
		t.Error("state topics should point at the room state topic")
	}

	if climate.TemperatureCommandTopic != commandTopic || climate.ModeCommandTopic != commandTopic {
		t.Error("command topics should point at the room command topic")
	}

	if len(climate.Availability) != 1 || climate.Availability[0].Topic != "thermostat/online" {
		t.Errorf("Availability = %+v, expected thermostat/online", climate.Availability)
	}
}

func TestHAClimate_ToJson(t *testing.T) {
	climate := ConstructHAClimate("den", "thermostat/den/state", "thermostat/den/set")

	jsonStr := climate.ToJson()
	if jsonStr == "" {
		t.Fatal("ToJson() returned empty string")
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		t.Fatalf("ToJson() produced invalid JSON: %v", err)
	}

	for _, field := range []string{"uniq_id", "modes", "temperature_command_topic", "min_temp", "max_temp", "availability", "device"} {
		if _, ok := parsed[field]; !ok {
			t.Errorf("JSON missing field %s", field)
		}
	}

	if !strings.Contains(jsonStr, "set_temperature") {
		t.Error("temperature command template should produce a set_temperature command")
	}
}

func TestAdvertiseHA(t *testing.T) {
	mockClient := &MockMQTTClient{}
	rooms := []RoomConfig{
		{Name: "den", State_topic: "thermostat/den/state", Command_topic: "thermostat/den/set"},
		{Name: "kitchen", State_topic: "thermostat/kitchen/state", Command_topic: "thermostat/kitchen/set"},
	}

	AdvertiseHA(rooms, mockClient)

	calls := mockClient.Published()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 discovery messages, got %d", len(calls))
	}

	expectedTopics := map[string]bool{
		"homeassistant/climate/den/config":     true,
		"homeassistant/climate/kitchen/config": true,
	}
	for _, call := range calls {
		if !expectedTopics[call.Topic] {
			t.Errorf("Unexpected discovery topic %s", call.Topic)
		}
		if !call.Retained {
			t.Errorf("Discovery on %s should be retained", call.Topic)
		}
		if _, ok := call.Payload.(string); !ok {
			t.Errorf("Discovery payload should be a JSON string, got %T", call.Payload)
		}
	}
}
