package util

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

func TestNewStatePublisher_Config(t *testing.T) {
	Config.Set("publish_frequency", int64(5))
	Config.Set("publish_workers", int64(0))
	defer Config.Set("publish_workers", int64(2))

	p := NewStatePublisher(&Model{}, func() MQTT.Client { return nil })

	if p.Frequency != 5 {
		t.Errorf("Frequency = %d, expected 5", p.Frequency)
	}
	if p.Workers != 1 {
		t.Errorf("Workers = %d, expected at least 1", p.Workers)
	}
}

func TestStatePublisher_PublishAll(t *testing.T) {
	m := buildTestModel(t)
	mockClient := &MockMQTTClient{connected: true}

	Config.Set("publish_frequency", int64(0))
	Config.Set("publish_workers", int64(2))
	defer Config.Set("publish_frequency", int64(60))

	p := NewStatePublisher(m, func() MQTT.Client { return mockClient })
	p.Start(context.Background())
	p.PublishAll()
	p.Stop()

	calls := mockClient.Published()
	if len(calls) != 3 {
		t.Fatalf("Expected 3 state publishes, got %d", len(calls))
	}

	byTopic := make(map[string]RoomSnapshot)
	for _, call := range calls {
		var snap RoomSnapshot
		if err := json.Unmarshal(call.Payload.([]byte), &snap); err != nil {
			t.Fatalf("invalid payload on %s: %v", call.Topic, err)
		}
		byTopic[call.Topic] = snap
	}

	if snap := byTopic["thermostat/kitchen/state"]; snap.Temperature != 64 {
		t.Errorf("kitchen snapshot = %+v, expected temperature 64", snap)
	}
	if _, ok := byTopic["hab/living_room/thermostat"]; !ok {
		t.Error("living_room should publish to its configured state topic")
	}
}

func TestStatePublisher_PublishesStateAtSendTime(t *testing.T) {
	m := buildTestModel(t)
	mockClient := &MockMQTTClient{connected: true}

	Config.Set("publish_frequency", int64(0))
	Config.Set("publish_workers", int64(1))
	defer Config.Set("publish_frequency", int64(60))
	defer Config.Set("publish_workers", int64(2))

	p := NewStatePublisher(m, func() MQTT.Client { return mockClient })
	// queued before any worker runs, changed before it is sent
	p.Enqueue("kitchen")
	if _, err := m.Apply("kitchen", NewSetTemperature(80)); err != nil {
		t.Fatalf("Apply() returned error: %v", err)
	}
	p.Start(context.Background())
	p.Stop()

	calls := mockClient.Published()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 state publish, got %d", len(calls))
	}
	var snap RoomSnapshot
	if err := json.Unmarshal(calls[0].Payload.([]byte), &snap); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if snap.Temperature != 80 {
		t.Errorf("published temperature %d, expected the current 80", snap.Temperature)
	}
}

func TestStatePublisher_SkipsWhenDisconnected(t *testing.T) {
	m := buildTestModel(t)
	mockClient := &MockMQTTClient{connected: false}

	Config.Set("publish_frequency", int64(0))
	defer Config.Set("publish_frequency", int64(60))

	p := NewStatePublisher(m, func() MQTT.Client { return mockClient })
	p.Start(context.Background())
	p.PublishAll()
	p.Stop()

	if n := len(mockClient.Published()); n != 0 {
		t.Errorf("Expected no publishes while disconnected, got %d", n)
	}
}

func TestStatePublisher_Ticker(t *testing.T) {
	m := buildTestModel(t)
	mockClient := &MockMQTTClient{connected: true}

	Config.Set("publish_frequency", int64(1))
	defer Config.Set("publish_frequency", int64(60))

	ctx, cancel := context.WithCancel(context.Background())
	p := NewStatePublisher(m, func() MQTT.Client { return mockClient })
	p.Start(ctx)

	deadline := time.After(3 * time.Second)
	for len(mockClient.Published()) < 3 {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("ticker did not publish, got %d messages", len(mockClient.Published()))
		case <-time.After(50 * time.Millisecond):
		}
	}
	cancel()
	p.Stop()
}
