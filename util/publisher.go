package util

import (
	"context"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

// StatePublisher periodically republishes every room's snapshot to its
// state topic so late subscribers and HA restarts converge. Workers read
// the snapshot when they publish, never when the room was queued.
type StatePublisher struct {
	Frequency int64 `mapstructure:"publish_frequency"`
	Workers   int64 `mapstructure:"publish_workers"`

	model  *Model
	client func() MQTT.Client
	queue  chan string
	wg     sync.WaitGroup
	ticked chan struct{}
}

func NewStatePublisher(model *Model, client func() MQTT.Client) *StatePublisher {
	p := &StatePublisher{
		Frequency: Config.GetInt64("publish_frequency"),
		Workers:   Config.GetInt64("publish_workers"),
		model:     model,
		client:    client,
	}
	if p.Workers < 1 {
		p.Workers = 1
	}
	p.queue = make(chan string, p.Workers*4)
	return p
}

// Start runs the workers and ticker until ctx is cancelled.
func (p *StatePublisher) Start(ctx context.Context) {
	for i := 0; i < int(p.Workers); i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.worker(p.queue)
		}()
	}
	if p.Frequency <= 0 {
		Logger.Info().Msg("periodic state publishing disabled")
		return
	}
	ticker := time.NewTicker(time.Duration(p.Frequency) * time.Second)
	p.ticked = make(chan struct{})
	go func() {
		defer close(p.ticked)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.PublishAll()
			}
		}
	}()
}

// Stop closes the queue and waits for queued rooms to drain. When the
// ticker is running, the context passed to Start must be cancelled first.
func (p *StatePublisher) Stop() {
	if p.ticked != nil {
		<-p.ticked
	}
	close(p.queue)
	p.wg.Wait()
}

func (p *StatePublisher) PublishAll() {
	for _, rc := range p.model.RoomConfigs() {
		p.Enqueue(rc.Name)
	}
}

func (p *StatePublisher) Enqueue(room string) {
	p.queue <- room
}

func (p *StatePublisher) worker(jobs <-chan string) {
	for room := range jobs {
		p.publish(room)
	}
}

func (p *StatePublisher) publish(room string) {
	client := p.client()
	if client == nil || !client.IsConnected() {
		Logger.Debug().Str("room", room).Msg("mqtt not connected, skipping publish")
		return
	}
	found := p.model.Announce(room, func(snap RoomSnapshot, topic string) {
		if topic == "" {
			Logger.Debug().Str("room", room).Msg("no state topic, skipping publish")
			return
		}
		if err := PublishJSON(client, topic, snap); err != nil {
			Logger.Warn().Err(err).Str("room", room).Msg("unable to publish state")
		}
	})
	if !found {
		Logger.Debug().Str("room", room).Msg("room no longer configured, skipping publish")
	}
}
