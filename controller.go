package main

import (
	"errors"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/elijahnyp/thermostat_controller/state"
	. "github.com/elijahnyp/thermostat_controller/util"
)

var model Model

func subscribeCommandTopics() {
	ClearMQTTSubscriptions()
	for _, topic := range model.SubscribeTopics() {
		RegisterMQTTSubscription(topic, commandReceiver)
	}
	if Client != nil && Client.IsConnected() {
		for _, topic := range model.SubscribeTopics() {
			if token := Client.Subscribe(topic, 1, commandReceiver); token.Wait() && token.Error() != nil {
				Logger.Error().Err(token.Error()).Str("topic", topic).Msg("Error Subscribing")
			}
		}
	}
}

func commandReceiver(client MQTT.Client, message MQTT.Message) {
	Logger.Debug().Msgf("Message Received on topic %s", message.Topic())
	room := model.FindRoomByTopic(message.Topic())
	if room == "" {
		Logger.Debug().Msgf("topic %s not found in model.  Fix subscription or add to model", message.Topic())
		return
	}
	cmd, err := ParseCommand(message.Payload())
	if err != nil {
		Logger.Warn().Err(err).Str("room", room).Msgf("ignoring command %q", string(message.Payload()))
		return
	}
	snap, err := ExecuteCommand(client, room, cmd)
	if err != nil {
		Logger.Warn().Err(err).Str("room", room).Str("action", cmd.Action).Msg("command rejected")
		return
	}
	Logger.Info().Str("room", room).Str("action", cmd.Action).Int("temperature", snap.Temperature).Stringer("mode", snap.Mode).Msg("command applied")
}

// ExecuteCommand applies cmd to room and announces the resulting state.
// A rejected command still announces the unchanged state so subscribers
// that optimistically updated can resync.
func ExecuteCommand(client MQTT.Client, room string, cmd Command) (RoomSnapshot, error) {
	return model.ApplyAndAnnounce(room, cmd, stateAnnouncer(client))
}

// stateAnnouncer runs under the model lock, so it must not touch model.
func stateAnnouncer(client MQTT.Client) Announcer {
	return func(snap RoomSnapshot, topic string) {
		wsHub.BroadcastUpdate("room_state", snap)
		if client == nil || !client.IsConnected() || topic == "" {
			return
		}
		if err := PublishJSON(client, topic, snap); err != nil {
			Logger.Error().Err(err).Str("room", snap.Room).Msg("Error publishing state")
		}
	}
}

func publishAllStates(client MQTT.Client) {
	announce := stateAnnouncer(client)
	for _, rc := range model.RoomConfigs() {
		model.Announce(rc.Name, announce)
	}
}

func isOutOfRange(err error) bool {
	return errors.Is(err, state.ErrOutOfRange)
}
