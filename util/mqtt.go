package util

import (
	"encoding/json"
	"fmt"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

var Client MQTT.Client

var subscriptions map[string]MQTT.MessageHandler

var connectHandlers map[string]func(MQTT.Client)

var connectHandler MQTT.OnConnectHandler = func(client MQTT.Client) {
	Logger.Info().Msg("Connected")
	subscribe(client)
	client.Publish(OnlineTopic(), 0, true, "online").Wait()
	if connectHandlers == nil {
		connectHandlers = make(map[string]func(client MQTT.Client))
	}
	for _, handler := range connectHandlers {
		handler(client)
	}
}

func RegisterMQTTConnectHook(name string, handler func(MQTT.Client)) {
	if connectHandlers == nil {
		connectHandlers = make(map[string]func(client MQTT.Client))
	}
	if handler == nil {
		delete(connectHandlers, name)
	} else {
		connectHandlers[name] = handler
	}
}

func subscribe(client MQTT.Client) {
	if subscriptions == nil {
		subscriptions = make(map[string]MQTT.MessageHandler)
	}
	for topic, handler := range subscriptions {
		if token := client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
			Logger.Error().Err(token.Error()).Str("topic", topic).Msg("Error Subscribing")
		}
	}
}

// ClearMQTTSubscriptions drops every registered handler. Topics already
// subscribed on a live connection are unsubscribed as well.
func ClearMQTTSubscriptions() {
	if Client != nil && Client.IsConnected() {
		topics := make([]string, 0, len(subscriptions))
		for topic := range subscriptions {
			topics = append(topics, topic)
		}
		if len(topics) > 0 {
			if token := Client.Unsubscribe(topics...); token.Wait() && token.Error() != nil {
				Logger.Warn().Err(token.Error()).Msg("Error unsubscribing")
			}
		}
	}
	subscriptions = make(map[string]MQTT.MessageHandler)
}

func RegisterMQTTSubscription(topic string, handler MQTT.MessageHandler) {
	if subscriptions == nil {
		subscriptions = make(map[string]MQTT.MessageHandler)
	}
	if handler == nil {
		delete(subscriptions, topic)
	} else {
		subscriptions[topic] = handler
	}
}

func receiver(client MQTT.Client, message MQTT.Message) {
	Logger.Warn().Msgf("Received message on %v but no handler", message.Topic())
}

var connectLostHandler MQTT.ConnectionLostHandler = func(client MQTT.Client, err error) {
	Logger.Info().Msgf("Connect lost: %v", err)
}

// PublishJSON publishes v as a retained message.
func PublishJSON(client MQTT.Client, topic string, v any) error {
	if client == nil {
		return fmt.Errorf("no mqtt client")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling payload for %s: %w", topic, err)
	}
	if token := client.Publish(topic, 0, true, data); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

func MqttInit() {
	opts := MQTT.NewClientOptions()
	opts.AddBroker(Config.GetString("broker_uri"))
	opts.SetClientID(Config.GetString("id_base") + "_" + GetRandString(6))
	opts.SetUsername(Config.GetString("username"))
	opts.SetPassword(Config.GetString("password"))
	opts.SetCleanSession(Config.GetBool("cleansess"))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetWill(OnlineTopic(), "offline", 0, true)
	opts.OnConnectionLost = connectLostHandler
	opts.OnConnect = connectHandler
	opts.SetDefaultPublishHandler(receiver)

	if Client != nil {
		Logger.Debug().Msg("Client exists - destroying")
		if Client.IsConnected() {
			Client.Disconnect(1000)
		}
		Client = nil
	}

	Client = MQTT.NewClient(opts)

	// with connect retry the token only completes once the broker answers
	token := Client.Connect()
	if !token.WaitTimeout(time.Duration(Config.GetInt("connect_timeout")) * time.Second) {
		Logger.Warn().Msgf("broker %s not reachable yet, retrying in background", Config.GetString("broker_uri"))
	} else if token.Error() != nil {
		Logger.Error().Err(token.Error()).Msg("Error connecting to broker")
	}
}
