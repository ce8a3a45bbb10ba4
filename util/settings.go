package util

import (
	"crypto/rand"
	"reflect"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "THERMOSTAT"

const CONFIG_NAME = "thermostat_controller"

var Config = viper.New()

var config_listeners []func()

func RegisterNewConfigListener(new_listener func()) {
	for _, listener := range config_listeners {
		if reflect.ValueOf(new_listener).Pointer() == reflect.ValueOf(listener).Pointer() {
			Logger.Warn().Msg("config listener already registered")
			return
		}
	}
	config_listeners = append(config_listeners, new_listener)
}

func OnNewConfig() {
	for _, listener := range config_listeners {
		listener()
	}
}

func GetRandString(n int) string {
	const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, n)
	for i := range b {
		randBytes := make([]byte, 1)
		if _, err := rand.Read(randBytes); err != nil {
			b[i] = letterBytes[i%len(letterBytes)]
		} else {
			b[i] = letterBytes[int(randBytes[0])%len(letterBytes)]
		}
	}
	return string(b)
}

func setDefaults() {
	Config.SetDefault("Broker_URI", "tcp://mqtt:1883")
	Config.SetDefault("Cleansess", false)
	Config.SetDefault("Connect_timeout", 5)
	Config.SetDefault("Id_base", "thermostat_controller")
	Config.SetDefault("Username", "")
	Config.SetDefault("Password", "")
	Config.SetDefault("Log_level", "info")
	Config.SetDefault("Details_port", 8080)
	Config.SetDefault("Topic_prefix", "thermostat")
	Config.SetDefault("Publish_frequency", 60)
	Config.SetDefault("Publish_workers", 2)
	Config.SetDefault("Ha_discovery", true)
}

// SetupConfig loads defaults, the config file (if any) and the environment.
// An explicit path takes precedence over the search path.
func SetupConfig(path string) {
	Config.SetEnvPrefix(ENV_PREFIX)
	setDefaults()

	if path != "" {
		Config.SetConfigFile(path)
	} else {
		Config.SetConfigName(CONFIG_NAME)
		Config.AddConfigPath("./")
		Config.AddConfigPath("./config")
		Config.AddConfigPath("/etc")
		Config.AddConfigPath("/etc/" + CONFIG_NAME)
		Config.AddConfigPath("/" + CONFIG_NAME)
	}

	if err := Config.ReadInConfig(); err != nil {
		Logger.Error().Err(err).Msg("unable to read config file")
	} else {
		Config.WatchConfig()
		Config.OnConfigChange(func(e fsnotify.Event) {
			Logger.Info().Msgf("Config file changed: %v", e.Name)
			Logger.Debug().Msgf("Config Additional Info: %v", e.String())
			OnNewConfig()
		})
	}

	Config.AutomaticEnv()
}

// TopicPrefix is the root under which availability messages are published.
func TopicPrefix() string {
	return Config.GetString("topic_prefix")
}

func OnlineTopic() string {
	return TopicPrefix() + "/online"
}
