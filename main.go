package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	. "github.com/elijahnyp/thermostat_controller/util"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "thermostat_controller",
	Short: "MQTT and HTTP front end for per-room thermostats",
	Long: `thermostat_controller keeps one thermostat per configured room,
accepts commands on MQTT command topics and over HTTP, and publishes
each room's temperature setpoint and mode to its state topic.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx)
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("thermostat_controller version {{.Version}}\n")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default searches ./, ./config, /etc)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	if err := Config.BindPFlag("log_level", rootCmd.Flags().Lookup("log-level")); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	LogInit(logLevel)
	SetupConfig(configPath)
	RegisterNewConfigListener(func() { LogInit(Config.GetString("log_level")) })
	RegisterNewConfigListener(func() {
		if err := model.BuildModel(); err != nil {
			Logger.Error().Msgf("Error building model: %v", err)
		}
	})
	RegisterNewConfigListener(subscribeCommandTopics)
	RegisterMQTTConnectHook("haadvertise", func(client MQTT.Client) {
		if Config.GetBool("ha_discovery") {
			AdvertiseHA(model.RoomConfigs(), client)
		}
	})
	RegisterMQTTConnectHook("publishstate", publishAllStates)
	OnNewConfig()

	// nothing to control, so don't hold a broker connection open
	if len(model.RoomConfigs()) == 0 {
		return fmt.Errorf("no rooms configured under model.rooms")
	}
	RegisterNewConfigListener(MqttInit)
	MqttInit()

	monitor := NewMonitorServer()
	registerHandlers(monitor)
	if err := monitor.Start(); err != nil {
		return fmt.Errorf("starting monitor server: %w", err)
	}
	RegisterNewConfigListener(func() { monitor.Restart() })

	publisher := NewStatePublisher(&model, func() MQTT.Client { return Client })
	publisher.Start(ctx)

	Logger.Info().Int("rooms", len(model.RoomConfigs())).Msg("ready")
	<-ctx.Done()
	Logger.Info().Msg("shutting down")

	publisher.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := monitor.Shutdown(shutdownCtx); err != nil {
		Logger.Warn().Err(err).Msg("Error shutting down monitor server")
	}
	if Client != nil && Client.IsConnected() {
		Client.Publish(OnlineTopic(), 0, true, "offline").WaitTimeout(time.Second)
		Client.Disconnect(250)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
