package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/o4o-platform/signage-agent/internal/services"
	"github.com/o4o-platform/signage-agent/internal/sysinfo"
	"github.com/o4o-platform/signage-agent/internal/utils"
	"github.com/o4o-platform/signage-agent/pkg/corehttp"
	"github.com/o4o-platform/signage-agent/pkg/file"
	"github.com/o4o-platform/signage-agent/pkg/identity"
	"github.com/o4o-platform/signage-agent/pkg/socket"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the agent configuration file")
	identityPath := flag.String("identity", "configs/device.json", "path to the device identity file")
	flag.Parse()

	// Structured JSON logging to stdout
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	fileClient := file.NewFileService()

	config, err := utils.LoadConfig(*configPath, fileClient, utils.Overrides{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		log.Warn().Str("level", config.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	log = log.Level(level)

	deviceInfo := identity.NewDeviceInfo(*identityPath, fileClient)
	if err := deviceInfo.LoadDeviceInfo(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load device identity")
	}

	httpClient := corehttp.NewClient(config.CoreServerURL, config.ConnectionTimeout, log)
	socketClient := socket.NewClient(config.CoreServerWSURL, config.ConnectionTimeout,
		config.ReconnectInterval, config.MaxReconnectAttempts, log)

	registrar := services.NewRegistrarService(config, deviceInfo, log)
	player := services.NewPlayerService(log)
	actions := services.NewActionService(player, registrar, config.ActionTimeout, config.ActionRetention, log)

	var collector *sysinfo.Collector
	if config.SystemStats {
		collector = sysinfo.NewCollector(log)
	}
	heartbeat := services.NewHeartbeatService(config.HeartbeatInterval, registrar, collector, log)

	bootstrap := services.NewBootstrapService(config, registrar, player, actions, heartbeat,
		socketClient, httpClient, log)
	bootstrap.SetErrorCallback(func(err error) {
		log.Error().Err(err).Msg("Agent reported an error")
	})

	if err := bootstrap.Start(); err != nil {
		log.Error().Err(err).Msg("Agent failed to start")
		os.Exit(1)
	}

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	bootstrap.Stop()
}
