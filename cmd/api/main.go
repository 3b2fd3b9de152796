package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	adactor "github.com/qinweixian/yunmi-water-heater/internal/adapter/actor"
	adminio "github.com/qinweixian/yunmi-water-heater/internal/adapter/miio"
	"github.com/qinweixian/yunmi-water-heater/internal/config"
	"github.com/qinweixian/yunmi-water-heater/internal/core/actor"
	"github.com/qinweixian/yunmi-water-heater/internal/core/domain"
	"github.com/qinweixian/yunmi-water-heater/internal/core/port"
	"github.com/qinweixian/yunmi-water-heater/internal/core/service"
	"github.com/qinweixian/yunmi-water-heater/internal/metrics"
	"github.com/qinweixian/yunmi-water-heater/internal/repository"
	"github.com/qinweixian/yunmi-water-heater/internal/repository/db"
	"github.com/qinweixian/yunmi-water-heater/internal/server"
	"github.com/qinweixian/yunmi-water-heater/internal/util/actorutil"
	"github.com/qinweixian/yunmi-water-heater/pkg/miio"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// in-flight requests get 5 seconds
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")
	done <- true
}

func main() {

	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	sender, err := newSender(cfg, logger, m)
	if err != nil {
		logger.Fatal("water heater unavailable", zap.Error(fmt.Errorf("%w: %w", domain.ErrNotReady, err)))
	}
	defer sender.Close()
	transport := adminio.NewTransport(sender)
	translator := service.NewStateTranslator(transport, cfg.Device.Name, logger)

	var journal port.CommandJournal
	if cfg.Journal.Enabled() {
		conn, err := db.InitDB(cfg.Journal.Path)
		if err != nil {
			logger.Fatal("command journal unavailable", zap.String("path", cfg.Journal.Path), zap.Error(err))
		}
		defer conn.Close()
		journal = repository.NewJournalSQLite(conn)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg,
			waterHeaterActorProvider(cfg, translator, transport, journal, m, logger),
			mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		logger.Error("cannot spawn master actor", zap.Error(err))
		return
	}

	apiServer := server.NewServer(*cfg, ctx, pid, journal, reg)
	done := make(chan bool, 1)

	go gracefulShutdown(apiServer, done)

	err = apiServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func newSender(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (miio.Sender, error) {
	if cfg.Device.Simulate {
		logger.Warn("device.simulate set, using the in-memory water heater")
		return miio.NewTestDevice(), nil
	}
	return miio.NewDevice(cfg.Device.Host, cfg.Device.Token, cfg.Device.Timeout(), logger, m.Instrument())
}

func initConfig() (*config.Config, error) {

	// alias PORT => YUNMI_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("YUNMI_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("yunmi")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.LogLevel = config.ParseLogLevel(viper.GetString("log_level"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func waterHeaterActorProvider(cfg *config.Config, translator *service.StateTranslator, identity port.DeviceIdentity,
	journal port.CommandJournal, m *metrics.Metrics, logger *zap.Logger) actor.WaterHeaterActorProvider {
	return func(stream *eventstream.EventStream) *actor.WaterHeaterActor {
		return actor.NewWaterHeaterActor(cfg, translator, identity, journal, m, stream, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(stream *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, stream, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("device.host", "")
	viper.SetDefault("device.token", "")
	viper.SetDefault("device.name", domain.DEFAULT_WATER_HEATER_NAME)
	viper.SetDefault("device.model", domain.DEFAULT_WATER_HEATER_MODEL)
	viper.SetDefault("device.simulate", false)
	viper.SetDefault("device.timeout_millis", 3000)
	viper.SetDefault("device.refresh_delay_millis", 1000)
	viper.SetDefault("monitor.poll_interval_millis", 30000)
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "yunmi")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("journal.path", "")
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.Device.Token = redactToken(cfg.Device.Token)
	slog.Info("Using", "config", cfg)
}

func redactToken(token string) string {
	if len(token) <= 5 {
		return "*redacted*"
	}
	return token[:5] + "..."
}
