package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/gautrainza/gautrain/planner"
	"github.com/gautrainza/gautrain/planner/gautrainapi"
	"github.com/gautrainza/gautrain/planner/schedule"
)

const (
	envVarScheduleFile    = "SCHEDULE_FILE"
	envVarScheduleVariant = "SCHEDULE_VARIANT"
	envVarStationsFile    = "STATIONS_FILE"
	envVarListenAddress   = "LISTEN_ADDRESS"
	envVarAPIBaseURL      = "API_BASE_URL"
	envVarDelayChecks     = "DELAY_CHECKS"
	envVarDelayTimeout    = "DELAY_TIMEOUT"
)

func main() {
	viper.SetEnvPrefix("GAUTRAIN")
	viper.BindEnv(envVarScheduleFile)
	viper.BindEnv(envVarScheduleVariant)
	viper.BindEnv(envVarStationsFile)
	viper.BindEnv(envVarListenAddress)
	viper.BindEnv(envVarAPIBaseURL)
	viper.BindEnv(envVarDelayChecks)
	viper.BindEnv(envVarDelayTimeout)
	viper.SetDefault(envVarScheduleFile, "data/gautrain_schedule.json")
	viper.SetDefault(envVarScheduleVariant, string(schedule.VariantStatic))
	viper.SetDefault(envVarListenAddress, ":10160")
	viper.SetDefault(envVarDelayTimeout, "3s")

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	directory := planner.NewDirectory()
	if path := viper.GetString(envVarStationsFile); path != "" {
		directory, err = planner.LoadDirectoryCSV(logger, path)
		if err != nil {
			logger.Fatal("error loading stations file",
				zap.String("path", path),
				zap.Error(err),
			)
		}
	}

	cache := schedule.NewCache(logger,
		schedule.Variant(viper.GetString(envVarScheduleVariant)),
		viper.GetString(envVarScheduleFile),
	)

	var engineOpts []planner.EngineOption
	var apiClient *gautrainapi.Client
	if viper.GetBool(envVarDelayChecks) {
		clientOpts := []gautrainapi.ClientOption{
			gautrainapi.WithTimeout(viper.GetDuration(envVarDelayTimeout)),
		}
		if baseURL := viper.GetString(envVarAPIBaseURL); baseURL != "" {
			clientOpts = append(clientOpts, gautrainapi.WithBaseURL(baseURL))
		}
		apiClient = gautrainapi.NewClient(logger, clientOpts...)
		engineOpts = append(engineOpts, planner.WithDelayChecker(apiClient))
	}

	engine := planner.NewEngine(logger, directory, cache, engineOpts...)

	var live LivenessProber
	if apiClient != nil {
		live = apiClient
	}
	srv := NewServer(logger, directory, engine, live)

	httpServer := &http.Server{
		Addr:    viper.GetString(envVarListenAddress),
		Handler: cors.Default().Handler(srv.Router()),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening",
			zap.String("address", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to serve",
				zap.Error(err),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error shutting down",
			zap.Error(err),
		)
	}
}
