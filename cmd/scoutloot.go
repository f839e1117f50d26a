package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v9"
	"github.com/robfig/cron/v3"

	"scoutloot/internal/client"
	"scoutloot/internal/configuration"
	"scoutloot/internal/database"
	"scoutloot/internal/logger"
	"scoutloot/internal/matcher"
	"scoutloot/internal/server"
)

func runApp() error {
	appContext := context.Background()
	logOutput := io.Writer(os.Stdout)
	appLogger := logger.NewLogger(logger.LevelInfo, logOutput)

	defer func() {
		if r := recover(); r != nil {
			appLogger.Errorf("APPLICATION CRASHED: %+v", r)
		}
	}()

	config, err := configuration.GetConfig("config.toml")
	if err != nil {
		appLogger.Error("Error getting configuration from config.toml:", err)
		return err
	}

	if config.LogToFile {
		logFile, err := os.OpenFile("scoutloot_backend.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			appLogger.Error("Error opening log file:", err)
			return err
		}
		defer func() {
			if err := logFile.Close(); err != nil {
				appLogger.Error("Error closing log file:", err)
			}
		}()
		logOutput = io.MultiWriter(logOutput, logFile)
	}
	appLogger = logger.NewLogger(config.LogLevel, logOutput)

	if config.LogLevel >= logger.LevelDebug {
		conf, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			appLogger.Error("Error marshalling Config to JSON:", err)
			return err
		}
		appLogger.Debugf("Config:\n%s", conf)
	}

	appLogger.Info("Connecting to DB at", config.DatabaseURI)
	dbConn, err := database.ConnectDB(appContext, config.DatabaseURI, config.SuppressionWindow)
	if err != nil {
		appLogger.Error("Error connecting to DB:", err)
		return err
	}
	defer func() {
		if err := dbConn.Disconnect(appContext); err != nil {
			appLogger.Error("Error disconnecting from DB:", err)
		}
	}()

	apiClient := client.Client{
		Client:       &http.Client{Timeout: 15 * time.Second},
		Redis:        redis.NewClient(&redis.Options{Addr: config.RedisAddress}),
		RatesAPIURL:  config.RatesAPIURL,
		RateCacheTTL: config.RateCacheTTL,
		TransportURL: config.TransportURL,
		TransportKey: config.TransportKey,
		Logger:       appLogger,
	}

	srv := server.Server{
		DB:            database.Database{Database: dbConn.Database(database.Name)},
		Client:        apiClient,
		Evaluator:     matcher.Evaluator{Rate: apiClient.Rate, Logger: appLogger},
		Logger:        appLogger,
		AuthSecretKey: config.AuthSecretKey,
		IngestKey:     config.IngestKey,
		SiteURL:       config.SiteURL,

		TokenValidity:             config.TokenValidity,
		ReminderDelay:             config.ReminderDelay,
		ReminderDiscountThreshold: config.ReminderDiscountThreshold,
		PruneRetention:            config.PruneRetention,
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(config.SweepCron, func() {
		srv.StillAvailableSweep(appContext)
		srv.PruneSweep(appContext)
	}); err != nil {
		appLogger.Error("Error scheduling sweep cron:", err)
		return err
	}
	if _, err := scheduler.AddFunc(config.DigestCron, func() {
		srv.DigestSweep(appContext)
	}); err != nil {
		appLogger.Error("Error scheduling digest cron:", err)
		return err
	}
	appLogger.Info("Starting scheduler, sweep:", config.SweepCron, "digest:", config.DigestCron)
	scheduler.Start()
	defer scheduler.Stop()

	httpSrv := &http.Server{
		Handler:      srv.Router(),
		Addr:         config.ServerAddress,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	appLogger.Info("Serving on", httpSrv.Addr)
	if err := httpSrv.ListenAndServe(); err != nil {
		appLogger.Error("Server stopped:", err)
		return err
	}
	return nil
}
