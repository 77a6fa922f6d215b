package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"farmops/internal/clock"
	"farmops/internal/config"
	"farmops/internal/repository"
	"farmops/internal/service"
	"farmops/internal/web"
)

func main() {
	configFile := flag.String("config", "", "optional config file path")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("config")
	}

	log := newLogger(cfg)

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	clk := clock.RealClock{}

	templateRepo := repository.NewTemplateRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	changeRepo := repository.NewChangeRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	trainingRepo := repository.NewTrainingRepository(db)
	equipmentRepo := repository.NewEquipmentRepository(db)

	notifier := service.NewNotifier(notificationRepo, log)
	generator := service.NewInstanceGenerator(taskRepo, log)
	engine := service.NewPropagationEngine(db, taskRepo, changeRepo, notifier, clk, log)
	templateSvc := service.NewTemplateService(db, templateRepo, taskRepo, engine, generator, clk, log)
	detector := service.NewChangeDetector(taskRepo, clk)
	taskSvc := service.NewTaskService(taskRepo, templateRepo, clk, log)
	resolution := service.NewResolutionHandler(db, taskRepo, templateRepo, changeRepo, userRepo, notifier, clk, log)
	changeFeed := service.NewChangeFeed(changeRepo)
	inventorySvc := service.NewInventoryService(db, inventoryRepo, userRepo, notifier, log)
	trainingSvc := service.NewTrainingService(trainingRepo, userRepo, clk, log)
	equipmentSvc := service.NewEquipmentService(equipmentRepo, clk, log)
	dashboardSvc := service.NewDashboardService(taskRepo, inventorySvc, trainingSvc, equipmentRepo, clk, log)

	server := web.NewServer(web.Deps{
		Templates:  templateSvc,
		Tasks:      taskSvc,
		Detector:   detector,
		Resolution: resolution,
		Changes:    changeFeed,
		Inventory:  inventorySvc,
		Training:   trainingSvc,
		Equipment:  equipmentSvc,
		Dashboard:  dashboardSvc,
		Notifier:   notifier,
	}, log)

	if cfg.GenerateInterval > 0 || cfg.LowStockAlertTime != "" {
		scheduler := service.NewSchedulerService(time.Local, log)
		if cfg.GenerateInterval > 0 {
			if _, err := scheduler.ScheduleGeneration(templateSvc, cfg.GenerateHorizonDays, cfg.GenerateInterval); err != nil {
				log.Fatal().Err(err).Msg("schedule generation")
			}
		}
		if cfg.LowStockAlertTime != "" {
			if _, err := scheduler.ScheduleDaily(cfg.LowStockAlertTime, func() {
				sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				if n, err := inventorySvc.SweepLowStock(sweepCtx); err != nil {
					log.Error().Err(err).Msg("low stock sweep failed")
				} else if n > 0 {
					log.Info().Int("items", n).Msg("low stock sweep")
				}
			}); err != nil {
				log.Fatal().Err(err).Msg("schedule low stock sweep")
			}
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Addr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("server stopped with error")
		}
	}
	log.Info().Msg("shutdown complete")
}

// newLogger builds the process logger: console output, plus a rotating
// file when log_file is configured.
func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if cfg.LogFile != "" {
		w = zerolog.MultiLevelWriter(w, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
