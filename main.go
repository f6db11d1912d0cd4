package main

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/pccr10001/daqring/internal/acquisition"
	"github.com/pccr10001/daqring/internal/api"
	"github.com/pccr10001/daqring/internal/auth"
	"github.com/pccr10001/daqring/internal/config"
	"github.com/pccr10001/daqring/internal/logic"
	"github.com/pccr10001/daqring/internal/metrics"
	"github.com/pccr10001/daqring/internal/model"
	"github.com/pccr10001/daqring/internal/repository"
	"github.com/pccr10001/daqring/pkg/logger"
	"github.com/pccr10001/daqring/pkg/ringchan"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Config
	config.LoadConfig()
	cfg := config.AppConfig

	// 2. Init Logger
	logger.InitLogger(cfg.Log.Level)
	logger.Log.Info("Starting acquisition server...")

	auth.Configure(cfg.Auth.JWTSecret, config.Duration(cfg.Auth.TokenTTL, 24*time.Hour))

	// 3. Init Database
	db := initDB()

	// 4. Metrics and event fan-out
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bufMetrics, err := metrics.NewBufferMetrics(registry)
	if err != nil {
		logger.Log.Fatalf("Failed to register metrics: %v", err)
	}
	hub := api.NewEventHub()

	segRepo := repository.NewSegmentRepository(db)
	webhooks := logic.NewWebhookService(repository.NewWebhookRepository(db),
		cfg.Webhook.Workers, config.Duration(cfg.Webhook.Timeout, 10*time.Second))

	// 5. Acquisition pipeline
	acqCfg, err := acquisitionConfig(cfg)
	if err != nil {
		logger.Log.Fatalf("Invalid acquisition config: %v", err)
	}
	pipeline := acquisition.NewPipeline(acqCfg, acquisition.PipelineOptions{
		Listener: func(ev ringchan.Event) {
			bufMetrics.Observe(ev)
			hub.Publish(ev)
		},
		OnSegment: func(seg *model.Segment) {
			if err := segRepo.Create(seg); err != nil {
				logger.Log.Errorf("Failed to save segment %s/%d: %v", seg.Device, seg.Sequence, err)
			}
			bufMetrics.ObserveSegment(seg)
			hub.PublishSegment(seg)
			webhooks.Dispatch(seg)
		},
		Logger: logger.Named("pipeline"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	am := acquisition.NewManager(acqCfg, pipeline, repository.NewDeviceRepository(db), segRepo, logger.Named("acquisition"))
	am.Start(ctx)

	// 6. Start Server
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := api.NewRouter(api.Deps{DB: db, Pipeline: pipeline, Hub: hub, Gatherer: registry})

	srv := &http.Server{Addr: cfg.Server.Port, Handler: r}
	go func() {
		logger.Log.Infof("Server listening on %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warnf("HTTP shutdown: %v", err)
	}

	am.Stop()
	pipeline.Close()
	hub.Close()
	webhooks.Wait()
	_ = logger.Log.Sync()
}

func acquisitionConfig(c config.Config) (acquisition.Config, error) {
	enc, err := acquisition.ParseEncoding(c.Audio.Encoding)
	if err != nil {
		return acquisition.Config{}, err
	}
	return acquisition.Config{
		Source: acquisition.SourceConfig{
			Type:          c.Source.Type,
			Port:          c.Source.Port,
			BaudRate:      c.Source.BaudRate,
			DeviceKeyword: c.Source.DeviceKeyword,
			VID:           c.Source.VID,
			PID:           c.Source.PID,
			ExcludePorts:  c.Source.ExcludePorts,
			RetryInterval: config.Duration(c.Source.RetryInterval, 3*time.Second),
		},
		Audio: acquisition.AudioConfig{
			SampleRate:     c.Audio.SampleRate,
			Channels:       c.Audio.Channels,
			BitsPerSample:  c.Audio.BitsPerSample,
			Encoding:       enc,
			CaptureChunkMs: c.Audio.CaptureChunkMs,
			DecodeChunkMs:  c.Audio.DecodeChunkMs,
		},
		Buffer: acquisition.BufferConfig{
			ByteCapacity:   c.Buffer.ByteCapacity,
			SampleCapacity: c.Buffer.SampleCapacity,
			MinSize:        c.Buffer.MinSize,
			NotifyQueue:    c.Buffer.NotifyQueue,
		},
		Recording: acquisition.RecordingConfig{
			Directory:      c.Recording.Directory,
			SegmentSeconds: c.Recording.SegmentSeconds,
			WriteWAV:       c.Recording.WriteWAV,
		},
	}, nil
}

func initDB() *gorm.DB {
	var db *gorm.DB
	var err error

	driver := config.AppConfig.Database.Driver
	dsn := config.AppConfig.Database.DSN

	switch driver {
	case "mysql":
		db, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	default:
		// Default to SQLite (pure Go)
		if dsn == "" {
			dsn = "daqring.db"
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	}

	if err != nil {
		logger.Log.Fatalf("Failed to connect database (%s): %v", driver, err)
	}

	if err := db.AutoMigrate(&model.User{}, &model.Device{}, &model.Segment{}, &model.Webhook{}); err != nil {
		logger.Log.Fatalf("Failed to migrate database: %v", err)
	}

	// Init Admin
	users := repository.NewUserRepository(db)
	count, err := users.Count()
	if err != nil {
		logger.Log.Fatalf("Failed to count users: %v", err)
	}
	if count == 0 {
		password := config.AppConfig.Users.DefaultAdminPassword
		generated := password == ""
		if generated {
			password = randomPassword(12)
		}

		hash, err := api.HashPassword(password)
		if err != nil {
			logger.Log.Fatalf("Failed to hash password: %v", err)
		}
		if err := users.Create(&model.User{Username: "admin", PasswordHash: hash, Role: model.RoleAdmin}); err != nil {
			logger.Log.Fatalf("Failed to create admin: %v", err)
		}
		if generated {
			logger.Log.Warnf("INITIAL ADMIN CREATED. Username: admin, Password: %s", password)
		} else {
			logger.Log.Warn("INITIAL ADMIN CREATED with the configured password")
		}
	}

	return db
}

func randomPassword(n int) string {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	ret := make([]byte, n)
	for i := range ret {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			logger.Log.Fatalf("Failed to generate random password: %v", err)
		}
		ret[i] = chars[num.Int64()]
	}
	return string(ret)
}
