package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/snarg/ta-engine/internal/acquire"
	"github.com/snarg/ta-engine/internal/api"
	"github.com/snarg/ta-engine/internal/archive"
	"github.com/snarg/ta-engine/internal/config"
	"github.com/snarg/ta-engine/internal/ingest"
	"github.com/snarg/ta-engine/internal/innertube"
	"github.com/snarg/ta-engine/internal/metrics"
	"github.com/snarg/ta-engine/internal/mqttclient"
	"github.com/snarg/ta-engine/internal/store"
)

var version = "dev"

// queueView adapts the worker pool to the metrics collector.
type queueView struct{ pool *acquire.WorkerPool }

func (q queueView) Pending() int     { return q.pool.Stats().Pending }
func (q queueView) Completed() int64 { return q.pool.Stats().Completed }
func (q queueView) Failed() int64    { return q.pool.Stats().Failed }

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "http listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (trace..error)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "postgres url for the transcript cache")
	flag.StringVar(&overrides.MQTTBrokerURL, "mqtt-broker", "", "mqtt broker url")
	flag.Parse()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("ta-engine starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Transcript cache (optional)
	var db *store.DB
	if cfg.DatabaseURL != "" {
		dbLog := log.With().Str("component", "store").Logger()
		db, err = store.Connect(ctx, cfg.DatabaseURL, dbLog)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to transcript store")
		}
		defer db.Close()
	} else {
		log.Info().Msg("DATABASE_URL not set, transcript cache disabled")
	}

	// Result archive
	arcLog := log.With().Str("component", "archive").Logger()
	arc, err := archive.New(cfg.S3, cfg.ArchiveDir, arcLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init result archive")
	}
	log.Info().Str("type", arc.Type()).Msg("result archive ready")

	// Sources, in fixed precedence
	primary := acquire.NewPrimaryClient(cfg.PrimaryBaseURL, cfg.PrimaryAPIKey, cfg.PrimaryTimeout,
		log.With().Str("component", "primary").Logger())
	scraper := acquire.NewInnertubeSource(innertube.NewClient(innertube.Options{
		Timeout:           cfg.InnertubeTimeout,
		UserAgent:         cfg.InnertubeUserAgent,
		RequireLanguage:   cfg.InnertubeRequireLanguage,
		RequestsPerMinute: cfg.InnertubeRPM,
		Log:               log.With().Str("component", "innertube").Logger(),
	}))
	speech := acquire.NewSpeechClient(cfg.SpeechGatewayURL, cfg.SpeechAPIKey, cfg.SpeechModel, cfg.SpeechTimeout,
		log.With().Str("component", "speech").Logger())

	orch := acquire.NewOrchestrator(primary, scraper, speech,
		log.With().Str("component", "acquire").Logger())

	// MQTT (optional)
	var mqtt *mqttclient.Client
	if cfg.MQTTBrokerURL != "" {
		mqttLog := log.With().Str("component", "mqtt").Logger()
		mqtt, err = mqttclient.Connect(mqttclient.Options{
			BrokerURL:    cfg.MQTTBrokerURL,
			ClientID:     cfg.MQTTClientID,
			RequestTopic: cfg.MQTTRequestTopic,
			Username:     cfg.MQTTUsername,
			Password:     cfg.MQTTPassword,
			Log:          mqttLog,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
	}

	// Worker pool: background acquisitions persist, archive and publish.
	poolLog := log.With().Str("component", "pool").Logger()
	pool := acquire.NewWorkerPool(acquire.WorkerPoolOptions{
		Orchestrator: orch,
		Workers:      cfg.Workers,
		QueueSize:    cfg.QueueSize,
		Log:          poolLog,
		OnResult: func(ctx context.Context, job acquire.Job, res acquire.Result) {
			videoID := acquire.VideoID(job.VideoRef)

			if res.Success && db != nil {
				row := store.TranscriptRow{
					VideoID:   videoID,
					Language:  job.Language,
					Source:    res.Source,
					Text:      res.Text,
					Segments:  res.Segments,
					ElapsedMS: int(res.ElapsedSeconds * 1000),
				}
				if err := db.SaveTranscript(ctx, row); err != nil {
					poolLog.Error().Err(err).Str("video", videoID).Msg("cache save failed")
				}
			}

			doc, err := json.Marshal(res)
			if err != nil {
				poolLog.Error().Err(err).Str("video", videoID).Msg("marshal result failed")
				return
			}
			if err := arc.Save(ctx, archive.ResultKey(videoID, job.Language), doc, "application/json"); err != nil {
				poolLog.Error().Err(err).Str("video", videoID).Msg("archive save failed")
			}
			if mqtt != nil {
				if err := mqtt.Publish(cfg.MQTTResultTopic+"/"+videoID, doc); err != nil {
					poolLog.Warn().Err(err).Str("video", videoID).Msg("result publish failed")
				}
			}
		},
	})
	pool.Start()

	// Scrape-time gauges for the queue and the cache pool.
	var dbPool *pgxpool.Pool
	if db != nil {
		dbPool = db.Pool
	}
	prometheus.MustRegister(metrics.NewCollector(dbPool, queueView{pool}))

	if mqtt != nil {
		listener := ingest.NewListener(pool, cfg.DefaultLanguage,
			log.With().Str("component", "ingest").Logger())
		mqtt.SetMessageHandler(listener.Handle)
	}

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, orch, pool, db, mqtt, version, startTime, httpLog)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	// Producers go first: once ingest is disconnected the pool can drain
	// without new jobs racing the queue close.
	if mqtt != nil {
		mqtt.Close()
	}
	pool.Stop()

	log.Info().Msg("ta-engine stopped")
}
