package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/ryu-qqq/awskit/sqslistener"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// optional local overrides; absence is fine
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "sqs-listener",
		Usage: "Consume AWS SQS messages with a bounded worker pool",
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "Start the listener container",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "queue-url",
						Usage:    "AWS SQS queue URL",
						Required: true,
						EnvVars:  []string{"SQS_QUEUE_URL"},
					},
					&cli.StringFlag{
						Name:     "dead-letter-url",
						Usage:    "AWS SQS dead-letter queue URL",
						Required: true,
						EnvVars:  []string{"SQS_DEAD_LETTER_URL"},
					},
					&cli.IntFlag{
						Name:    "concurrency",
						Usage:   "Number of concurrent message handlers",
						Value:   10,
						EnvVars: []string{"LISTENER_CONCURRENCY"},
					},
					&cli.IntFlag{
						Name:    "max-retries",
						Usage:   "Retry budget before dead-lettering",
						Value:   3,
						EnvVars: []string{"LISTENER_MAX_RETRIES"},
					},
					&cli.StringFlag{
						Name:    "executor",
						Usage:   "Execution model (platform, lightweight, auto)",
						Value:   "auto",
						EnvVars: []string{"LISTENER_EXECUTOR"},
					},
					&cli.StringFlag{
						Name:    "dedup",
						Usage:   "Deduplication store (none, memory, postgres)",
						Value:   "none",
						EnvVars: []string{"DEDUP_TYPE"},
					},
					&cli.StringFlag{
						Name:    "db-url",
						Usage:   "Database connection URL for the postgres deduplication store",
						EnvVars: []string{"DATABASE_URL"},
					},
					&cli.StringFlag{
						Name:    "log-level",
						Usage:   "Log level (debug, info, warn, error)",
						Value:   "info",
						EnvVars: []string{"LOG_LEVEL"},
					},
				},
				Action: startListener,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("Application failed")
	}
}

func startListener(c *cli.Context) error {
	switch c.String("log-level") {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	cfg := sqslistener.Config{
		QueueURL:         c.String("queue-url"),
		DeadLetterTarget: c.String("dead-letter-url"),
		Concurrency:      c.Int("concurrency"),
		MaxRetries:       c.Int("max-retries"),
		Executor:         sqslistener.ExecutorType(c.String("executor")),
	}

	var opts []sqslistener.Option
	switch c.String("dedup") {
	case "none":
	case "memory":
		opts = append(opts, sqslistener.WithDeduplicationStore(sqslistener.NewInMemoryDeduplicationStore()))
	case "postgres":
		db, err := sql.Open("postgres", c.String("db-url"))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		opts = append(opts, sqslistener.WithDeduplicationStore(sqslistener.NewPostgresDeduplicationStore(db)))
	default:
		return fmt.Errorf("invalid dedup store: %s", c.String("dedup"))
	}

	transport := sqslistener.NewSQSTransport(sqs.NewFromConfig(awsCfg), cfg.QueueURL, 30*time.Second)

	container, err := sqslistener.NewListenerContainer("default", cfg, transport, handleMessage, opts...)
	if err != nil {
		return fmt.Errorf("failed to create listener container: %w", err)
	}
	if err := container.Start(); err != nil {
		return fmt.Errorf("failed to start listener container: %w", err)
	}

	// report metrics periodically until shutdown
	statsDone := make(chan struct{})
	go reportMetrics(container, statsDone)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down...")
	close(statsDone)
	if err := container.Stop(30 * time.Second); err != nil {
		log.Warn().Err(err).Msg("Shutdown incomplete")
	}
	return nil
}

func handleMessage(_ context.Context, msg sqslistener.Message) error {
	log.Info().
		Str("message_id", msg.ID).
		Int("receive_count", msg.ReceiveCount).
		Msg("Received message")
	return nil
}

func reportMetrics(container *sqslistener.ListenerContainer, done <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s := container.MetricsSnapshot()
			log.Info().
				Int64("processed", s.Processed).
				Int64("failed", s.Failed).
				Int64("dead_lettered", s.DeadLettered).
				Dur("avg_duration", s.AvgDuration).
				Str("state", s.State.String()).
				Msg("Listener metrics")
		case <-done:
			return
		}
	}
}
