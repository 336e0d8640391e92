package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"example.com/pixsoul/cmd/server"
	"example.com/pixsoul/cmd/worker"
	appkafka "example.com/pixsoul/internal/broker"
	config "example.com/pixsoul/internal/init"
	"example.com/pixsoul/internal/mailer"
	"example.com/pixsoul/internal/session"
	"example.com/pixsoul/internal/store"
	"example.com/pixsoul/internal/upload"
)

func main() {
	// Initialize application configuration
	cfg := config.Init()
	mode := cfg.Mode

	// Initialize PostgreSQL store (runs migrations)
	st, err := store.New()
	if err != nil {
		log.Fatalf("PostgreSQL connection failed: %v", err)
	}
	defer st.Close()

	// Configure Kafka client parameters
	kafkaCfg := appkafka.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		Partition:    cfg.KafkaPartition,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}

	// Setup OS signal handling for graceful shutdown (SIGINT, SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run application depending on selected mode
	switch mode {
	case "server":
		// Sessions and reset codes live in Redis
		sessions := session.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL, cfg.OTPTTL)
		defer sessions.Close()
		if err := sessions.Ping(ctx); err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}

		uploads, err := newUploadStore(cfg)
		if err != nil {
			log.Fatalf("Upload storage init failed: %v", err)
		}

		kafkaWriter, err := appkafka.NewKafkaWriter(kafkaCfg)
		if err != nil {
			log.Fatalf("Kafka writer init failed: %v", err)
		}
		defer kafkaWriter.Close()

		ml := mailer.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)

		s := server.New(st, sessions, ml, uploads, kafkaWriter, cfg)
		s.Run(ctx, cfg.ServerAddr)
	case "worker":
		// The worker consumes upload events and fans out notifications
		kafkaReader := appkafka.NewKafkaReader(kafkaCfg)
		defer kafkaReader.Close()

		w := worker.New(st, kafkaReader, 0, 0)
		w.Run(ctx)
	default:
		log.Fatalf("unknown mode: %s", mode)
	}

	log.Println("Shutdown completed")
}

func newUploadStore(cfg *config.Config) (upload.Store, error) {
	if cfg.UploadBackend == "minio" {
		return upload.NewMinio(
			cfg.MinioEndpoint,
			cfg.MinioAccessKey,
			cfg.MinioSecretKey,
			cfg.MinioBucket,
			cfg.MinioPublicURL,
			cfg.MinioUseSSL,
		)
	}
	return upload.NewDisk(cfg.UploadDir)
}
