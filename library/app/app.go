package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-catalog/library/config"
	"github.com/Astemirdum/library-catalog/library/internal/events"
	"github.com/Astemirdum/library-catalog/library/internal/handler"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	"github.com/Astemirdum/library-catalog/library/internal/repository"
	"github.com/Astemirdum/library-catalog/library/internal/server"
	"github.com/Astemirdum/library-catalog/library/internal/service"
	"github.com/Astemirdum/library-catalog/library/internal/storage"
	"github.com/Astemirdum/library-catalog/library/internal/worker"
	"github.com/Astemirdum/library-catalog/library/migrations"
	"github.com/Astemirdum/library-catalog/pkg/auth"
	cb "github.com/Astemirdum/library-catalog/pkg/circuit_breaker"
	"github.com/Astemirdum/library-catalog/pkg/kafka"
	"github.com/Astemirdum/library-catalog/pkg/logger"
	"github.com/Astemirdum/library-catalog/pkg/postgres"
)

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "library")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		log.Fatal("db init", zap.Error(err))
	}
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		log.Fatal("repo", zap.Error(err))
	}
	images, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("storage", zap.Error(err))
	}
	tokens := auth.NewTokenManager(cfg.Auth)

	var (
		publisher events.Publisher = events.NewDirectPublisher(repo, log)
		producer  sarama.SyncProducer
		group     sarama.ConsumerGroup
	)
	if cfg.Kafka.Enabled() {
		producer, err = kafka.NewProducer(cfg.Kafka)
		if err != nil {
			log.Fatal("kafka.NewProducer", zap.Error(err))
		}
		publisher = events.NewKafkaPublisher(producer, cb.New(cfg.CircuitBreaker), repo, log)

		group, err = kafka.NewConsumer(cfg.Kafka, kafka.AuditConsumerGroup)
		if err != nil {
			log.Fatal("kafka.NewConsumer", zap.Error(err))
		}
		go kafka.Consume(ctx, group, handler.NewConsumer(repo.InsertEvent, log), log, kafka.BookEventsTopic)
	} else {
		log.Info("kafka disabled, book events are written directly")
	}

	svc := service.NewService(repo, repo, publisher, images, log)
	authSvc := service.NewAuthService(repo, tokens, log)

	w, err := worker.New(cfg.GaugeSchedule, repo, log)
	if err != nil {
		log.Fatal("worker", zap.Error(err))
	}
	w.Start()

	hcfg := handler.Config{Production: cfg.Production, AllowOrigins: cfg.CORSOrigins}
	if cfg.Storage.Backend == storage.BackendDisk {
		hcfg.UploadDir = cfg.Storage.Dir
	}
	h := handler.New(svc, authSvc, images, tokens, hcfg, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
	go func() {
		if err := srv.Run(); err != nil {
			log.Error("server run", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))

	closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second*5)
	defer closeCancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.DPanic("srv.Stop", zap.Error(err))
	}
	if err = w.Stop(closeCtx); err != nil {
		log.Error("worker.Stop", zap.Error(err))
	}
	cancel()
	if group != nil {
		if err = group.Close(); err != nil {
			log.Error("consumer group close", zap.Error(err))
		}
	}
	if producer != nil {
		if err = producer.Close(); err != nil {
			log.Error("producer close", zap.Error(err))
		}
	}
	db.Close()
	log.Info("Graceful shutdown finished")
}

// Migrate applies pending migrations and exits.
func Migrate(ctx context.Context, cfg *config.Config) error {
	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	defer db.Close()
	return postgres.Migrate(db, migrations.MigrationFiles)
}

// CreateAdmin seeds an admin account.
func CreateAdmin(ctx context.Context, cfg *config.Config, username, password string) (model.User, error) {
	log := logger.NewLogger(cfg.Log, "library")
	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return model.User{}, err
	}
	defer db.Close()
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		return model.User{}, err
	}
	return service.NewAuthService(repo, auth.NewTokenManager(cfg.Auth), log).CreateAdmin(ctx, username, password)
}
