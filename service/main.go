package service

import (
	"context"
	"sync"

	"github.com/mediocregopher/radix/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gitlab.com/tng-miniapp/ledger_api/cache"
	"gitlab.com/tng-miniapp/ledger_api/config"
	"gitlab.com/tng-miniapp/ledger_api/net/kafka"
	"gitlab.com/tng-miniapp/ledger_api/net/redis"
	"gitlab.com/tng-miniapp/ledger_api/queries"
	"gitlab.com/tng-miniapp/ledger_api/queries/memory"
	"gitlab.com/tng-miniapp/ledger_api/service/assets"
	"gitlab.com/tng-miniapp/ledger_api/service/fms"
	"gitlab.com/tng-miniapp/ledger_api/service/holds"
	"gitlab.com/tng-miniapp/ledger_api/service/ledger"
	"gitlab.com/tng-miniapp/ledger_api/service/notifications"
)

// Service structure
type Service struct {
	cfg   config.Config
	Store queries.Store
	Cache cache.Cache

	Assets   *assets.Registry
	Balances *fms.BalanceStore
	Holds    *holds.Manager
	Ledger   *ledger.Ledger

	publisher *notifications.KafkaPublisher
	producer  *kafka.KafkaProducer
	pool      *radix.Pool
}

// NewService connects the store, the cache and the notification producer and builds the ledger services
func NewService(cfg config.Config) (*Service, error) {
	store, err := openStore(cfg.DatabaseCluster)
	if err != nil {
		return nil, err
	}

	var pool *radix.Pool
	if cfg.Cache.Driver == cache.DriverRedis || cfg.Cache.Driver == cache.DriverMultiLevel {
		pool, err = redis.NewPool(cfg.Redis)
		if err != nil {
			return nil, errors.Wrap(err, "unable to connect to redis")
		}
	}
	var client radix.Client
	if pool != nil {
		client = pool
	}
	c, err := cache.New(cfg.Cache, client)
	if err != nil {
		return nil, err
	}

	var publisher notifications.Publisher = notifications.Nop{}
	var producer *kafka.KafkaProducer
	var kafkaPublisher *notifications.KafkaPublisher
	if cfg.Kafka.IsConfigured() {
		producer = kafka.NewKafkaProducer(cfg.Kafka.Writer, cfg.Kafka.Brokers, cfg.Kafka.UseTLS, cfg.Ledger.NotificationsTopic)
		kafkaPublisher = notifications.NewKafkaPublisher(producer, cfg.Ledger.NotificationsBuffer)
		publisher = kafkaPublisher
	} else {
		log.Warn().Str("section", "service").Msg("Kafka is not configured, transfer notifications are disabled")
	}

	srv := New(cfg, store, c, publisher)
	srv.pool = pool
	srv.producer = producer
	srv.publisher = kafkaPublisher
	return srv, nil
}

// New builds the ledger services on top of an opened store and cache
func New(cfg config.Config, store queries.Store, c cache.Cache, publisher notifications.Publisher) *Service {
	srv := &Service{cfg: cfg, Store: store, Cache: c}
	srv.Assets = assets.NewRegistry(store, c, cfg.Cache.AssetTTL)
	srv.Balances = fms.Init(store, srv.Assets, c, cfg.Cache.BalanceTTL)
	srv.Holds = holds.NewManager(store, srv.Assets, srv.Balances, cfg.Ledger.ExpiredHoldsBatch)
	srv.Ledger = ledger.New(store, srv.Assets, srv.Balances, publisher, cfg.Ledger.HistoryMaxLimit)
	return srv
}

func openStore(cfg config.DatabaseClusterConfig) (queries.Store, error) {
	if cfg.Driver == "memory" {
		log.Warn().Str("section", "service").Msg("Using the in memory store, data is lost on exit")
		return memory.NewStore(memory.SeedAssets()...), nil
	}
	return queries.Connect(cfg)
}

// Start runs the background workers of the services until ctx is cancelled
func (srv *Service) Start(ctx context.Context, wait *sync.WaitGroup) {
	if srv.publisher != nil {
		wait.Add(1)
		go srv.publisher.Process(ctx, wait)
	}
}

// Close releases the connections opened by NewService. Workers must be stopped first.
func (srv *Service) Close() {
	if srv.producer != nil {
		if err := srv.producer.Close(); err != nil {
			log.Error().Err(err).Str("section", "service").Msg("Unable to close kafka producer")
		}
	}
	if srv.pool != nil {
		if err := srv.pool.Close(); err != nil {
			log.Error().Err(err).Str("section", "service").Msg("Unable to close redis pool")
		}
	}
	queries.Close()
}
