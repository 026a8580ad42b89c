package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/twmb/franz-go/pkg/kgo"

	approvalmodels "vouch/internal/approval/models"
	approvalstore "vouch/internal/approval/store"
	"vouch/internal/audit"
	auditmetrics "vouch/internal/audit/metrics"
	"vouch/internal/audit/outbox"
	auditstore "vouch/internal/audit/store"
	"vouch/internal/evidence/ingest"
	"vouch/internal/evidence/link"
	evidencestore "vouch/internal/evidence/store"
	"vouch/internal/jobqueue"
	"vouch/internal/objectstore"
	"vouch/internal/platform/config"
	"vouch/internal/platform/kafka"
	"vouch/internal/platform/postgres"
	platformredis "vouch/internal/platform/redis"
	httptransport "vouch/internal/transport/http"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/tx"
)

// requestStore is what the approval service and link registry need from
// either request store implementation.
type requestStore interface {
	approvalstore.Creator
	FindByID(ctx context.Context, tenantID id.TenantID, requestID id.RequestID) (*approvalmodels.Request, error)
	Exists(ctx context.Context, tenantID id.TenantID, requestID id.RequestID) (bool, error)
	Approve(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, actorID id.UserID, at time.Time) (*approvalmodels.Decision, error)
	Reject(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, actorID id.UserID, reason string, at time.Time) (*approvalmodels.Decision, error)
}

type fileStore interface {
	ingest.FileStore
	link.FileReader
}

// backends holds the storage and transport picked from config. Postgres,
// Redis and Kafka are each optional; missing ones fall back to memory.
type backends struct {
	requests requestStore
	files    fileStore
	links    link.LinkStore
	audit    audit.Store
	objects  objectstore.Store
	queue    jobqueue.Queue
	runner   tx.Runner

	pool   *pgxpool.Pool
	redis  *platformredis.Client
	kafka  *kgo.Client
	outbox *auditstore.PostgresStore

	health map[string]httptransport.HealthCheck
}

func openBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{health: map[string]httptransport.HealthCheck{}}

	if cfg.Database.URL != "" {
		pool, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		b.pool = pool
		if cfg.Database.MigrateOnStart {
			if err := postgres.Migrate(ctx, pool, logger); err != nil {
				b.Close()
				return nil, err
			}
		}
		b.requests = approvalstore.NewPostgres(pool)
		b.files = evidencestore.NewPostgresFileStore(pool)
		b.links = evidencestore.NewPostgresLinkStore(pool)
		b.outbox = auditstore.NewPostgres(pool)
		b.audit = b.outbox
		b.runner = tx.NewPostgresRunner(pool)
		b.health["postgres"] = pool.Ping
		logger.InfoContext(ctx, "using postgres stores")
	} else {
		files := evidencestore.NewInMemoryFileStore()
		b.requests = approvalstore.NewInMemoryStore()
		b.files = files
		b.links = evidencestore.NewInMemoryLinkStore(files)
		b.audit = auditstore.NewInMemoryStore()
		b.runner = tx.NewMemoryRunner()
		logger.WarnContext(ctx, "DATABASE_URL not set, using in-memory stores")
	}

	rdb, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		b.Close()
		return nil, err
	}
	if rdb != nil {
		b.redis = rdb
		b.objects = objectstore.NewRedisStore(rdb)
		b.health["redis"] = rdb.Health
	} else {
		b.objects = objectstore.NewInMemoryStore()
		logger.WarnContext(ctx, "REDIS_URL not set, evidence bytes kept in memory")
	}

	kc, err := kafka.NewClient(cfg.Kafka)
	if err != nil {
		b.Close()
		return nil, err
	}
	if kc != nil {
		b.kafka = kc
		if cfg.Kafka.CreateTopic {
			if err := kafka.EnsureTopics(ctx, kc, logger, jobqueue.JobConvertToPDF, cfg.Kafka.AuditTopic); err != nil {
				b.Close()
				return nil, err
			}
		}
		b.queue = jobqueue.NewKafkaQueue(kc)
		b.health["kafka"] = kc.Ping
	} else {
		b.queue = jobqueue.NewInMemoryQueue()
		logger.WarnContext(ctx, "KAFKA_BROKERS not set, conversion jobs kept in memory")
	}

	return b, nil
}

// relayEnabled reports whether audit entries can be streamed out.
func (b *backends) relayEnabled() bool {
	return b.outbox != nil && b.kafka != nil
}

func (b *backends) newRelay(cfg config.Config, wake <-chan struct{}, logger *slog.Logger, m *auditmetrics.Metrics) *outbox.Relay {
	return outbox.NewRelay(b.outbox, outbox.NewKafkaSink(b.kafka, cfg.Kafka.AuditTopic), b.runner,
		outbox.WithLogger(logger),
		outbox.WithMetrics(m),
		outbox.WithWakeup(wake),
		outbox.WithPollInterval(cfg.Database.OutboxPoll),
		outbox.WithBatchSize(cfg.Database.OutboxBatchSize),
	)
}

func (b *backends) Close() {
	if b.kafka != nil {
		b.kafka.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

func (b *backends) String() string {
	return fmt.Sprintf("postgres=%t redis=%t kafka=%t", b.pool != nil, b.redis != nil, b.kafka != nil)
}
