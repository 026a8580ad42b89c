package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	approvalhandler "vouch/internal/approval/handler"
	approvalmetrics "vouch/internal/approval/metrics"
	approvalservice "vouch/internal/approval/service"
	approvalstore "vouch/internal/approval/store"
	"vouch/internal/audit"
	auditmetrics "vouch/internal/audit/metrics"
	"vouch/internal/audit/outbox"
	evidencehandler "vouch/internal/evidence/handler"
	"vouch/internal/evidence/ingest"
	"vouch/internal/evidence/link"
	evidencemetrics "vouch/internal/evidence/metrics"
	jwttoken "vouch/internal/jwt_token"
	"vouch/internal/platform/config"
	"vouch/internal/platform/httpserver"
	"vouch/internal/platform/logger"
	"vouch/internal/platform/metrics"
	httptransport "vouch/internal/transport/http"
	id "vouch/pkg/domain"
)

// main wires dependencies and runs the HTTP server alongside the audit
// outbox relay until a signal arrives. Business logic lives in the
// internal service packages.
func main() {
	dotenvErr := config.LoadDotEnv(".env")
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	if dotenvErr != nil {
		log.Warn("ignoring .env", "error", dotenvErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("vouch exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()
	log.InfoContext(ctx, "backends ready", "backends", b.String())

	auditMetrics := auditmetrics.New()
	trail := audit.NewTrail(b.audit,
		audit.WithLogger(log),
		audit.WithMetrics(auditMetrics),
	)

	evidenceMetrics := evidencemetrics.New()
	ingestSvc := ingest.New(b.files, b.objects, b.queue, trail, b.runner,
		ingest.WithLogger(log),
		ingest.WithMetrics(evidenceMetrics),
		ingest.WithMaxUploadBytes(cfg.Evidence.MaxUploadBytes),
	)
	linkSvc := link.New(b.links, b.files, b.requests, trail, b.runner,
		link.WithLogger(log),
		link.WithMetrics(evidenceMetrics),
		link.WithReadyEvidenceOnly(cfg.Evidence.RequireReady),
	)
	approvalSvc := approvalservice.New(b.requests, linkSvc, trail, b.runner,
		approvalservice.WithLogger(log),
		approvalservice.WithMetrics(approvalmetrics.New()),
	)

	if cfg.Evidence.SeedDemoTenant != "" {
		if err := seedDemo(ctx, b, cfg.Evidence.SeedDemoTenant, log); err != nil {
			return err
		}
	}

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	evidenceHandler := evidencehandler.New(ingestSvc, linkSvc, log)
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:       log,
		Metrics:      metrics.New(),
		JWTValidator: jwttoken.NewJWTServiceAdapter(jwtService),
		ServiceToken: cfg.Server.ServiceToken,
		Health:       b.health,
		Handlers: []httptransport.RouteRegistrar{
			approvalhandler.New(approvalSvc, log),
			evidenceHandler,
		},
		Internal: []httptransport.InternalRouteRegistrar{evidenceHandler},
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.InfoContext(gctx, "starting vouch", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	if b.relayEnabled() {
		listener, err := outbox.NewListener(cfg.Database.URL, log)
		if err != nil {
			log.WarnContext(ctx, "audit outbox listener unavailable, relying on polling", "error", err)
		}
		var wake <-chan struct{}
		if listener != nil {
			wake = listener.Wakeups()
			g.Go(func() error { return ignoreCanceled(listener.Run(gctx)) })
		}
		relay := b.newRelay(cfg, wake, log, auditMetrics)
		g.Go(func() error { return ignoreCanceled(relay.Run(gctx)) })
	} else {
		log.InfoContext(ctx, "audit outbox relay disabled")
	}

	return g.Wait()
}

func seedDemo(ctx context.Context, b *backends, rawTenant string, log *slog.Logger) error {
	tenantID, err := id.ParseTenantID(rawTenant)
	if err != nil {
		return err
	}
	reqs, err := approvalstore.SeedDemoRequests(ctx, b.requests, tenantID, time.Now())
	if err != nil {
		return err
	}
	for _, r := range reqs {
		log.InfoContext(ctx, "seeded demo request",
			"tenant_id", tenantID.String(),
			"request_id", r.ID.String(),
			"title", r.Title,
		)
	}
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
