package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "Confluence/internal/domain/repository"
	"Confluence/internal/middleware"
	"Confluence/internal/usecase"
	pkgch "Confluence/pkg/clickhouse"
	"Confluence/pkg/config"
	xhttp "Confluence/pkg/http"
	pkgkafka "Confluence/pkg/kafka"
	applogger "Confluence/pkg/logger"
	pkgqueue "Confluence/pkg/queue"
	xutil "Confluence/pkg/util"
)

// App encapsulates the entire application lifecycle: the market-data
// stream feeding the decision pipeline, the outcome consumer, the retry
// queue workers, the HTTP API and the end-of-session review.
type App struct {
	cfg      *config.Config
	logger   *applogger.Logger
	stream   domrepo.SnapshotStream
	pipeline *middleware.SnapshotPipeline
	consumer *pkgkafka.Consumer
	oh       pkgkafka.MessageHandler
	queue    *pkgqueue.RedisQueue
	reviewer *usecase.SessionReviewer
	chClient *pkgch.Client
	loc      *time.Location

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	stream domrepo.SnapshotStream,
	pipeline *middleware.SnapshotPipeline,
	consumer *pkgkafka.Consumer,
	oh pkgkafka.MessageHandler,
	queue *pkgqueue.RedisQueue,
	reviewer *usecase.SessionReviewer,
	chClient *pkgch.Client,
	loc *time.Location,
) *App {
	if loc == nil {
		loc = time.UTC
	}
	return &App{
		cfg:      cfg,
		logger:   lgr,
		stream:   stream,
		pipeline: pipeline,
		consumer: consumer,
		oh:       oh,
		queue:    queue,
		reviewer: reviewer,
		chClient: chClient,
		loc:      loc,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Retry queue workers
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			l.Error("queue start error", applogger.Error(err))
			return err
		}
		l.Info("queue workers started")
	}

	// Outcome consumer
	if a.consumer != nil && a.oh != nil {
		a.consumer.RegisterHandler(a.oh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.oh.Topic()))
	}

	// Market-data stream into the decision pipeline
	if err := a.stream.Connect(ctx); err != nil {
		l.Error("stream connect error", applogger.Error(err))
		return err
	}
	if err := a.stream.Subscribe(ctx); err != nil {
		l.Error("stream subscribe error", applogger.Error(err))
		return err
	}
	go func() {
		if err := a.pipeline.Consume(ctx, a.stream); err != nil && ctx.Err() == nil {
			l.Error("pipeline consume error", applogger.Error(err))
		}
	}()
	l.Info("pipeline started", applogger.Strings("symbols", a.cfg.Feed.Symbols))

	// End-of-session review
	if a.reviewer != nil {
		go a.reviewLoop(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// reviewLoop triggers one session review per day once the review time in
// the configured market timezone has passed.
func (a *App) reviewLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	var lastReviewed string
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if xutil.MinutesOfDay(now, a.loc) < 16*60+30 {
				continue
			}
			session := xutil.TradingDay(now, a.loc)
			if session == lastReviewed {
				continue
			}
			if err := a.reviewer.Review(ctx, session); err != nil {
				a.logger.Error("session review error",
					applogger.String("session", session),
					applogger.Error(err),
				)
			}
			// a failed review is not retried until the next session
			lastReviewed = session
		}
	}
}

// shutdown gracefully stops all services, running a final review so the
// day's records reach the knowledge store before exit.
func (a *App) shutdown() error {
	l := a.logger
	l.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.stream.Close(); err != nil {
		l.Warn("stream close error", applogger.Error(err))
	}

	if a.reviewer != nil {
		session := xutil.TradingDay(time.Now(), a.loc)
		if err := a.reviewer.Review(shutdownCtx, session); err != nil {
			l.Warn("final session review error", applogger.Error(err))
		}
	}

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			l.Warn("queue stop error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
