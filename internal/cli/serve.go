package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"branchqueue/internal/config"
	"branchqueue/internal/events"
	"branchqueue/internal/fanout"
	"branchqueue/internal/handlers"
	"branchqueue/internal/middleware"
	"branchqueue/internal/tasks"
	"branchqueue/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// ServeCmd runs the REST API, the broadcast websocket and the scheduler.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the queue API and broadcast server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func hubConfig(c config.BroadcastConfig) ws.Config {
	return ws.Config{
		TickInterval: c.TickInterval,
		PingInterval: c.PingInterval,
		PongWait:     c.PongWait,
		WriteWait:    c.WriteWait,
		QueryTimeout: c.QueryTimeout,
		SendBuffer:   c.SendBuffer,
	}
}

func serve(ctx context.Context) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())
	cfg, log := a.cfg, a.log

	hub := ws.NewHub(a.provider, a.service, hubConfig(cfg.Broadcast), log.Named("ws"))
	go hub.Run(ctx)
	a.service.AddListener(hub)

	if a.rdb != nil {
		fan := fanout.New(a.rdb, cfg.Redis.Channel, log.Named("fanout"))
		a.service.AddListener(fan)
		go func() {
			err := fan.Run(ctx, func(ctx context.Context, divisionID uint) {
				a.provider.Invalidate(ctx, divisionID)
				hub.Notify(divisionID)
			})
			if err != nil {
				log.Error("division change fanout stopped", zap.Error(err))
			}
		}()
	}

	if cfg.Kafka.Enabled() {
		pub, err := events.NewKafkaPublisher(events.Config{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			ClientID:    cfg.Kafka.ClientID,
			ServiceName: cfg.App.Name,
		}, log.Named("events"))
		if err != nil {
			return err
		}
		defer pub.Close()
		a.service.AddListener(pub)
	}

	loc, _ := cfg.Queue.TimeLocation()
	scheduler, err := tasks.InitScheduler(ctx, cfg.Queue.ExpirySchedule, loc, a.service, log.Named("tasks"))
	if err != nil {
		return err
	}
	defer func() { <-scheduler.Stop().Done() }()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := newRouter(a, hub, log)

	srv := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(a *app, hub *ws.Hub, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(log.Named("http")))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/healthz", handlers.Health(hub))

	api := r.Group("/api")
	handlers.NewQueueHandler(a.service, a.provider).Register(api)
	api.GET("/ws", hub.ServeWS)
	return r
}
