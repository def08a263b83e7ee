package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lotservice/internal/bidstream"
	"lotservice/internal/clients/invoiceissuer"
	"lotservice/internal/clients/notificationgateway"
	"lotservice/internal/clients/userdirectory"
	"lotservice/internal/config"
	"lotservice/internal/database/db_client"
	"lotservice/internal/database/migrations"
	"lotservice/internal/http/http_server"
	"lotservice/internal/outbid"
	"lotservice/internal/redis/redis_client"
	"lotservice/internal/services/lot"
	"lotservice/internal/store/lotstore"
	"lotservice/internal/watcher/lotwatcher"
	"lotservice/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client
	var lotService lot.ILotService

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis (bid stream + event fan-out)
	redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()
	Log.Debug("Redis client created successfully")

	// 4. Postgres: migrate, then open the pool
	dsn := db_client.Dsn(cfg.PostgresHost, cfg.PostgresPort,
		cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err := migrations.Up(dsn); err != nil {
		Log.Fatal("pg-migrate", zap.Error(err))
	}
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort,
		cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	// 5. Collaborator clients and the lot service
	users := userdirectory.New(cfg.UserServiceURL, cfg.CollaboratorTimeout)
	invoices := invoiceissuer.New(cfg.InvoiceServiceURL, cfg.CollaboratorTimeout)
	notifications := notificationgateway.New(cfg.NotificationServiceURL, cfg.CollaboratorTimeout)
	dispatcher := outbid.New(users, notifications, cfg.PublicBaseURL)

	lotService = lot.NewLotService(
		lotstore.New(pgDb),
		users,
		invoices,
		dispatcher,
		lot.NewRedisPublisher(redisClient),
	)

	// 6. Background: expiry sweep closes lots past their deadline
	go lotwatcher.Run(ctx, cfg.ExpiryScanInterval, lotService)

	// 7. Background: inbound bid stream consumer
	consumer := bidstream.New(redisClient, lotService,
		cfg.BidStream, cfg.BidStreamGroup, cfg.BidStreamConsumer)
	go consumer.Run(ctx)

	// 8. WebSockets hub + Redis fan-out
	hub := ws.NewHub()
	go ws.SubscribeRedisLotEvents(ctx, redisClient, hub)
	wsSrv := ws.NewWsServer(hub, lotService)

	// 9. HTTP + WS server, shut down gracefully on signal
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort,
		cfg.APIToken, wsSrv, lotService)
	go func() {
		<-ctx.Done()
		_ = httpServer.Dispose()
	}()
	if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
