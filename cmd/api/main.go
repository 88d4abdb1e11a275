package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	"shopdesk/internal/adapter/api"
	"shopdesk/internal/adapter/api/handler"
	apimiddleware "shopdesk/internal/adapter/api/middleware"
	"shopdesk/internal/adapter/api/router"
	"shopdesk/internal/adapter/repository"
	"shopdesk/internal/domain/access"
	"shopdesk/internal/domain/entity"
	"shopdesk/internal/infrastructure/cache"
	"shopdesk/internal/infrastructure/firebase"
	"shopdesk/internal/infrastructure/memdb"
	"shopdesk/internal/infrastructure/push"
	"shopdesk/internal/infrastructure/ratelimit"
	"shopdesk/internal/infrastructure/storage"
	"shopdesk/internal/infrastructure/telemetry"
	"shopdesk/internal/infrastructure/websocket"
	"shopdesk/internal/livesync"
	"shopdesk/internal/usecase"
	"shopdesk/pkg/config"
	"shopdesk/pkg/logger"
)

// backend is everything that differs between the firestore and the in-memory setups.
type backend struct {
	store     livesync.Backend
	auth      usecase.AuthProvider
	blobs     usecase.BlobStore
	pushSinks []livesync.Sink
	closers   []func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	policy, err := access.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		log.Fatalf("Failed to load capability policy: %v", err)
	}

	clock := livesync.SystemClock()

	var b *backend
	switch cfg.DocumentStore {
	case "memory":
		b = memoryBackend(cfg, clock)
	case "firestore":
		b, err = firestoreBackend(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to initialize Firestore backend: %v", err)
		}
	default:
		log.Fatalf("Unknown DOCUMENT_STORE %q (want firestore or memory)", cfg.DocumentStore)
	}
	defer func() {
		for _, closeFn := range b.closers {
			if err := closeFn(); err != nil {
				logger.Warn("Close failed: %v", err)
			}
		}
	}()

	var deduper livesync.Deduper = livesync.NewMemoryDeduper(clock, cfg.DedupeTTL)
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		deduper = cache.NewRedisDeduper(redisClient, cfg.DedupeTTL)
		logger.Info("Notification dedupe shared through Redis")
	}

	userRepo := repository.NewUserRepository(b.store)

	vapid := push.Options{PublicKey: cfg.VAPIDPublicKey, PrivateKey: cfg.VAPIDPrivate, Subject: cfg.VAPIDSubject}
	if vapid.Configured() {
		b.pushSinks = append(b.pushSinks, push.NewWebPushSink(vapid, userRepo))
	}

	limiter := ratelimit.NewRateLimiter(clock, ratelimit.DefaultLimits)
	limiter.StartCleanupRoutine(ctx.Done())

	// The document store has no delivery receipts; sent/delivered are simulated.
	transport := livesync.NewSimulatedTransport(b.store, clock, []livesync.TransportStep{
		{After: cfg.SentAfter, Status: string(entity.StatusSent)},
		{After: cfg.DeliveredAfter, Status: string(entity.StatusDelivered)},
	}, entity.Advances)
	if !cfg.IsDevelopment() {
		logger.Warn("Message status uses the simulated transport (sent after %v, delivered after %v)", cfg.SentAfter, cfg.DeliveredAfter)
	}

	auditUseCase := usecase.NewAuditUseCase(repository.NewAuditRepository(b.store), policy)
	notificationUseCase := usecase.NewNotificationUseCase(repository.NewNotificationRepository(b.store), userRepo, policy)
	presenceUseCase := usecase.NewPresenceUseCase(userRepo, b.store, clock, usecase.PresenceConfig{
		TypingIdle:    cfg.TypingIdle,
		TypingRefresh: cfg.TypingRefresh,
		TypingTTL:     cfg.TypingTTL,
	})
	productUseCase := usecase.NewProductUseCase(repository.NewProductRepository(b.store), policy, notificationUseCase, auditUseCase)
	saleUseCase := usecase.NewSaleUseCase(repository.NewSaleRepository(b.store), userRepo, productUseCase, policy, notificationUseCase, auditUseCase)
	serviceOrderUseCase := usecase.NewServiceOrderUseCase(repository.NewServiceOrderRepository(b.store), userRepo, clock, policy, notificationUseCase, auditUseCase)
	chatUseCase := usecase.NewChatUseCase(usecase.ChatDeps{
		Backend:       b.store,
		Conversations: repository.NewConversationRepository(b.store),
		Messages:      repository.NewMessageRepository(b.store),
		Users:         userRepo,
		Blobs:         b.blobs,
		Transport:     transport,
		Clock:         clock,
		RateLimiter:   limiter,
		Policy:        policy,
		Audit:         auditUseCase,
		MaxUpload:     cfg.MaxUploadBytes,
	})
	authUseCase := usecase.NewAuthUseCase(userRepo, b.auth)
	userUseCase := usecase.NewUserUseCase(userRepo, b.auth, policy, auditUseCase)
	liveUseCase := usecase.NewLiveUseCase(usecase.LiveConfig{
		Backend:          b.store,
		Users:            userRepo,
		Chat:             chatUseCase,
		Presence:         presenceUseCase,
		Auth:             authUseCase,
		Policy:           policy,
		PushSinks:        b.pushSinks,
		Deduper:          deduper,
		NotificationPage: cfg.NotificationPage,
		TypingTick:       cfg.SessionTick,
	})

	handler.Setup(handler.UseCases{
		Auth:          authUseCase,
		Users:         userUseCase,
		Chat:          chatUseCase,
		Notifications: notificationUseCase,
		Audit:         auditUseCase,
		Products:      productUseCase,
		Sales:         saleUseCase,
		ServiceOrders: serviceOrderUseCase,
	})

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	e.Use(apimiddleware.Tracing())

	e.Validator = api.NewValidator()

	router.Setup(e, router.Middlewares{
		Auth:          apimiddleware.NewAuthMiddleware(authUseCase),
		Capability:    apimiddleware.NewCapabilityMiddleware(policy),
		SignInLimiter: limiter,
	})
	router.SetupWebSocketRouter(e, handler.NewWebSocketHandler(wsManager, authUseCase, liveUseCase, cfg.CORSOrigins))
	router.SetupHealthRouter(e, handler.NewHealthHandler(wsManager, cfg.DocumentStore))

	go func() {
		logger.Info("Starting server on port %s (%s store, %s)", cfg.ServerPort, cfg.DocumentStore, cfg.Environment)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	wsManager.Shutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Tracing shutdown: %v", err)
	}
}

// memoryBackend runs the whole gateway in process, with local accounts and in-memory blobs. Nothing
// survives a restart.
func memoryBackend(cfg *config.Config, clock livesync.Clock) *backend {
	logger.Warn("Using the in-memory document store; data is lost on restart")
	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.ServerPort + "/blobs"
	}
	return &backend{
		store: memdb.New(clock),
		auth:  firebase.NewLocalAuthClient(),
		blobs: storage.NewMemoryBlobStore(baseURL),
	}
}

func firestoreBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	var opt option.ClientOption
	if serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); serviceAccountJSON != "" {
		logger.Info("Using Firebase service account from environment variable")
		opt = option.WithCredentialsJSON([]byte(serviceAccountJSON))
	} else {
		if _, err := os.Stat(cfg.FirebaseCredentialsFile); err != nil {
			return nil, err
		}
		logger.Info("Using Firebase service account from file: %s", cfg.FirebaseCredentialsFile)
		opt = option.WithCredentialsFile(cfg.FirebaseCredentialsFile)
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
	if err != nil {
		return nil, err
	}
	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, err
	}
	messagingClient, err := firebaseApp.Messaging(ctx)
	if err != nil {
		return nil, err
	}
	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opt)
	if err != nil {
		return nil, err
	}

	store := repository.NewFirestoreDocumentStore(firestoreClient)
	b := &backend{
		store:     store,
		auth:      firebase.NewFirebaseAuthClient(authClient, cfg.FirebaseApiKey),
		pushSinks: []livesync.Sink{firebase.NewMessagingSink(messagingClient, repository.NewUserRepository(store))},
		closers:   []func() error{firestoreClient.Close},
	}

	switch cfg.BlobStore {
	case "s3":
		s3Client, err := storage.NewS3Client(cfg.S3Bucket, cfg.S3Region, cfg.S3Endpoint, cfg.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		b.blobs = s3Client
	default:
		credentials := ""
		if os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON") == "" {
			credentials = cfg.FirebaseCredentialsFile
		}
		gcsClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, cfg.PublicBaseURL, credentials, cfg.CORSOrigins)
		if err != nil {
			return nil, err
		}
		b.blobs = gcsClient
		b.closers = append(b.closers, gcsClient.Close)
	}
	return b, nil
}
