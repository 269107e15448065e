package main

import (
	"context"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	"parley/internal/adapter/api"
	"parley/internal/adapter/api/handler"
	apimiddleware "parley/internal/adapter/api/middleware"
	"parley/internal/adapter/api/router"
	"parley/internal/adapter/repository"
	"parley/internal/infrastructure/broadcast"
	"parley/internal/infrastructure/firebase"
	"parley/internal/infrastructure/notification"
	"parley/internal/infrastructure/storage"
	"parley/internal/infrastructure/websocket"
	"parley/internal/usecase"
	"parley/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var opts []option.ClientOption
	credentialsPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	messagingClient, err := firebaseApp.Messaging(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Messaging: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, credentialsPath)
	if err != nil {
		log.Fatalf("Failed to initialize Cloud Storage: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	userRepo := repository.NewFirestoreUserRepository(firestoreClient)
	channelRepo := repository.NewFirestoreChannelRepository(firestoreClient)
	messageRepo := repository.NewFirestoreMessageRepository(firestoreClient)
	receiptRepo := repository.NewFirestoreReceiptRepository(firestoreClient)

	firebaseAuthClient := firebase.NewFirebaseAuthClient(authClient)
	notifier := notification.NewFCMDispatcher(messagingClient)

	wsManager := websocket.NewManager(uuid.New().String())
	bridge := broadcast.NewRedisBridge(redisClient, wsManager)
	wsManager.SetBackbone(bridge)
	bridge.Listen(ctx)
	wsManager.Start(ctx)

	authUseCase := usecase.NewAuthUseCase(firebaseAuthClient, userRepo)
	userUseCase := usecase.NewUserUseCase(userRepo, channelRepo, wsManager, storageClient)
	channelUseCase := usecase.NewChannelUseCase(channelRepo, messageRepo, receiptRepo, userRepo, wsManager, cfg.PublicURL)
	messageUseCase := usecase.NewMessageUseCase(messageRepo, channelRepo, receiptRepo, userRepo, wsManager, notifier)
	receiptUseCase := usecase.NewReceiptUseCase(receiptRepo, messageRepo, channelRepo, userRepo, wsManager)

	wsManager.SetHooks(websocket.Hooks{
		CanJoin: func(ctx context.Context, channelID, userID string) error {
			_, err := channelUseCase.EnsureMember(ctx, channelID, userID)
			return err
		},
		Typing: messageUseCase.Typing,
		MarkSeen: func(ctx context.Context, channelID, messageID, userID string) {
			// Non-critical: a failed mark-seen is logged inside and the
			// client is not told.
			if err := receiptUseCase.MarkSeen(ctx, userID, messageID); err != nil {
				log.Printf("markSeen failed for user %s message %s: %v", userID, messageID, err)
			}
		},
	})

	authMiddleware := apimiddleware.NewAuthMiddleware(authClient)

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Validator = api.NewValidator()

	router.Setup(e, router.Handlers{
		Auth:      handler.NewAuthHandler(authUseCase),
		User:      handler.NewUserHandler(userUseCase),
		Channel:   handler.NewChannelHandler(channelUseCase),
		Message:   handler.NewMessageHandler(messageUseCase, receiptUseCase),
		Upload:    handler.NewUploadHandler(storageClient),
		WebSocket: handler.NewWebSocketHandler(wsManager, authMiddleware),
	}, authMiddleware)

	log.Printf("Starting server on port %s...", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
