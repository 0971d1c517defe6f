package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/autoclaim-backend/internal/config"
	"github.com/ignatzorin/autoclaim-backend/internal/db"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/repository"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/valueobject"
	"github.com/ignatzorin/autoclaim-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/autoclaim-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/autoclaim-backend/internal/http/router"
	"github.com/ignatzorin/autoclaim-backend/internal/infrastructure/notify"
	"github.com/ignatzorin/autoclaim-backend/internal/infrastructure/objectstore"
	"github.com/ignatzorin/autoclaim-backend/internal/infrastructure/persistence"
	"github.com/ignatzorin/autoclaim-backend/internal/infrastructure/vision"
	"github.com/ignatzorin/autoclaim-backend/internal/logger"
	"github.com/ignatzorin/autoclaim-backend/internal/service"
	"github.com/ignatzorin/autoclaim-backend/internal/usecase/claim"
	"github.com/ignatzorin/autoclaim-backend/internal/ws"
)

// imageStore умеет отдавать содержимое сохранённых изображений модели.
type imageStore interface {
	repository.ObjectStore
	vision.ImageSource
}

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	log := logger.Init(cfg.LogLevel)
	if !cfg.IsProduction() {
		logger.SetTextFormatter()
	}
	goroutine.SetLogger(log)

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL, db.DefaultPoolOptions())
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn, log)

	if err := db.RunMigrations(ctx, dbConn, os.DirFS(cfg.MigrationsPath), log); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Адаптеры.
	store, mediaRoot, err := newImageStore(cfg, log)
	if err != nil {
		log.Fatalf("main: не удалось подготовить хранилище изображений: %v", err)
	}
	analyzer := newAnalyzer(cfg, store, log)
	notifier, err := newNotifier(cfg, log)
	if err != nil {
		log.Fatalf("main: не удалось настроить отправку писем: %v", err)
	}

	hub := ws.NewHub(log)
	goroutine.SafeGoWithContext(ctx, hub.Run)

	// Репозитории.
	claimRepo := persistence.NewClaimRepositoryAdapter(dbConn)
	userRepo, err := persistence.NewCachedUserRepository(persistence.NewUserRepositoryAdapter(dbConn), cfg.UserCacheSize)
	if err != nil {
		log.Fatalf("main: ошибка создания кэша пользователей: %v", err)
	}

	// Сервисы и сценарии.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := service.NewAuthService(userRepo, tokenManager, log)
	if cfg.AdminEmail != "" {
		if err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Fatalf("main: не удалось создать администратора: %v", err)
		}
	}

	limits := claim.ImageLimits{
		MaxImages:     cfg.Claims.MaxImages,
		MaxImageBytes: cfg.Claims.MaxUploadMB * 1024 * 1024,
		Workers:       cfg.Claims.ImageWorkers,
	}
	aggregator := claim.NewAggregator(claim.EstimateConfig{
		BaseAmount: cfg.Claims.BaseAmount,
		Multipliers: map[valueobject.Severity]float64{
			valueobject.SeverityMinor:    cfg.Claims.MultiplierMinor,
			valueobject.SeverityModerate: cfg.Claims.MultiplierModerate,
			valueobject.SeveritySevere:   cfg.Claims.MultiplierSevere,
		},
	})
	images := claim.NewImageProcessor(store, analyzer, limits.Workers, log)
	notifications := claim.NewClaimNotifier(userRepo, notifier, hub, cfg.Claims.NotifyTimeout, log)

	claimHandler := httpHandlers.NewClaimHandler(httpHandlers.ClaimUseCases{
		Submit:        claim.NewSubmitClaimUseCase(claimRepo, userRepo, images, aggregator, notifications, limits, log),
		Get:           claim.NewGetClaimUseCase(claimRepo),
		History:       claim.NewGetClaimHistoryUseCase(claimRepo),
		ListUser:      claim.NewListUserClaimsUseCase(claimRepo),
		ListAll:       claim.NewListAllClaimsUseCase(claimRepo),
		UpdateStatus:  claim.NewUpdateStatusUseCase(claimRepo, notifications, log),
		Delete:        claim.NewDeleteClaimUseCase(claimRepo, images, log),
		Reanalyze:     claim.NewReanalyzeClaimUseCase(claimRepo, images, aggregator, log),
		UpdateDetails: claim.NewUpdateIncidentDetailsUseCase(claimRepo),
		Statistics:    claim.NewStatisticsUseCase(claimRepo),
	}, limits)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Auth:   httpHandlers.NewAuthHandler(authService),
		Claims: claimHandler,
		Health: httpHandlers.NewHealthHandler(dbConn),
		WS:     httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
	}, tokenManager, mediaRoot, log)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("main: ошибка остановки http сервера: %v", err)
		}
	})

	log.WithFields(logrus.Fields{
		"port":         cfg.HTTPPort,
		"object_store": cfg.Storage.Driver,
		"vision":       cfg.Vision.Provider,
	}).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// newImageStore возвращает хранилище и корень для раздачи /media (только для локального).
func newImageStore(cfg *config.Config, log logrus.FieldLogger) (imageStore, string, error) {
	if cfg.Storage.Driver == config.ObjectStoreS3 {
		store, err := objectstore.NewS3Store(objectstore.S3Config{
			Endpoint:  cfg.Storage.S3Endpoint,
			Region:    cfg.Storage.S3Region,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
			Bucket:    cfg.Storage.S3Bucket,
			UseSSL:    cfg.Storage.S3UseSSL,
			PublicURL: cfg.Storage.S3PublicURL,
		}, log)
		return store, "", err
	}

	store, err := objectstore.NewLocalStore(cfg.Storage.LocalPath, cfg.Storage.PublicURL, cfg.Claims.MaxUploadMB, log)
	if err != nil {
		return nil, "", err
	}
	return store, store.Root(), nil
}

func newAnalyzer(cfg *config.Config, images vision.ImageSource, log logrus.FieldLogger) repository.ImageAnalyzer {
	if cfg.Vision.Provider == config.VisionOpenAI {
		return vision.NewClient(vision.ClientConfig{
			BaseURL: cfg.Vision.BaseURL,
			Model:   cfg.Vision.Model,
			APIKey:  cfg.Vision.APIKey,
			Timeout: cfg.Vision.Timeout,
		}, images, log)
	}
	return vision.NewMockAnalyzer()
}

func newNotifier(cfg *config.Config, log logrus.FieldLogger) (repository.Notifier, error) {
	if cfg.Mail.SMTPHost == "" {
		return notify.NewLogNotifier(log), nil
	}
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.Mail.SMTPHost,
		Port:     cfg.Mail.SMTPPort,
		User:     cfg.Mail.SMTPUser,
		Password: cfg.Mail.SMTPPassword,
		From:     cfg.Mail.From,
	})
}

// safeClose закрывает соединение с базой.
func safeClose(conn *sqlx.DB, log logrus.FieldLogger) {
	if err := conn.Close(); err != nil {
		log.Errorf("main: ошибка закрытия базы: %v", err)
	}
}
