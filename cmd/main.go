package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"filedesk/internal/auth"
	"filedesk/internal/config"
	"filedesk/internal/handler"
	"filedesk/internal/repository"
	"filedesk/internal/service"
	"filedesk/internal/storage"
)

func connectWithRetry(cfg *config.Config, logger *zap.Logger, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	// Сначала подключаемся к системной базе postgres, она существует всегда.
	pgDSN := strings.Replace(cfg.Database.GetDSN(), "dbname="+cfg.Database.Name, "dbname=postgres", 1)
	pgDB, err := sqlx.Connect("postgres", pgDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %w", err)
	}
	defer pgDB.Close()

	var exists bool
	err = pgDB.Get(&exists, "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)", cfg.Database.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		logger.Info("database does not exist, creating", zap.String("name", cfg.Database.Name))
		if _, err := pgDB.Exec("CREATE DATABASE " + cfg.Database.Name); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	var db *sqlx.DB
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", cfg.Database.GetDSN())
		if err == nil {
			return db, nil
		}

		logger.Warn("failed to connect to database",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxAttempts, err)
}

func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", cfg.Database.GetURL())
		if err == nil {
			break
		}
		logger.Warn("failed to create migrate instance", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		logger.Warn("found dirty database state, forcing version", zap.Uint("version", uint(version)))
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}
	defer logger.Sync()

	// .env переопределяется реальным окружением, отсутствие файла не ошибка.
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment")
	}

	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	db, err := connectWithRetry(appConfig, logger, 5, 5*time.Second)
	if err != nil {
		logger.Fatal("failed to connect to database after retries", zap.Error(err))
	}
	defer db.Close()

	if err := runMigrations(appConfig, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}

	// Локальное хранилище содержимого и область версий
	store, err := storage.NewDisk(appConfig.Storage.Root, appConfig.Storage.VersionsRoot, logger)
	if err != nil {
		logger.Fatal("failed to init storage", zap.Error(err))
	}

	// Инициализация репозиториев
	fileRepo := repository.NewFileRepository(db)
	userRepo := repository.NewUserRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	preferencesRepo := repository.NewPreferencesRepository(db)

	// Инициализация сервисов
	tokenTTL := time.Duration(appConfig.Auth.TokenTTLMin) * time.Minute
	activityService := service.NewActivityService(activityRepo, logger)
	notificationService := service.NewNotificationService(notificationRepo, logger)
	userService := service.NewUserService(userRepo, preferencesRepo, appConfig.Auth.Secret, tokenTTL, logger)
	fileService := service.NewFileService(fileRepo, store, activityService, logger)
	taskService := service.NewTaskService(fileRepo, userRepo, activityService, notificationService, logger)
	batchService := service.NewBatchService(fileRepo, store, fileService, taskService, activityService, logger)
	statsService := service.NewStatsService(fileRepo, userRepo, store, taskService, activityService, logger)

	// Инициализация хендлеров
	fileHandler := handler.NewFileHandler(fileService, taskService, batchService, logger)
	userHandler := handler.NewUserHandler(userService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger)
	statsHandler := handler.NewStatsHandler(statsService, activityService, logger)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(appConfig.Server.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.Middleware(userRepo, appConfig.Auth.Secret)

	// HTTP маршруты
	r.Route("/v1", func(r chi.Router) {
		r.Post("/users", userHandler.Register)
		r.Post("/users/token", userHandler.Login)
		r.Get("/users/count", userHandler.Count)

		// Всё остальное требует аутентификации
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)

			r.Get("/users/me", userHandler.Me)
			r.Get("/users", userHandler.List)
			r.Get("/users/{id}", userHandler.Get)
			r.Put("/users/{id}/password", userHandler.ChangePassword)
			r.Put("/users/{id}/admin", userHandler.SetAdmin)
			r.Delete("/users/{id}", userHandler.Delete)

			r.Get("/preferences", userHandler.Preferences)
			r.Put("/preferences", userHandler.UpdatePreferences)

			r.Route("/files", func(r chi.Router) {
				r.Get("/", fileHandler.List)
				r.Post("/upload", fileHandler.Upload)
				r.Get("/download", fileHandler.DownloadByPath)
				r.Get("/search", fileHandler.Search)
				r.Get("/assigned", fileHandler.Assigned)
				r.Get("/assigned/all", fileHandler.AllAssigned)
				r.Post("/sync", fileHandler.Sync)

				r.Post("/dir", fileHandler.CreateDir)
				r.Get("/dir/download", fileHandler.DownloadDir)
				r.Delete("/dir/*", fileHandler.DeleteDir)

				r.Post("/batch/delete", fileHandler.BatchDelete)
				r.Post("/batch/download", fileHandler.BatchDownload)
				r.Post("/batch/assign", fileHandler.BatchAssign)
				r.Post("/batch/move", fileHandler.BatchMove)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/download", fileHandler.Download)
					r.Get("/preview", fileHandler.Preview)
					r.Get("/details", fileHandler.Details)
					r.Delete("/", fileHandler.Delete)
					r.Put("/rename", fileHandler.Rename)
					r.Put("/move", fileHandler.Move)
					r.Put("/status", fileHandler.SetStatus)
					r.Put("/instruction", fileHandler.SetInstruction)
					r.Put("/assign", fileHandler.Assign)
					r.Get("/versions", fileHandler.Versions)
					r.Get("/versions/{versionID}/download", fileHandler.DownloadVersion)
					r.Post("/restore/{versionID}", fileHandler.Restore)
				})
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.List)
				r.Get("/unread-count", notificationHandler.UnreadCount)
				r.Put("/{id}/read", notificationHandler.MarkRead)
				r.Put("/read-all", notificationHandler.MarkAllRead)
				r.Delete("/{id}", notificationHandler.Delete)
				r.Delete("/", notificationHandler.Clear)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Get("/stats/dashboard", statsHandler.Dashboard)
				r.Get("/activity", statsHandler.Activity)
			})
		})
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("starting HTTP server", zap.String("port", appConfig.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("HTTP server forced to shutdown", zap.Error(err))
	}

	if err := db.Close(); err != nil {
		logger.Warn("error closing database connection", zap.Error(err))
	}

	logger.Info("server exited properly")
}
