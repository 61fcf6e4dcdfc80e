package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"fmdrive/internal/auth"
	"fmdrive/internal/config"
	"fmdrive/internal/domain"
	"fmdrive/internal/handler"
	"fmdrive/internal/repository"
	"fmdrive/internal/service"
	"fmdrive/internal/storage"
	"fmdrive/internal/storage/local"
	"fmdrive/internal/storage/s3"
)

func connectWithRetry(cfg *config.DatabaseConfig, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	dsn := cfg.GetDSN()

	// Сначала подключаемся к системной базе postgres
	pgDSN := strings.Replace(dsn, "dbname="+cfg.Name, "dbname=postgres", 1)
	pgDB, err := sqlx.Connect("postgres", pgDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %v", err)
	}
	defer pgDB.Close()

	// Создаем рабочую базу, если её ещё нет
	var exists bool
	err = pgDB.Get(&exists, "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)", cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %v", err)
	}

	if !exists {
		log.Printf("Database %s does not exist, creating...", cfg.Name)
		_, err = pgDB.Exec(fmt.Sprintf("CREATE DATABASE %s", cfg.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	var db *sqlx.DB
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", databaseURL)
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
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
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// newBlobStorage создает бэкенд блоб-хранилища по конфигурации
func newBlobStorage(cfg *config.StorageConfig) (storage.Storage, domain.StorageBackend, error) {
	switch cfg.Backend {
	case "s3":
		s3Config, err := s3.NewConfig(".s3.env")
		if err != nil {
			return nil, "", fmt.Errorf("failed to load S3 config: %w", err)
		}

		client, err := s3.NewClient(s3Config)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create S3 client: %w", err)
		}
		return client, domain.BackendS3, nil

	case "local":
		store, err := local.NewStore(cfg.LocalDir)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create local store: %w", err)
		}
		return store, domain.BackendLocal, nil

	default:
		return nil, "", fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func main() {
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := connectWithRetry(&appConfig.Database, 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Блоб-хранилище: локальная ФС или S3
	blobStorage, backend, err := newBlobStorage(&appConfig.Storage)
	if err != nil {
		log.Fatalf("Failed to init blob storage: %v", err)
	}
	log.Printf("Using %s blob storage", backend)

	// Проверка токенов
	authConfig, err := auth.NewConfig(".auth.env")
	if err != nil {
		log.Fatalf("Failed to load auth config: %v", err)
	}
	verifier := auth.NewVerifier(authConfig)

	// Инициализация репозиториев
	folderRepo := repository.NewFolderRepository(db)
	fileRepo := repository.NewFileRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)
	favouriteRepo := repository.NewFavouriteRepository(db)

	// Инициализация сервисов
	folderService := service.NewFolderService(folderRepo, fileRepo, permissionRepo, blobStorage)
	fileService := service.NewFileService(fileRepo, folderService, permissionRepo, blobStorage, backend)
	permissionService := service.NewPermissionService(permissionRepo, folderRepo, fileRepo)
	trashService := service.NewTrashService(folderRepo, fileRepo, folderService, fileService)
	favouriteService := service.NewFavouriteService(favouriteRepo, folderRepo, fileRepo)

	retention := time.Duration(appConfig.Storage.RetentionHours) * time.Hour
	sweeper := service.NewSweeper(trashService, retention, service.DefaultSweepInterval)

	// Инициализация хендлеров
	folderHandler := handler.NewFolderHandler(verifier, folderService, permissionService)
	fileHandler := handler.NewFileHandler(verifier, fileService, permissionService)
	trashHandler := handler.NewTrashHandler(verifier, trashService, folderService, fileService, permissionService)
	permissionHandler := handler.NewPermissionHandler(verifier, permissionService)
	favouriteHandler := handler.NewFavouriteHandler(verifier, favouriteService, permissionService)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// HTTP маршруты
	r.Route("/v1", func(r chi.Router) {
		r.Post("/files", fileHandler.UploadFiles)

		r.Route("/files/{uuid}", func(r chi.Router) {
			r.Get("/", fileHandler.DownloadFile)
			r.Get("/info", fileHandler.GetFile)
			r.Put("/rename", fileHandler.RenameFile)
			r.Put("/move", fileHandler.MoveFile)
			r.Delete("/", fileHandler.DeleteFile)
			r.Post("/favourite", favouriteHandler.ToggleFile)
		})

		r.Get("/folders", folderHandler.GetFolderContent)
		r.Get("/folders/structure", folderHandler.GetFolderStructure)
		r.Post("/folders", folderHandler.CreateFolder)
		r.Get("/folders/{id}", folderHandler.GetFolderContent)
		r.Get("/folders/{id}/download", folderHandler.DownloadFolder)
		r.Put("/folders/{id}/rename", folderHandler.RenameFolder)
		r.Put("/folders/{id}/move", folderHandler.MoveFolder)
		r.Delete("/folders/{id}", folderHandler.DeleteFolder)
		r.Post("/folders/{id}/favourite", favouriteHandler.ToggleFolder)

		r.Get("/favourites", favouriteHandler.ListFavourites)

		r.Route("/trash", func(r chi.Router) {
			r.Get("/", trashHandler.GetTrashItems)
			r.Post("/restore", trashHandler.RestoreItem)
			r.Post("/delete", trashHandler.DeletePermanently)
			r.Post("/empty", trashHandler.EmptyTrash)
		})

		r.Route("/permissions", func(r chi.Router) {
			r.Post("/", permissionHandler.AssignPermission)
			r.Delete("/{id}", permissionHandler.RemovePermission)
			r.Get("/my", permissionHandler.ListMyPermissions)
			r.Get("/resource/{resourceId}", permissionHandler.ListResourcePermissions)
		})
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Фоновая уборка корзины
	sweeper.Start()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	sweeper.Stop()

	if err := db.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Server exited properly")
}
