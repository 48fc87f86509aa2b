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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm/logger"

	"github.com/yourusername/microlearn-api/internal/config"
	"github.com/yourusername/microlearn-api/internal/domain/entity"
	"github.com/yourusername/microlearn-api/internal/handler"
	"github.com/yourusername/microlearn-api/internal/middleware"
	pgRepo "github.com/yourusername/microlearn-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/microlearn-api/internal/repository/redis"
	"github.com/yourusername/microlearn-api/internal/service"
	"github.com/yourusername/microlearn-api/internal/service/engine"
	"github.com/yourusername/microlearn-api/pkg/auth"
	"github.com/yourusername/microlearn-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Параметры движка проверяем до подключения к хранилищам
	engineCfg, err := engine.NewConfig(cfg.Engine)
	if err != nil {
		log.Printf("Invalid engine configuration: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), logger.Info)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db, cfg.Database.MigrationsPath); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	questionRepo := pgRepo.NewQuestionRepo(db)
	progressionRepo := pgRepo.NewProgressionRepo(db)
	challengeRepo := pgRepo.NewChallengeRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}
	sessionStore := redisRepo.NewSessionStore(redisClient)
	locker := redisRepo.NewLocker(redisClient)

	// Токены выпускает внешний сервис аккаунтов, здесь только проверка подписи
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpirationHrs)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	// Инициализируем сервисы
	challengeService := service.NewChallengeService(challengeRepo)
	progressionService := service.NewProgressionService(progressionRepo, cacheRepo, locker, challengeService, engineCfg, cfg.Engine.Progression)
	sessionService := service.NewSessionService(questionRepo, sessionStore, locker, progressionService, engineCfg, cfg.Engine.Session)
	statsService := service.NewStatsService(questionRepo)

	perSession := make(map[entity.Tier]int)
	for _, tc := range sessionService.Tiers() {
		perSession[tc.Tier] = tc.QuestionCount
	}

	// Инициализируем обработчики
	sessionHandler := handler.NewSessionHandler(sessionService)
	playerHandler := handler.NewPlayerHandler(progressionService)
	adminHandler := handler.NewAdminHandler(statsService, challengeService, perSession)

	// Инициализируем middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Инициализируем роутер Gin
	router := gin.Default()

	// В production не доверяем прокси-заголовкам, иначе c.ClientIP() подделывается
	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	allowedOrigins := cfg.Server.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		// Публичные маршруты
		api.GET("/tiers", sessionHandler.ListTiers)
		api.GET("/leaderboard", playerHandler.GetLeaderboard)

		// Сессии
		sessions := api.Group("/sessions")
		sessions.Use(authMiddleware.RequireAuth())
		{
			sessions.POST("", rateLimiter.LimitByUser(middleware.SessionStartRateLimitConfig(cfg.Engine.Session.StartPerMin)), sessionHandler.StartSession)

			sessionWithID := sessions.Group("/:id")
			sessionWithID.Use(middleware.ExtractUUIDParam("id", handler.SessionIDKey))
			{
				sessionWithID.GET("", sessionHandler.GetSession)
				sessionWithID.POST("/answers", sessionHandler.SubmitAnswer)
				sessionWithID.POST("/expire", sessionHandler.ExpireQuestion)
				sessionWithID.POST("/complete", sessionHandler.CompleteSession)
			}
		}

		// Игроки
		players := api.Group("/players")
		players.Use(authMiddleware.RequireAuth())
		{
			players.GET("/me/progression", playerHandler.GetMyProgression)
		}

		// Администрирование
		admin := api.Group("/admin")
		admin.Use(authMiddleware.RequireAuth(), authMiddleware.AdminOnly())
		admin.Use(rateLimiter.LimitByIP(middleware.AdminRateLimitConfig()))
		{
			admin.GET("/questions/stats", adminHandler.ExportQuestionStats)
			admin.GET("/questions/pool", adminHandler.GetPoolStats)
			admin.POST("/challenges", adminHandler.CreateChallenge)
		}
	}

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}
	if err := database.Close(db); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("Server exited properly")
}
