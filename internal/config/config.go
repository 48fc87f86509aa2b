package config

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Engine   EngineConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string `mapstructure:"migrations_path"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Используется для всех режимов.
	// Для 'single', если не пуст, используется первый адрес из списка.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Альтернативный адрес для режима 'single'.
	// Используется, если Mode="single" и Addrs пустой.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	// MaxRetries: Максимальное количество попыток переподключения (-1 - бесконечно). По умолчанию 0.
	MaxRetries int `mapstructure:"max_retries"`

	// MinRetryBackoff / MaxRetryBackoff: интервалы между попытками в миллисекундах
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`

	// PoolSize: соединений на узел. Каждый запрос к сессии держит соединение под блокировкой.
	PoolSize int `mapstructure:"pool_size"`
	// DialTimeoutMs: таймаут подключения и стартового PING
	DialTimeoutMs int `mapstructure:"dial_timeout_ms"`
}

// JWTConfig содержит настройки JWT. Токены выпускает внешний сервис авторизации,
// здесь нужен только общий секрет для проверки подписи.
type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	Issuer        string `mapstructure:"issuer"`
	ExpirationHrs int    `mapstructure:"expirationHrs"`
}

// EngineConfig содержит политику движка сессий и наград.
// Нулевые значения заменяются значениями по умолчанию движка.
type EngineConfig struct {
	BasePointsPerQuestion int     `mapstructure:"base_points_per_question"`
	XPPerQuestion         int     `mapstructure:"xp_per_question"`
	OptionArity           int     `mapstructure:"option_arity"`
	MaxExcludedIDs        int     `mapstructure:"max_excluded_ids"`
	StarvedTierPolicy     string  `mapstructure:"starved_tier_policy"` // serve | downgrade | block
	MinQuestionsToStart   int     `mapstructure:"min_questions_to_start"`
	MaxStreakBonus        float64 `mapstructure:"max_streak_bonus"`

	Tiers              []TierSettings        `mapstructure:"tiers"`
	Levels             []LevelSettings       `mapstructure:"levels"`
	DailyStreakBonuses []StreakBonusSettings `mapstructure:"daily_streak_bonuses"`
	WinStreakBonuses   []StreakBonusSettings `mapstructure:"win_streak_bonuses"`

	Session     SessionSettings     `mapstructure:"session"`
	Progression ProgressionSettings `mapstructure:"progression"`
}

// TierSettings переопределяет параметры одного уровня сложности
type TierSettings struct {
	Name               string  `mapstructure:"name"`
	QuestionCount      int     `mapstructure:"question_count"`
	TimePerQuestionSec int     `mapstructure:"time_per_question_sec"`
	MinCorrectToWin    int     `mapstructure:"min_correct_to_win"`
	Multiplier         float64 `mapstructure:"multiplier"`
}

// LevelSettings — порог опыта для уровня игрока
type LevelSettings struct {
	Level int    `mapstructure:"level"`
	XP    int64  `mapstructure:"xp"`
	Title string `mapstructure:"title"`
}

// StreakBonusSettings — бонус за серию не короче MinStreak
type StreakBonusSettings struct {
	MinStreak int     `mapstructure:"min_streak"`
	Bonus     float64 `mapstructure:"bonus"`
}

// SessionSettings — хранение и блокировки сессий
type SessionSettings struct {
	TTLMin      int `mapstructure:"ttl_min"`
	LockTTLSec  int `mapstructure:"lock_ttl_sec"`
	LockWaitMs  int `mapstructure:"lock_wait_ms"`
	StartPerMin int `mapstructure:"start_per_min"` // лимит стартов сессий на игрока
}

// ProgressionSettings — повторы и блокировки при начислении наград
type ProgressionSettings struct {
	MaxAttempts    int `mapstructure:"max_attempts"`
	BackoffMs      int `mapstructure:"backoff_ms"`
	LockTTLSec     int `mapstructure:"lock_ttl_sec"`
	LockWaitMs     int `mapstructure:"lock_wait_ms"`
	ResultCacheMin int `mapstructure:"result_cache_min"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// PostgresURL формирует URL подключения (нужен golang-migrate при запуске из CLI)
func (d *DatabaseConfig) PostgresURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load загружает конфигурацию из файла
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния

	// 1. Значения по умолчанию
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.readtimeout", 10)
	vip.SetDefault("server.writetimeout", 10)
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.migrations_path", "migrations")
	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("jwt.expirationHrs", 24)
	vip.SetDefault("engine.starved_tier_policy", "serve")
	vip.SetDefault("engine.session.ttl_min", 120)
	vip.SetDefault("engine.session.lock_ttl_sec", 5)
	vip.SetDefault("engine.session.lock_wait_ms", 300)
	vip.SetDefault("engine.session.start_per_min", 30)
	vip.SetDefault("engine.progression.max_attempts", 5)
	vip.SetDefault("engine.progression.backoff_ms", 50)
	vip.SetDefault("engine.progression.lock_ttl_sec", 10)
	vip.SetDefault("engine.progression.lock_wait_ms", 2000)
	vip.SetDefault("engine.progression.result_cache_min", 1440)

	// 2. Привязываем переменные окружения ЯВНО
	// Привязка для секции Database
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")
	vip.BindEnv("database.migrations_path", "DATABASE_MIGRATIONS_PATH")

	// Привязка для секции Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS") // Для массива строк
	vip.BindEnv("redis.addr", "REDIS_ADDR")   // Для одиночной строки
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	// Привязка для секции JWT
	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.issuer", "JWT_ISSUER")
	vip.BindEnv("jwt.expirationHrs", "JWT_EXPIRATIONHRS")

	// Привязка для Server
	vip.BindEnv("server.port", "SERVER_PORT")

	// Привязка для Engine (только скалярная политика; таблицы задаются файлом)
	vip.BindEnv("engine.starved_tier_policy", "ENGINE_STARVED_TIER_POLICY")
	vip.BindEnv("engine.min_questions_to_start", "ENGINE_MIN_QUESTIONS_TO_START")
	vip.BindEnv("engine.session.ttl_min", "ENGINE_SESSION_TTL_MIN")

	// 3. Устанавливаем путь к файлу конфигурации
	if configPath != "" {
		vip.SetConfigFile(configPath)
		// 4. Пытаемся прочитать файл конфигурации (не страшно, если его нет, т.к. есть BindEnv)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	// 5. Анмаршалим конфигурацию (Viper объединит значения из файла и привязанных env vars)
	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 6. Логирование конфигурации (только в debug режиме)
	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Port: %s", cfg.Database.Port)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s (mode: %s)", cfg.Redis.Addr, cfg.Redis.Mode)
		log.Printf("JWT Secret Set: %t", cfg.JWT.Secret != "")
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Starved Tier Policy: %s", cfg.Engine.StarvedTierPolicy)
		log.Printf("-----------------------------------------")
	}

	// 7. Проверка обязательных параметров
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет обязательные параметры конфигурации
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required in config (check JWT_SECRET env var)")
	}
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if len(c.Redis.Addrs) == 0 && c.Redis.Addr == "" {
		return fmt.Errorf("redis configuration requires addr or addrs (check REDIS_ADDR env var)")
	}
	switch c.Engine.StarvedTierPolicy {
	case "", "serve", "downgrade", "block":
	default:
		return fmt.Errorf("unknown engine.starved_tier_policy %q", c.Engine.StarvedTierPolicy)
	}
	return nil
}
