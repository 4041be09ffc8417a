package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит все настройки Warehouse Loader Service
// Включает конфигурацию для PostgreSQL хранилища, Redis, Kafka, cron и параметры загрузки
type Config struct {
	Database     DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Server       ServerConfig
	JWT          JWTConfig
	CronSchedule CronScheduleConfig
	Load         LoadConfig
	LogLevel     string
	LogstashAddr string
}

// DatabaseConfig - настройки подключения к PostgreSQL хранилищу
// search_path указывает на схемы dw и staging, таблицы адресуются без префикса
type DatabaseConfig struct {
	Driver     string // postgres или sqlite (локальные прогоны)
	SQLitePath string // Путь к файлу SQLite при Driver=sqlite
	Host       string // Хост PostgreSQL
	Port       string // Порт PostgreSQL
	User       string // Имя пользователя БД
	Password   string // Пароль БД
	DBName     string // Имя базы данных хранилища
	SSLMode    string // Режим SSL (disable/require/verify-full)
	SearchPath string // Схемы для поиска таблиц (dw,staging)
}

// RedisConfig - настройки подключения к Redis
// Используется для блокировки одновременных запусков загрузки
type RedisConfig struct {
	Enabled  bool   // Без Redis запуски не защищены блокировкой (один процесс)
	Host     string // Хост Redis
	Port     string // Порт Redis
	Password string // Пароль Redis
	DB       int    // Номер БД Redis
}

// KafkaConfig - настройки Kafka для публикации событий о загрузках
type KafkaConfig struct {
	Enabled bool     // Публиковать события о завершении запусков
	Brokers []string // Список брокеров Kafka (формат: host:port)
	Topic   string   // Топик событий загрузки (dw_load_events)
}

// ServerConfig - настройки HTTP сервера административного API
type ServerConfig struct {
	Host string
	Port string
}

// JWTConfig - секрет для проверки токенов администраторов
type JWTConfig struct {
	Secret string
}

// CronScheduleConfig - настройки расписания cron задач
type CronScheduleConfig struct {
	RunAll string // Расписание полной загрузки (например, "30 2 * * *" каждый день в 02:30)
}

// LoadConfig - параметры стадий загрузки хранилища
type LoadConfig struct {
	DateStart        time.Time     // Первая дата календарного измерения
	DateHorizonDays  int           // Сколько дней вперед от сегодня заполнять календарь
	StageTimeout     time.Duration // Таймаут одной стадии
	LockTTL          time.Duration // Время жизни блокировки запуска в Redis
	BatchSize        int           // Размер пакета вставки
	DefaultCountry   string        // Страна, дописываемая к адресу клиента (может быть пустой)
	AutoMigrate      bool          // Создавать таблицы через GORM AutoMigrate при старте
	RejectNoCustomer bool          // Отклонять корзины без найденного клиента вместо NULL ссылки
}

// Load загружает конфигурацию из переменных окружения
// Файл .env читается при наличии, уже заданные переменные имеют приоритет
func Load() (*Config, error) {
	_ = godotenv.Load()

	dateStart, err := time.Parse(time.DateOnly, getEnv("LOAD_DATE_START", "2020-01-01"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOAD_DATE_START: %w", err)
	}

	stageTimeout, err := getEnvDuration("LOAD_STAGE_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	lockTTL, err := getEnvDuration("LOAD_LOCK_TTL", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			SQLitePath: getEnv("DB_SQLITE_PATH", "warehouse.db"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", "postgres"),
			DBName:     getEnv("DB_NAME", "ecommerce_dw"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SearchPath: getEnv("DB_SEARCH_PATH", "dw,staging"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 3), // Отдельная БД для блокировок загрузки
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_TOPIC", "dw_load_events"),
		},
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		CronSchedule: CronScheduleConfig{
			RunAll: getEnv("CRON_LOAD_SCHEDULE", "30 2 * * *"),
		},
		Load: LoadConfig{
			DateStart:        dateStart,
			DateHorizonDays:  getEnvInt("LOAD_DATE_HORIZON_DAYS", 365),
			StageTimeout:     stageTimeout,
			LockTTL:          lockTTL,
			BatchSize:        getEnvInt("LOAD_BATCH_SIZE", 500),
			DefaultCountry:   getEnv("LOAD_DEFAULT_COUNTRY", ""),
			AutoMigrate:      getEnvBool("LOAD_AUTO_MIGRATE", false),
			RejectNoCustomer: getEnvBool("LOAD_REJECT_UNRESOLVED_CUSTOMER", false),
		},
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogstashAddr: getEnv("LOGSTASH_ADDR", ""),
	}

	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	if cfg.Load.BatchSize <= 0 {
		return nil, fmt.Errorf("LOAD_BATCH_SIZE must be positive, got %d", cfg.Load.BatchSize)
	}
	if cfg.Load.DateHorizonDays < 0 {
		return nil, fmt.Errorf("LOAD_DATE_HORIZON_DAYS must not be negative, got %d", cfg.Load.DateHorizonDays)
	}

	return cfg, nil
}

// DSN возвращает строку подключения к PostgreSQL в формате libpq
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode, c.SearchPath,
	)
}

// Address возвращает адрес Redis в формате host:port
func (c *RedisConfig) Address() string {
	return c.Host + ":" + c.Port
}

// Address возвращает адрес HTTP сервера
func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает значение переменной окружения как int
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration разбирает длительность в формате time.ParseDuration (например, "10m")
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, value)
	}
	return d, nil
}
