package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fardelhq/shop/internal/models"
)

type Config struct {
	SERVER_PORT int
	LOG_LEVEL   string

	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	JWT_SECRET     string
	REFRESH_SECRET string

	KAFKA_ADDRESS string

	ES_URL      string
	ES_USER     string
	ES_PASSWORD string

	CACHE_TYPE     string
	REDIS_ADDR     string
	REDIS_PASSWORD string
	REDIS_DB       int

	UPLOAD_DIR  string
	ACTIVE_APPS []string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		SERVER_PORT: envIntDefault("SERVER_PORT", 8080),
		LOG_LEVEL:   envDefault("LOG_LEVEL", "info"),

		DB_HOST:     os.Getenv("DB_HOST"),
		DB_PORT:     os.Getenv("DB_PORT"),
		DB_USER:     os.Getenv("DB_USER"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_NAME:     os.Getenv("DB_NAME"),

		JWT_SECRET:     os.Getenv("JWT_SECRET"),
		REFRESH_SECRET: os.Getenv("REFRESH_SECRET"),

		KAFKA_ADDRESS: os.Getenv("KAFKA_ADDRESS"),

		ES_URL:      os.Getenv("ES_URL"),
		ES_USER:     os.Getenv("ES_USER"),
		ES_PASSWORD: os.Getenv("ES_PASSWORD"),

		CACHE_TYPE:     envDefault("CACHE_TYPE", "simple"),
		REDIS_ADDR:     os.Getenv("REDIS_ADDR"),
		REDIS_PASSWORD: os.Getenv("REDIS_PASSWORD"),
		REDIS_DB:       envIntDefault("REDIS_DB", 0),

		UPLOAD_DIR:  envDefault("UPLOAD_DIR", "./uploads"),
		ACTIVE_APPS: csv(envDefault("ACTIVE_APPS", "ecommerce")),
	}

	return config, nil
}

// AppActive reports whether a named application module should be mounted.
func (c *Config) AppActive(name string) bool {
	for _, app := range c.ACTIVE_APPS {
		if app == name {
			return true
		}
	}
	return false
}

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

func InitDB(configuration *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		configuration.DB_USER, configuration.DB_PASSWORD,
		configuration.DB_HOST, configuration.DB_PORT, configuration.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Permission{},
		&models.Group{},
		&models.Product{},
		&models.Order{},
		&models.OrderLine{},
		&models.RevokedToken{},
	); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return SeedPermissions(db)
}

// SeedPermissions makes sure the base panel permissions exist, the way the
// original app registered them before serving the first request.
func SeedPermissions(db *gorm.DB) error {
	base := []models.Permission{
		{Name: "Can see orders", CodeName: "order_view"},
		{Name: "Can change order status", CodeName: "order_change"},
		{Name: "Can delete orders", CodeName: "order_delete"},
		{Name: "Can manage products", CodeName: "product_manage"},
	}
	for _, p := range base {
		perm := p
		if err := db.Where("code_name = ?", perm.CodeName).FirstOrCreate(&perm).Error; err != nil {
			return fmt.Errorf("seeding permissions: %w", err)
		}
	}
	return nil
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func csv(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
