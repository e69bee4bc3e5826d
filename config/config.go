package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server Settings
	HOST    string
	AppPort string

	// Database Settings
	DBDriver    string
	DatabaseURL string

	// JWT Settings
	JWTSecret string

	// CORS Settings
	CORSAllowOrigins []string
}

// LoadConfig reads .env when present and falls back to process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	return &Config{
		HOST:    getEnv("HOST", ""),
		AppPort: getEnv("PORT", "3000"),

		DBDriver:    getEnv("DB_DRIVER", "sqlite"),
		DatabaseURL: getEnv("DATABASE_URL", "database.db"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		CORSAllowOrigins: splitList(getEnv("CORS_ALLOW_ORIGINS", "*")),
	}
}

func (c *Config) Addr() string {
	return c.HOST + ":" + c.AppPort
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
