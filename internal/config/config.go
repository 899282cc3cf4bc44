package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	Addr          string
	JWTSecret     string
	JWTTTLMin     int
	DBDriver      string
	DBDsn         string
	TypingIdleSec int
	PageSize      int
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val != "" {
		return val
	}
	return def
}

func MustLoad() Config {
	jwtttl, _ := strconv.Atoi(getenv("JWT_TTL_MIN", "1440"))
	typingIdle, _ := strconv.Atoi(getenv("TYPING_IDLE_SEC", "3"))
	pageSize, _ := strconv.Atoi(getenv("PAGE_SIZE", "30"))

	cfg := Config{
		Addr:          getenv("HTTP_ADDR", ":8080"),
		JWTSecret:     getenv("JWT_SECRET", ""),
		JWTTTLMin:     jwtttl,
		DBDriver:      getenv("DB_DRIVER", "sqlite"),
		DBDsn:         getenv("DB_DSN", "file:vartalap.db?_pragma=foreign_keys(ON)"),
		TypingIdleSec: typingIdle,
		PageSize:      pageSize,
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	return cfg
}
