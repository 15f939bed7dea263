package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var defaults = map[string]interface{}{
	"SERVER_PORT": "5000",
	"CORS_ORIGIN": "http://localhost:3000",

	"DATABASE_DRIVER":    "postgres",
	"SQLITE_PATH":        "relatim.db",
	"POSTGRES_HOST":      "localhost",
	"POSTGRES_PORT":      "5432",
	"POSTGRES_USER":      "postgres",
	"POSTGRES_PASSWORD":  "postgres",
	"POSTGRES_DB":        "relatim_chat",
	"POSTGRES_SSLMODE":   "disable",
	"POSTGRES_MAX_CONNS": 20,

	"REDIS_HOST": "localhost",
	"REDIS_PORT": "6379",
	"REDIS_DB":   "0,1",

	"RABBITMQ_HOST": "",
	"RABBITMQ_PORT": "5672",
	"RABBITMQ_USER": "guest",
	"EVENT_MODE":    "DISABLE",
	"EVENT_LOG_DIR": "log",

	"JWT_ACCESS_EXPIRE":  15,
	"JWT_REFRESH_EXPIRE": 10080,
	"OTP_ISSUER":         "relatim",

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "text",

	"STORE_TIMEOUT":        "10s",
	"SOCKET_PING_INTERVAL": "25s",
	"SOCKET_PING_TIMEOUT":  "20s",
}

// Load reads .env (if present), the optional config.yaml and the process
// environment. Environment variables win over the file.
func Load() error {
	_ = godotenv.Load()

	for key, value := range defaults {
		viper.SetDefault(key, value)
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/app/config")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	return nil
}

// Config returns the string value for key.
func Config(key string) string {
	return viper.GetString(key)
}

func Int(key string) int {
	return viper.GetInt(key)
}

func Bool(key string) bool {
	return viper.GetBool(key)
}

func Duration(key string) time.Duration {
	return viper.GetDuration(key)
}

// Set overrides a value at runtime. Used by tests and the sqlite dev mode.
func Set(key string, value interface{}) {
	viper.Set(key, value)
}
