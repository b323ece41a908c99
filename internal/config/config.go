package config

import (
	"time"

	"callbridge-backend/pkg/constants"
	"callbridge-backend/pkg/env"
)

// Config holds the full service configuration, loaded from environment
type Config struct {
	Env  string
	Port int

	Cockroach CockroachConfig
	Cassandra CassandraConfig
	Redis     RedisConfig
	MinIO     MinIOConfig

	JWTSecret            string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration

	CallRingTimeout time.Duration
}

// CockroachConfig holds CockroachDB connection settings
type CockroachConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// CassandraConfig holds Cassandra connection settings
type CassandraConfig struct {
	Hosts    []string
	Keyspace string
	Username string
	Password string
	Timeout  time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// MinIOConfig holds MinIO object storage settings
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:  env.GetString("ENV", "development"),
		Port: env.GetInt("PORT", 8080),

		Cockroach: CockroachConfig{
			Host:     env.GetString("DB_HOST", "localhost"),
			Port:     env.GetInt("DB_PORT", 26257),
			User:     env.GetString("DB_USER", "root"),
			Password: env.GetStringFromFile("DB_PASSWORD", ""),
			Database: env.GetString("DB_NAME", "callbridge"),
			SSLMode:  env.GetString("DB_SSL_MODE", "disable"),
		},

		Cassandra: CassandraConfig{
			Hosts:    []string{env.GetString("CASSANDRA_HOST", "localhost")},
			Keyspace: env.GetString("CASSANDRA_KEYSPACE", "callbridge_ks"),
			Username: env.GetString("CASSANDRA_USER", ""),
			Password: env.GetStringFromFile("CASSANDRA_PASSWORD", ""),
			Timeout:  env.GetDuration("CASSANDRA_TIMEOUT", 10*time.Second),
		},

		Redis: RedisConfig{
			Host:     env.GetString("REDIS_HOST", "localhost"),
			Port:     env.GetInt("REDIS_PORT", 6379),
			Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
			DB:       env.GetInt("REDIS_DB", 0),
			PoolSize: env.GetInt("REDIS_POOL_SIZE", 10),
		},

		MinIO: MinIOConfig{
			Endpoint:  env.GetString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env.GetString("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env.GetStringFromFile("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    env.GetString("MINIO_BUCKET", "avatars"),
			UseSSL:    env.GetBool("MINIO_USE_SSL", false),
		},

		JWTSecret:            env.GetStringFromFile("JWT_SECRET", ""),
		AccessTokenDuration:  env.GetDuration("ACCESS_TOKEN_DURATION", constants.AccessTokenExpiry),
		RefreshTokenDuration: env.GetDuration("REFRESH_TOKEN_DURATION", constants.RefreshTokenExpiry),

		CallRingTimeout: env.GetDuration("CALL_RING_TIMEOUT", constants.CallRingTimeout),
	}
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
