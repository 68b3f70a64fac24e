package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Batch    BatchConfig
	Tiles    TilesConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// BatchConfig holds settings for the offline aggregation pass.
// AdjacencyToleranceM is the maximum boundary-to-boundary gap, in meters,
// at which two same-owner parcels are still considered touching. The value
// is empirical and must stay configurable rather than baked into the engine.
type BatchConfig struct {
	AdjacencyToleranceM float64
	Workers             int
	PageSize            int
	ServerURL           string
}

// TilesConfig holds tile encoding and caching configuration.
// ParcelMinZoom is the first zoom level at which raw parcels are served;
// below it the tile layer switches to aggregated clusters.
type TilesConfig struct {
	ParcelMinZoom  int
	CacheTTL       time.Duration
	CacheSize      int
	BufferFraction float64
	EncodeTimeout  time.Duration
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "parcels")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("BATCH_ADJACENCY_TOLERANCE_M", 11.0)
	v.SetDefault("BATCH_WORKERS", 4)
	v.SetDefault("BATCH_PAGE_SIZE", 5000)
	v.SetDefault("BATCH_SERVER_URL", "")
	v.SetDefault("TILE_PARCEL_MIN_ZOOM", 13)
	v.SetDefault("TILE_CACHE_TTL", "10m")
	v.SetDefault("TILE_CACHE_SIZE", 4096)
	v.SetDefault("TILE_BUFFER_FRACTION", 0.0625)
	v.SetDefault("TILE_ENCODE_TIMEOUT", "10s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")

	// Bind environment variables
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		Batch: BatchConfig{
			AdjacencyToleranceM: v.GetFloat64("BATCH_ADJACENCY_TOLERANCE_M"),
			Workers:             v.GetInt("BATCH_WORKERS"),
			PageSize:            v.GetInt("BATCH_PAGE_SIZE"),
			ServerURL:           v.GetString("BATCH_SERVER_URL"),
		},
		Tiles: TilesConfig{
			ParcelMinZoom:  v.GetInt("TILE_PARCEL_MIN_ZOOM"),
			CacheTTL:       v.GetDuration("TILE_CACHE_TTL"),
			CacheSize:      v.GetInt("TILE_CACHE_SIZE"),
			BufferFraction: v.GetFloat64("TILE_BUFFER_FRACTION"),
			EncodeTimeout:  v.GetDuration("TILE_ENCODE_TIMEOUT"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	if c.Batch.AdjacencyToleranceM <= 0 {
		return fmt.Errorf("BATCH_ADJACENCY_TOLERANCE_M must be positive")
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("BATCH_WORKERS must be at least 1")
	}
	if c.Batch.PageSize < 1 {
		return fmt.Errorf("BATCH_PAGE_SIZE must be at least 1")
	}

	if c.Tiles.ParcelMinZoom < 0 || c.Tiles.ParcelMinZoom > 22 {
		return fmt.Errorf("TILE_PARCEL_MIN_ZOOM must be between 0 and 22")
	}
	if c.Tiles.CacheTTL <= 0 {
		return fmt.Errorf("TILE_CACHE_TTL must be positive")
	}
	if c.Tiles.CacheSize < 1 {
		return fmt.Errorf("TILE_CACHE_SIZE must be at least 1")
	}
	if c.Tiles.BufferFraction < 0 || c.Tiles.BufferFraction > 0.5 {
		return fmt.Errorf("TILE_BUFFER_FRACTION must be between 0 and 0.5")
	}
	if c.Tiles.EncodeTimeout <= 0 {
		return fmt.Errorf("TILE_ENCODE_TIMEOUT must be positive")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
