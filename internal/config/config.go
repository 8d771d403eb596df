package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	InventoryBackendRedis     = "redis"
	InventoryBackendPostgres  = "postgres"
	InventoryBackendFirestore = "firestore"

	BlobBackendLocal = "local"
	BlobBackendGCS   = "gcs"

	MergeModeAuto    = "auto"
	MergeModeConfirm = "confirm"
)

type Config struct {
	Env              string
	HTTPAddr         string
	InventoryBackend string
	Database         DatabaseConfig
	Redis            RedisConfig
	Firestore        FirestoreConfig
	Blob             BlobConfig
	Vision           VisionConfig
	Image            ImageConfig
	Ingest           IngestConfig
	AMQPURL          string
	OTLPEndpoint     string
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the lib/pq keyword/value connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
}

type FirestoreConfig struct {
	ProjectID       string
	Collection      string
	CredentialsFile string
}

type BlobConfig struct {
	Backend          string
	Prefix           string
	Dir              string
	PublicBaseURL    string
	GCSBucket        string
	GCSPublicBaseURL string
	CredentialsFile  string
	Retention        time.Duration
	SweepInterval    time.Duration
}

type VisionConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Prompt    string
}

type ImageConfig struct {
	MaxDimension int
	JPEGQuality  int
	MaxPixels    int
}

type IngestConfig struct {
	MergeMode        string
	MaxUploadBytes   int64
	MaxConcurrent    int
	UploadTimeout    time.Duration
	InferenceTimeout time.Duration
	StoreTimeout     time.Duration
}

const DefaultVisionPrompt = "Return only a JSON object of the grocery items visible in this image, " +
	"mapping each item name to its integer quantity, for example {\"milk\": 2, \"eggs\": 12}."

func Load() *Config {
	return &Config{
		Env:              getEnv("ENV", "development"),
		HTTPAddr:         normalizeAddr(getEnv("HTTP_ADDR", getEnv("PORT", ":3000"))),
		InventoryBackend: getEnv("INVENTORY_BACKEND", InventoryBackendRedis),
		Database: DatabaseConfig{
			Host:            getEnv("DATABASE_HOST", "localhost"),
			Port:            getEnv("DATABASE_PORT", "5432"),
			User:            getEnv("DATABASE_USER", "postgres"),
			Password:        getEnv("DATABASE_PASSWORD", "postgres"),
			Name:            getEnv("DATABASE_NAME", "pantry"),
			SSLMode:         getEnv("DATABASE_SSL_MODE", "disable"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:       getEnv("FIRESTORE_PROJECT_ID", ""),
			Collection:      getEnv("FIRESTORE_COLLECTION", "inventory"),
			CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},
		Blob: BlobConfig{
			Backend:          getEnv("BLOB_BACKEND", BlobBackendLocal),
			Prefix:           getEnv("BLOB_PREFIX", "ingest/"),
			Dir:              getEnv("BLOB_DIR", "data/blobs"),
			PublicBaseURL:    getEnv("BLOB_PUBLIC_BASE_URL", "http://localhost:3000/blobs"),
			GCSBucket:        getEnv("GCS_BUCKET", ""),
			GCSPublicBaseURL: getEnv("GCS_PUBLIC_BASE_URL", ""),
			CredentialsFile:  getEnv("GCS_CREDENTIALS_FILE", ""),
			Retention:        getDuration("BLOB_RETENTION", 24*time.Hour),
			SweepInterval:    getDuration("BLOB_SWEEP_INTERVAL", time.Hour),
		},
		Vision: VisionConfig{
			APIKey:    getEnv("OPENAI_API_KEY", ""),
			BaseURL:   getEnv("OPENAI_BASE_URL", ""),
			Model:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens: getInt("VISION_MAX_TOKENS", 300),
			Prompt:    getEnv("VISION_PROMPT", DefaultVisionPrompt),
		},
		Image: ImageConfig{
			MaxDimension: getInt("IMAGE_MAX_DIMENSION", 512),
			JPEGQuality:  getInt("IMAGE_JPEG_QUALITY", 85),
			MaxPixels:    getInt("IMAGE_MAX_PIXELS", 40_000_000),
		},
		Ingest: IngestConfig{
			MergeMode:        getEnv("INGEST_MERGE_MODE", MergeModeAuto),
			MaxUploadBytes:   int64(getInt("INGEST_MAX_UPLOAD_BYTES", 10<<20)),
			MaxConcurrent:    getInt("INGEST_MAX_CONCURRENT", 0),
			UploadTimeout:    getDuration("UPLOAD_TIMEOUT", 15*time.Second),
			InferenceTimeout: getDuration("INFERENCE_TIMEOUT", 60*time.Second),
			StoreTimeout:     getDuration("STORE_TIMEOUT", 5*time.Second),
		},
		AMQPURL:      getEnv("AMQP_URL", ""),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// AutoMerge reports whether ingestion results are merged into the inventory
// without a confirmation round trip.
func (c *Config) AutoMerge() bool {
	return c.Ingest.MergeMode != MergeModeConfirm
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func normalizeAddr(addr string) string {
	if addr == "" {
		return addr
	}

	if addr[0] == ':' || addr[0] == '[' {
		return addr
	}

	for _, r := range addr {
		if r < '0' || r > '9' {
			return addr
		}
	}

	return ":" + addr
}
