package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	StorageBackendS3    = "s3"
	StorageBackendLocal = "local"

	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
)

const (
	defaultPageSize            = 50
	defaultImageConcurrency    = 4
	defaultNumThumbnailWorkers = 4
	defaultThumbnailSize       = 100
	defaultJobQueueSize        = 32
	defaultNumJobWorkers       = 2
	defaultLeaseTTLSeconds     = 3600

	defaultMatchThreshold     = 90.0
	defaultAuthMatchThreshold = 80.0
	defaultLabelMinConfidence = 85.0
)

type Config struct {
	// metadata store
	DatabaseDriver string
	DatabaseDSN    string

	// object storage
	StorageBackend   string
	S3Bucket         string
	AWSRegion        string
	AWSAccessKeyID   string
	AWSSecretKey     string
	MediaStoragePath string // local backend root

	// recognition oracle
	MatchThreshold     float64 // clustering decisions, favours precision
	AuthMatchThreshold float64 // interactive enroll/verify flows
	LabelMinConfidence float64

	// batch job
	PageSize         int
	ImageConcurrency int
	LeaseTTLSeconds  int

	// thumbnail generation settings
	ThumbnailSize       int
	NumThumbnailWorkers int

	// worker settings
	JobQueueSize  int
	NumJobWorkers int

	// http
	Port           string
	AllowedOrigins []string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val <= 0 || val > 100 {
		log.Printf("Warning: Invalid %s '%s'. Using default %.1f. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	driver := strings.ToLower(getEnvOrDefault("DATABASE_DRIVER", DatabaseDriverSQLite))
	if driver != DatabaseDriverSQLite && driver != DatabaseDriverPostgres {
		return Config{}, fmt.Errorf("unsupported DATABASE_DRIVER '%s'", driver)
	}
	dsn := getEnvOrDefault("DATABASE_DSN", "facealbums.db")

	backend := strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", StorageBackendLocal))
	if backend != StorageBackendS3 && backend != StorageBackendLocal {
		return Config{}, fmt.Errorf("unsupported STORAGE_BACKEND '%s'", backend)
	}
	bucket := os.Getenv("S3_BUCKET_NAME")
	if backend == StorageBackendS3 && bucket == "" {
		return Config{}, fmt.Errorf("S3_BUCKET_NAME is required when STORAGE_BACKEND is s3")
	}

	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	var origins []string
	for _, o := range strings.Split(getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:5173"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	cfg := Config{
		DatabaseDriver:      driver,
		DatabaseDSN:         dsn,
		StorageBackend:      backend,
		S3Bucket:            bucket,
		AWSRegion:           getEnvOrDefault("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:        os.Getenv("AWS_SECRET_ACCESS_KEY"),
		MediaStoragePath:    absMediaStorage,
		MatchThreshold:      getEnvFloatOrDefault("FACE_MATCH_THRESHOLD", defaultMatchThreshold),
		AuthMatchThreshold:  getEnvFloatOrDefault("AUTH_MATCH_THRESHOLD", defaultAuthMatchThreshold),
		LabelMinConfidence:  getEnvFloatOrDefault("LABEL_MIN_CONFIDENCE", defaultLabelMinConfidence),
		PageSize:            getEnvIntOrDefault("PAGE_SIZE", defaultPageSize),
		ImageConcurrency:    getEnvIntOrDefault("IMAGE_CONCURRENCY", defaultImageConcurrency),
		LeaseTTLSeconds:     getEnvIntOrDefault("JOB_LEASE_TTL_SECONDS", defaultLeaseTTLSeconds),
		ThumbnailSize:       getEnvIntOrDefault("THUMBNAIL_SIZE", defaultThumbnailSize),
		NumThumbnailWorkers: getEnvIntOrDefault("NUM_THUMBNAIL_WORKERS", defaultNumThumbnailWorkers),
		JobQueueSize:        getEnvIntOrDefault("JOB_QUEUE_SIZE", defaultJobQueueSize),
		NumJobWorkers:       getEnvIntOrDefault("NUM_JOB_WORKERS", defaultNumJobWorkers),
		Port:                getEnvOrDefault("PORT", "8080"),
		AllowedOrigins:      origins,
	}

	return cfg, nil
}
