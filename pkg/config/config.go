package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Recognition RecognitionConfig
	Storage     StorageConfig
	Intake      IntakeConfig
	Matching    MatchingConfig
	Logger      LoggerConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
	RefreshExp time.Duration
}

type RecognitionConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

type StorageConfig struct {
	Backend   string // disk | s3
	UploadDir string
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

type IntakeConfig struct {
	MaxConcurrent int
	StageTimeout  time.Duration
	StorageFolder string
	UnitID        string
}

type MatchingConfig struct {
	TolerancePercent float64
	WindowDays       int
	MaxCandidates    int
}

type LoggerConfig struct {
	Level string
}

func Load() (*Config, error) {
	// .env is optional; environment variables alone work for Docker/K8s.
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	jwtExp, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	refreshExp, _ := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168"))
	recognitionTimeout, _ := strconv.Atoi(getEnv("RECOGNITION_TIMEOUT_SECONDS", "90"))
	maxConcurrent, _ := strconv.Atoi(getEnv("INTAKE_MAX_CONCURRENT", "2"))
	stageTimeout, _ := strconv.Atoi(getEnv("INTAKE_STAGE_TIMEOUT_SECONDS", "120"))
	tolerance, _ := strconv.ParseFloat(getEnv("MATCHING_TOLERANCE_PERCENT", "5"), 64)
	windowDays, _ := strconv.Atoi(getEnv("MATCHING_WINDOW_DAYS", "90"))
	maxCandidates, _ := strconv.Atoi(getEnv("MATCHING_MAX_CANDIDATES", "100"))

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "docfiscal"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", "change-me-in-production"),
			Expiration: time.Duration(jwtExp) * time.Hour,
			RefreshExp: time.Duration(refreshExp) * time.Hour,
		},
		Recognition: RecognitionConfig{
			Endpoint: getEnv("RECOGNITION_ENDPOINT", "http://localhost:9090"),
			APIKey:   getEnv("RECOGNITION_API_KEY", ""),
			Timeout:  time.Duration(recognitionTimeout) * time.Second,
		},
		Storage: StorageConfig{
			Backend:   getEnv("STORAGE_BACKEND", "disk"),
			UploadDir: getEnv("STORAGE_UPLOAD_DIR", "uploads"),
			Endpoint:  getEnv("STORAGE_S3_ENDPOINT", ""),
			Region:    getEnv("STORAGE_S3_REGION", "auto"),
			Bucket:    getEnv("STORAGE_S3_BUCKET", ""),
			AccessKey: getEnv("STORAGE_S3_ACCESS_KEY", ""),
			SecretKey: getEnv("STORAGE_S3_SECRET_KEY", ""),
		},
		Intake: IntakeConfig{
			MaxConcurrent: maxConcurrent,
			StageTimeout:  time.Duration(stageTimeout) * time.Second,
			StorageFolder: getEnv("INTAKE_STORAGE_FOLDER", "documentos"),
			UnitID:        getEnv("INTAKE_UNIT_ID", "matriz"),
		},
		Matching: MatchingConfig{
			TolerancePercent: tolerance,
			WindowDays:       windowDays,
			MaxCandidates:    maxCandidates,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
