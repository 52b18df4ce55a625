// Package config reads the engine settings from the environment, after an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// Isolation modes for strategy runs.
const (
	IsolationProcess   = "process"
	IsolationInProcess = "inprocess"
)

// OCR engines.
const (
	OCRTesseract = "tesseract"
	OCRHTTP      = "http"
	OCRNone      = "none"
)

// Rasterizers.
const (
	RasterFitz     = "fitz"
	RasterPdftoppm = "pdftoppm"
)

// Config holds all engine configuration
type Config struct {
	Engine EngineConfig
	OCR    OCRConfig
	Log    LogConfig
}

type EngineConfig struct {
	Budget           time.Duration
	Workers          int
	Isolation        string
	ScannedMinTokens int
	IssuerFloor      float64
	EarlyExitMedian  float64
}

type OCRConfig struct {
	Engine       string
	URL          string
	TesseractBin string
	Lang         string
	DPI          int
	Enhance      bool
	Rasterizer   string
}

type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; variables already set
// win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Engine: EngineConfig{
			Budget:           getEnvAsDuration("STMT_BUDGET_MS", models.DefaultBudget),
			Workers:          getEnvAsInt("STMT_WORKERS", runtime.NumCPU()),
			Isolation:        strings.ToLower(getEnv("STMT_ISOLATION", IsolationProcess)),
			ScannedMinTokens: getEnvAsInt("STMT_SCANNED_MIN_TOKENS", 20),
			IssuerFloor:      getEnvAsFloat("STMT_ISSUER_FLOOR", 0.5),
			EarlyExitMedian:  getEnvAsFloat("STMT_EARLY_EXIT_MEDIAN", 9),
		},
		OCR: OCRConfig{
			Engine:       strings.ToLower(getEnv("STMT_OCR_ENGINE", OCRTesseract)),
			URL:          getEnv("STMT_OCR_URL", ""),
			TesseractBin: getEnv("STMT_TESSERACT_BIN", "tesseract"),
			Lang:         getEnv("STMT_OCR_LANG", "eng"),
			DPI:          getEnvAsInt("STMT_OCR_DPI", 300),
			Enhance:      getEnvAsBool("STMT_OCR_ENHANCE", true),
			Rasterizer:   strings.ToLower(getEnv("STMT_RASTERIZER", RasterFitz)),
		},
		Log: LogConfig{
			Level: getEnv("STMT_LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Engine.Isolation {
	case IsolationProcess, IsolationInProcess:
	default:
		return fmt.Errorf("STMT_ISOLATION must be %s or %s, got %q", IsolationProcess, IsolationInProcess, c.Engine.Isolation)
	}
	switch c.OCR.Engine {
	case OCRTesseract, OCRNone:
	case OCRHTTP:
		if c.OCR.URL == "" {
			return errors.New("STMT_OCR_URL is required when STMT_OCR_ENGINE=http")
		}
	default:
		return fmt.Errorf("unknown STMT_OCR_ENGINE %q", c.OCR.Engine)
	}
	switch c.OCR.Rasterizer {
	case RasterFitz, RasterPdftoppm:
	default:
		return fmt.Errorf("unknown STMT_RASTERIZER %q", c.OCR.Rasterizer)
	}
	if c.Engine.Budget <= 0 {
		return errors.New("STMT_BUDGET_MS must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration reads a whole number of milliseconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if ms, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
