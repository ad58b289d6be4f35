package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env      string
	HTTPPort string

	BackendURL     string
	BackendTimeout time.Duration
	BackendJWTKey  string
	OperatorEmail  string

	CameraDriver    string
	CameraCommand   string
	CameraStillPath string
	JPEGQuality     int

	QueueBackend string
	RedisAddr    string
	DatabaseURL  string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	RateLimitPerMin   int
	CORSOrigins       []string
	RosterLegacyBadge bool
}

// Load reads an optional .env file and returns configuration populated from
// environment variables with sensible defaults.
func Load() App {
	// .env is optional
	_ = godotenv.Load()

	return App{
		Env:                 getEnv("APP_ENV", "dev"),
		HTTPPort:            getEnv("HTTP_PORT", "8081"),
		BackendURL:          strings.TrimSuffix(getEnv("BACKEND_URL", "http://localhost:8000/api"), "/"),
		BackendTimeout:      durationEnv("BACKEND_TIMEOUT", 30*time.Second),
		BackendJWTKey:       getEnv("BACKEND_JWT_KEY", ""),
		OperatorEmail:       getEnv("OPERATOR_EMAIL", ""),
		CameraDriver:        getEnv("CAMERA_DRIVER", "exec"),
		CameraCommand:       getEnv("CAMERA_COMMAND", "ffmpeg -loglevel error -f v4l2 -video_size {width}x{height} -i /dev/video0 -frames:v 1 -f image2pipe -vcodec mjpeg -"),
		CameraStillPath:     getEnv("CAMERA_STILL_PATH", "./testdata/still.jpg"),
		JPEGQuality:         intEnv("JPEG_QUALITY", 92),
		QueueBackend:        getEnv("QUEUE_BACKEND", "memory"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		CloudinaryCloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		CloudinaryFolder:    getEnv("CLOUDINARY_FOLDER", "facedesk/attempts"),
		RateLimitPerMin:     intEnv("RATE_LIMIT_PER_MIN", 120),
		CORSOrigins:         listEnv("CORS_ORIGINS"),
		RosterLegacyBadge:   boolEnv("ROSTER_LEGACY_BADGE", true),
	}
}

// Production reports whether the app runs in a production environment.
func (a App) Production() bool {
	return a.Env == "production" || a.Env == "prod"
}

// CloudinaryEnabled reports whether all Cloudinary credentials are set.
func (a App) CloudinaryEnabled() bool {
	return a.CloudinaryCloudName != "" && a.CloudinaryAPIKey != "" && a.CloudinaryAPISecret != ""
}

// Validate rejects settings the kiosk cannot run with.
func (a App) Validate() error {
	if a.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	switch a.CameraDriver {
	case "exec", "still":
	default:
		return fmt.Errorf("CAMERA_DRIVER must be exec or still, got %q", a.CameraDriver)
	}
	switch a.QueueBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("QUEUE_BACKEND must be memory or redis, got %q", a.QueueBackend)
	}
	if a.JPEGQuality < 1 || a.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be within 1..100, got %d", a.JPEGQuality)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}

// listEnv splits a comma-separated value, dropping blanks.
func listEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
