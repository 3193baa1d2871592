package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultDocstoreDriver = "mongo"
	defaultMongoURI       = "mongodb://localhost:27017"
	defaultMongoDB        = "campusmart"
	defaultRedisAddr      = "localhost:6379"
	defaultJWTSecret      = "change-me-in-production"
	defaultAppPort        = "8080"
	defaultGRPCPort       = "9090"
	defaultAppEnv         = "local"
	defaultPlaceholderURL = "https://via.placeholder.com/400x400/E57A79/FFFFFF?text=Product+Image"
)

var (
	loadOnce sync.Once
	loadErr  error

	mu     sync.RWMutex
	values = defaultValues()
)

func Load() error {
	loadOnce.Do(func() {
		loadErr = loadFromFiles("config/app.json", ".env")
	})
	return loadErr
}

func defaultValues() map[string]string {
	return map[string]string{
		"DOCSTORE_DRIVER": defaultDocstoreDriver,
		"MONGO_URI":       defaultMongoURI,
		"MONGO_DB":        defaultMongoDB,
		"CACHE_DRIVER":    "redis",
		"REDIS_ADDR":      defaultRedisAddr,
		"REDIS_PASSWORD":  "",
		"JWT_SECRET":      defaultJWTSecret,
		"APP_PORT":        defaultAppPort,
		"GRPC_PORT":       defaultGRPCPort,
		"APP_ENV":         defaultAppEnv,
	}
}

// ── Application ──────────────────────────────────────────────────────────────

func AppPort() string {
	_ = Load()
	return get("APP_PORT", defaultAppPort)
}

func GRPCPort() string {
	_ = Load()
	return get("GRPC_PORT", defaultGRPCPort)
}

func AppEnv() string {
	_ = Load()
	return get("APP_ENV", defaultAppEnv)
}

func IsProduction() bool {
	switch AppEnv() {
	case "production", "prod":
		return true
	}
	return false
}

// ── Document store ───────────────────────────────────────────────────────────

// DocstoreDriver is "mongo" or "memory".
func DocstoreDriver() string {
	_ = Load()

	driver := strings.ToLower(get("DOCSTORE_DRIVER", defaultDocstoreDriver))
	switch driver {
	case "mongo", "memory":
		return driver
	default:
		return defaultDocstoreDriver
	}
}

func MongoURI() string {
	_ = Load()
	return get("MONGO_URI", defaultMongoURI)
}

func MongoDB() string {
	_ = Load()
	return get("MONGO_DB", defaultMongoDB)
}

// DocstorePollInterval is used by live queries when the server has no
// change streams (standalone mongod).
func DocstorePollInterval() time.Duration {
	return Duration("DOCSTORE_POLL_INTERVAL", 2*time.Second)
}

// LogToMongo enables the MongoDB log sink.
func LogToMongo() bool {
	return Bool("LOG_MONGO", false)
}

// ── Cache / sessions ─────────────────────────────────────────────────────────

// CacheDriver is "redis" or "memory".
func CacheDriver() string {
	_ = Load()
	if strings.ToLower(get("CACHE_DRIVER", "redis")) == "memory" {
		return "memory"
	}
	return "redis"
}

func RedisAddr() string {
	_ = Load()
	return get("REDIS_ADDR", defaultRedisAddr)
}

func RedisPassword() string {
	_ = Load()
	return get("REDIS_PASSWORD", "")
}

func SessionTTL() time.Duration {
	return Duration("SESSION_TTL", 24*time.Hour)
}

// ── Identity ─────────────────────────────────────────────────────────────────

func JWTSecret() string {
	_ = Load()
	return get("JWT_SECRET", defaultJWTSecret)
}

func JWTTTL() time.Duration {
	return Duration("JWT_TTL", 24*time.Hour)
}

func AuthMaxAttempts() int {
	return Int("AUTH_MAX_ATTEMPTS", 5)
}

func AuthAttemptWindow() time.Duration {
	return Duration("AUTH_ATTEMPT_WINDOW", 15*time.Minute)
}

func AdminEmail() string    { _ = Load(); return get("ADMIN_EMAIL", "admin@campusmart.local") }
func AdminPassword() string { _ = Load(); return get("ADMIN_PASSWORD", "") }
func AdminName() string     { _ = Load(); return get("ADMIN_NAME", "Administrator") }

// ── Storage ──────────────────────────────────────────────────────────────────

// StorageDefault is "local", "s3" or "none".
func StorageDefault() string {
	_ = Load()
	return get("STORAGE_DISK", "local")
}

func StorageLocalRoot() string {
	_ = Load()
	return get("STORAGE_LOCAL_ROOT", "storage")
}

func StorageURL() string {
	_ = Load()
	return get("STORAGE_URL", "http://localhost:8080/storage")
}

func StorageS3Bucket() string   { _ = Load(); return get("S3_BUCKET", "") }
func StorageS3Region() string   { _ = Load(); return get("S3_REGION", "us-east-1") }
func StorageS3Key() string      { _ = Load(); return get("S3_KEY", "") }
func StorageS3Secret() string   { _ = Load(); return get("S3_SECRET", "") }
func StorageS3Endpoint() string { _ = Load(); return get("S3_ENDPOINT", "") }
func StorageS3URL() string      { _ = Load(); return get("S3_URL", "") }

// CORSOrigins lists the browser origins allowed to call the API with the
// session cookie. "*" reflects any origin and is meant for development.
func CORSOrigins() []string {
	_ = Load()
	var out []string
	for _, o := range strings.Split(get("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func PlaceholderImageURL() string {
	_ = Load()
	return get("PLACEHOLDER_IMAGE_URL", defaultPlaceholderURL)
}

// ── Loading ──────────────────────────────────────────────────────────────────

func loadFromFiles(configPath, envPath string) error {
	loaded := defaultValues()

	if err := mergeJSONConfig(configPath, loaded); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
	}

	if err := mergeDotEnv(envPath, loaded); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
	}

	mergeEnviron(loaded)

	mu.Lock()
	values = loaded
	mu.Unlock()

	return nil
}

func mergeJSONConfig(path string, out map[string]string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var raw map[string]interface{}
	if err := json.NewDecoder(file).Decode(&raw); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	for key, val := range raw {
		var s string
		switch v := val.(type) {
		case string:
			s = v
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(v)
		default:
			continue
		}

		k := strings.ToUpper(strings.TrimSpace(key))
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(s)
	}

	return nil
}

func mergeDotEnv(path string, out map[string]string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue
		}

		key := strings.ToUpper(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}
		out[key] = value
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	return nil
}

// mergeEnviron lets real environment variables win over both files.
func mergeEnviron(out map[string]string) {
	for key := range out {
		if v, ok := os.LookupEnv(key); ok {
			out[key] = v
		}
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if _, known := out[k]; !known && isAppKey(k) {
			out[k] = v
		}
	}
}

var appKeyPrefixes = []string{
	"APP_", "GRPC_", "DOCSTORE_", "MONGO_", "CACHE_", "REDIS_", "JWT_", "SESSION_",
	"AUTH_", "ADMIN_", "STORAGE_", "S3_", "PLACEHOLDER_", "LOG_", "MAX_", "CORS_", "RATE_",
}

func isAppKey(k string) bool {
	for _, p := range appKeyPrefixes {
		if strings.HasPrefix(k, p) {
			return true
		}
	}
	return false
}

func get(key, fallback string) string {
	mu.RLock()
	defer mu.RUnlock()

	if value := strings.TrimSpace(values[key]); value != "" {
		return value
	}

	return fallback
}

// Get reads any config key by name with an optional fallback.
// Keys from .env and app.json are available after config.Load().
func Get(key, fallback string) string {
	_ = Load()
	return get(key, fallback)
}

// Int reads an integer key; malformed values yield fallback.
func Int(key string, fallback int) int {
	n, err := strconv.Atoi(Get(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

// Bool reads a boolean key ("true", "1", ...).
func Bool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(Get(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

// Duration reads a Go duration string ("90s", "2h").
func Duration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(Get(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Set overrides a key at runtime. Intended for tests and CLI flags.
func Set(key, value string) {
	_ = Load()
	mu.Lock()
	values[strings.ToUpper(key)] = value
	mu.Unlock()
}
