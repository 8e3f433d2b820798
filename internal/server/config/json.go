package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/secureshare/internal/flagx"
	"github.com/dmitrijs2005/secureshare/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations use timex.Duration so
// both "15m" and integer nanoseconds are accepted. Keys absent from the file
// keep their current values.
type JsonConfig struct {
	HTTPAddr       string         `json:"http_addr"`
	HealthAddr     string         `json:"health_addr"`
	Storage        string         `json:"storage"`
	DatabaseDSN    string         `json:"database_dsn"`
	JWTSecret      string         `json:"jwt_secret"`
	PasscodeSecret string         `json:"passcode_secret"`
	BlobBackend    string         `json:"blob_backend"`
	S3Region       string         `json:"s3_region"`
	S3Endpoint     string         `json:"s3_endpoint"`
	S3AccessKey    string         `json:"s3_access_key"`
	S3SecretKey    string         `json:"s3_secret_key"`
	S3Bucket       string         `json:"s3_bucket"`
	S3PathStyle    bool           `json:"s3_path_style"`
	MinioEndpoint  string         `json:"minio_endpoint"`
	MinioAccessKey string         `json:"minio_access_key"`
	MinioSecretKey string         `json:"minio_secret_key"`
	MinioBucket    string         `json:"minio_bucket"`
	MinioUseSSL    bool           `json:"minio_use_ssl"`
	Notifier       string         `json:"notifier"`
	SQSQueueURL    string         `json:"sqs_queue_url"`
	SQSRegion      string         `json:"sqs_region"`
	SQSEndpoint    string         `json:"sqs_endpoint"`
	RateLimiter    string         `json:"rate_limiter"`
	RedisAddr      string         `json:"redis_addr"`
	RedisPassword  string         `json:"redis_password"`
	RedisDB        int            `json:"redis_db"`
	OTPTTL         timex.Duration `json:"otp_ttl"`
	MaxAttempts    int            `json:"max_attempts"`
	RateWindow     timex.Duration `json:"rate_window"`
	RateCap        int            `json:"rate_cap"`
	InvitationTTL  timex.Duration `json:"invitation_ttl"`
	UploadURLTTL   timex.Duration `json:"upload_url_ttl"`
	DownloadURLTTL timex.Duration `json:"download_url_ttl"`
	GrantTTL       timex.Duration `json:"grant_ttl"`
	MaxExpiryHours int            `json:"max_expiry_hours"`
	PublicBaseURL  string         `json:"public_base_url"`
	CORSOrigins    []string       `json:"cors_origins"`
	LogLevel       string         `json:"log_level"`
	LogFormat      string         `json:"log_format"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		HTTPAddr:       c.HTTPAddr,
		HealthAddr:     c.HealthAddr,
		Storage:        c.Storage,
		DatabaseDSN:    c.DatabaseDSN,
		JWTSecret:      c.JWTSecret,
		PasscodeSecret: c.PasscodeSecret,
		BlobBackend:    c.BlobBackend,
		S3Region:       c.S3Region,
		S3Endpoint:     c.S3Endpoint,
		S3AccessKey:    c.S3AccessKey,
		S3SecretKey:    c.S3SecretKey,
		S3Bucket:       c.S3Bucket,
		S3PathStyle:    c.S3PathStyle,
		MinioEndpoint:  c.MinioEndpoint,
		MinioAccessKey: c.MinioAccessKey,
		MinioSecretKey: c.MinioSecretKey,
		MinioBucket:    c.MinioBucket,
		MinioUseSSL:    c.MinioUseSSL,
		Notifier:       c.Notifier,
		SQSQueueURL:    c.SQSQueueURL,
		SQSRegion:      c.SQSRegion,
		SQSEndpoint:    c.SQSEndpoint,
		RateLimiter:    c.RateLimiter,
		RedisAddr:      c.RedisAddr,
		RedisPassword:  c.RedisPassword,
		RedisDB:        c.RedisDB,
		OTPTTL:         timex.Duration{Duration: c.OTPTTL},
		MaxAttempts:    c.MaxAttempts,
		RateWindow:     timex.Duration{Duration: c.RateWindow},
		RateCap:        c.RateCap,
		InvitationTTL:  timex.Duration{Duration: c.InvitationTTL},
		UploadURLTTL:   timex.Duration{Duration: c.UploadURLTTL},
		DownloadURLTTL: timex.Duration{Duration: c.DownloadURLTTL},
		GrantTTL:       timex.Duration{Duration: c.GrantTTL},
		MaxExpiryHours: c.MaxExpiryHours,
		PublicBaseURL:  c.PublicBaseURL,
		CORSOrigins:    c.CORSOrigins,
		LogLevel:       c.LogLevel,
		LogFormat:      c.LogFormat,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.HTTPAddr = j.HTTPAddr
	c.HealthAddr = j.HealthAddr
	c.Storage = j.Storage
	c.DatabaseDSN = j.DatabaseDSN
	c.JWTSecret = j.JWTSecret
	c.PasscodeSecret = j.PasscodeSecret
	c.BlobBackend = j.BlobBackend
	c.S3Region = j.S3Region
	c.S3Endpoint = j.S3Endpoint
	c.S3AccessKey = j.S3AccessKey
	c.S3SecretKey = j.S3SecretKey
	c.S3Bucket = j.S3Bucket
	c.S3PathStyle = j.S3PathStyle
	c.MinioEndpoint = j.MinioEndpoint
	c.MinioAccessKey = j.MinioAccessKey
	c.MinioSecretKey = j.MinioSecretKey
	c.MinioBucket = j.MinioBucket
	c.MinioUseSSL = j.MinioUseSSL
	c.Notifier = j.Notifier
	c.SQSQueueURL = j.SQSQueueURL
	c.SQSRegion = j.SQSRegion
	c.SQSEndpoint = j.SQSEndpoint
	c.RateLimiter = j.RateLimiter
	c.RedisAddr = j.RedisAddr
	c.RedisPassword = j.RedisPassword
	c.RedisDB = j.RedisDB
	c.OTPTTL = j.OTPTTL.Duration
	c.MaxAttempts = j.MaxAttempts
	c.RateWindow = j.RateWindow.Duration
	c.RateCap = j.RateCap
	c.InvitationTTL = j.InvitationTTL.Duration
	c.UploadURLTTL = j.UploadURLTTL.Duration
	c.DownloadURLTTL = j.DownloadURLTTL.Duration
	c.GrantTTL = j.GrantTTL.Duration
	c.MaxExpiryHours = j.MaxExpiryHours
	c.PublicBaseURL = j.PublicBaseURL
	c.CORSOrigins = j.CORSOrigins
	c.LogLevel = j.LogLevel
	c.LogFormat = j.LogFormat
}

// parseJson overlays the JSON file named by -c / -config onto config. With
// no flag nothing is loaded. An unreadable or malformed file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	// start from the current values so absent keys are kept
	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}
	c.apply(config)
}
