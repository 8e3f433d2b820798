package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/secureshare/internal/flagx"
)

// parseFlags populates the most commonly overridden fields from short flags.
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-g string   gRPC health bind address
//	-d string   PostgreSQL DSN
//	-m string   record store: postgres | memory
//	-b string   blob backend: s3 | minio
//	-n string   notifier: log | sqs
//	-l string   rate limiter: store | redis
//	-s string   JWT HMAC secret
//	-k string   passcode hashing secret
//	-u string   public base URL used in invitation links
//
// os.Args is filtered with flagx.FilterArgs first so flags meant for other
// layers (-c, -env-file) do not break parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-m", "-b", "-n", "-l", "-s", "-k", "-u"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.HealthAddr, "g", config.HealthAddr, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.Storage, "m", config.Storage, "record store (postgres|memory)")
	fs.StringVar(&config.BlobBackend, "b", config.BlobBackend, "blob backend (s3|minio)")
	fs.StringVar(&config.Notifier, "n", config.Notifier, "notifier (log|sqs)")
	fs.StringVar(&config.RateLimiter, "l", config.RateLimiter, "rate limiter (store|redis)")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "JWT secret")
	fs.StringVar(&config.PasscodeSecret, "k", config.PasscodeSecret, "passcode hashing secret")
	fs.StringVar(&config.PublicBaseURL, "u", config.PublicBaseURL, "public base URL")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
