// Package config loads runtime configuration for the sharectl recipient CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the share API
//	-t int      request timeout (seconds)
//
// JSON example:
//
//	{
//	  "server_url": "https://share.example.com",
//	  "request_timeout": "30s"
//	}
package config
