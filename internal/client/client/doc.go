// Package client is the HTTP client for the recipient side of the share API:
// file summaries, passcode verification, download metadata and download
// accounting.
package client
