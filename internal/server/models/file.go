// Package models defines server-side data models persisted in the record store.
package models

import "time"

// FileState is the downloadability of a shared file at a given instant.
type FileState string

const (
	FileActive   FileState = "active"
	FileExpired  FileState = "expired"
	FileConsumed FileState = "consumed"
)

// SharedFile is the server-side record of an encrypted upload. The server
// only keeps what a recipient needs to decrypt client-side: salts, IVs and a
// hash of the master key, never the key itself.
type SharedFile struct {
	ID      string
	OwnerID string
	// BlobKey is the object-storage key of the ciphertext.
	BlobKey           string
	EncryptedFileName string
	FileSize          int64

	FileSalt      []byte
	FileIV        []byte
	MasterKeyHash string
	MetadataIV    []byte

	// ExpiresAt is nil for files without a time limit.
	ExpiresAt     *time.Time
	BurnAfterRead bool
	DownloadCount int64
	CreatedAt     time.Time
}

// State derives the lifecycle state. Expiry wins over consumption so a file
// past its deadline always reports expired.
func (f *SharedFile) State(now time.Time) FileState {
	if f.ExpiresAt != nil && now.After(*f.ExpiresAt) {
		return FileExpired
	}
	if f.BurnAfterRead && f.DownloadCount > 0 {
		return FileConsumed
	}
	return FileActive
}

// DownloadResult is the outcome of recording one confirmed download.
type DownloadResult struct {
	DownloadCount int64
	// Burned reports that the file no longer exists after this call.
	Burned bool
}
