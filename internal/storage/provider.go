// Package storage reads and replaces outline files.
package storage

import "github.com/starford/orgsync/internal/models"

// BackupSuffix is appended to a document name to form its backup name.
const BackupSuffix = ".bak"

// Provider is the interface for document file operations. Paths are
// relative to the provider root; a missing file yields apperr.ErrNotFound.
type Provider interface {
	// Stat returns size, checksum and modification time of path.
	Stat(path string) (models.DocumentInfo, error)
	// List returns every .org file under dir.
	List(dir string) ([]models.DocumentInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces path with content.
	Write(path string, content []byte) error
	// Backup copies path to path+BackupSuffix and returns the backup path.
	// It returns "" when path does not exist.
	Backup(path string) (string, error)
}
