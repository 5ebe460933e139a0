// Package storage keeps generated artifacts (images, preview pages, ZIP
// archives) behind a small key-value interface with per-kind retention.
package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"
)

// Kind namespaces artifacts and selects their retention.
type Kind string

const (
	KindImage     Kind = "image"
	KindPreview   Kind = "preview"
	KindStatus    Kind = "status"
	KindZip       Kind = "zip"
	KindCharacter Kind = "character"
)

// ErrNotFound is returned when an artifact is missing or expired.
var ErrNotFound = errors.New("artifact not found")

// Artifact is a stored blob and its content type.
type Artifact struct {
	Data     []byte
	MIMEType string
}

// Store is the artifact storage contract shared by all backends.
type Store interface {
	Put(ctx context.Context, kind Kind, data []byte, mimeType string) (string, error)
	PutWithID(ctx context.Context, kind Kind, id string, data []byte, mimeType string) error
	Get(ctx context.Context, kind Kind, id string) (*Artifact, error)
	Delete(ctx context.Context, kind Kind, id string) error
}

// TTLFunc returns the retention for a kind.
type TTLFunc func(kind Kind) time.Duration

// FixedTTL applies the same retention to every kind.
func FixedTTL(d time.Duration) TTLFunc {
	return func(Kind) time.Duration { return d }
}

const (
	idLength   = 8
	idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// NewID returns a short random artifact id.
func NewID() string {
	max := big.NewInt(int64(len(idAlphabet)))
	b := make([]byte, idLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("storage: crypto/rand unavailable: " + err.Error())
		}
		b[i] = idAlphabet[n.Int64()]
	}
	return string(b)
}
