package application

import (
	"context"
	"io"
)

// CredentialHasher is the one-way password hash used for stored credentials.
type CredentialHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// TokenIssuer signs a compact identity+level claim into a bearer token.
// Tokens are stateless and cannot be revoked before expiry.
type TokenIssuer interface {
	Issue(email, level string) (string, error)
}

// ImageUpload references an inbound image to be stored.
type ImageUpload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
}

// Asset is the result of storing an image: a displayable URL plus an
// opaque handle that allows deleting the object later.
type Asset struct {
	URL    string `json:"url"`
	Handle string `json:"handle"`
}

// AssetStore stores uploaded images with a hosted provider.
type AssetStore interface {
	Upload(ctx context.Context, img ImageUpload) (Asset, error)
	Delete(ctx context.Context, handle string) error
}
