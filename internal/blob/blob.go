// Package blob stores user uploads (profile pictures) and returns the URL
// they can be fetched from.
package blob

import (
	"context"
	"io"
)

// Store persists an object under key and returns its public URL.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}

// AvatarKey is the object key of a user's profile picture.
func AvatarKey(userID string) string {
	return "avatars/" + userID
}
