package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rendiconto/config"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	// ErrUnsupportedImage payload is not PNG or JPEG
	ErrUnsupportedImage = errors.New("formato file non supportato, usa PNG, JPG o JPEG")
	// ErrImageTooLarge payload exceeds the configured ceiling
	ErrImageTooLarge = errors.New("immagine troppo grande")
	// ErrInvalidDataURL base64 payload is not a data:image/... URL
	ErrInvalidDataURL = errors.New("formato immagine non valido")
)

var allowedSignatureTypes = []string{"image/png", "image/jpeg"}

// SignatureStore persists signature images and yields a stable reference
type SignatureStore interface {
	Save(ctx context.Context, userID uint, data []byte, mime *mimetype.MIME) (string, error)
	Remove(ctx context.Context, ref string) error
}

// NewSignatureStore picks the store from upload.mode: "inline" keeps data URLs in the row,
// anything else writes files under <upload.dir>/firme
func NewSignatureStore(cfg config.UploadConfig) SignatureStore {
	if cfg.Mode == "inline" {
		return InlineSignatureStore{}
	}
	return NewLocalSignatureStore(cfg.Dir)
}

// DetectSignatureImage sniffs the payload and accepts only PNG and JPEG
func DetectSignatureImage(data []byte) (*mimetype.MIME, error) {
	if len(data) == 0 {
		return nil, ErrUnsupportedImage
	}
	m := mimetype.Detect(data)
	if !mimetype.EqualsAny(m.String(), allowedSignatureTypes...) {
		return nil, ErrUnsupportedImage
	}
	return m, nil
}

// DecodeDataURL decodes a "data:image/...;base64," payload no longer than max bytes
func DecodeDataURL(s string, max int) ([]byte, error) {
	if max > 0 && len(s) > max {
		return nil, ErrImageTooLarge
	}
	if !strings.HasPrefix(s, "data:image/") {
		return nil, ErrInvalidDataURL
	}
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, ErrInvalidDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrInvalidDataURL
	}
	return data, nil
}

// LocalSignatureStore writes files under <root>/firme; references are relative to root
type LocalSignatureStore struct {
	root string
}

// NewLocalSignatureStore store rooted at the upload directory
func NewLocalSignatureStore(root string) *LocalSignatureStore {
	return &LocalSignatureStore{root: root}
}

// Save writes user_<id>_firma_<uuid>.<ext> and returns "firme/<name>"
func (s *LocalSignatureStore) Save(_ context.Context, userID uint, data []byte, mime *mimetype.MIME) (string, error) {
	dir := filepath.Join(s.root, "firme")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creazione cartella firme fallita: %w", err)
	}
	name := fmt.Sprintf("user_%d_firma_%s%s", userID, uuid.NewString(), mime.Extension())
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("salvataggio firma fallito: %w", err)
	}
	return "firme/" + name, nil
}

// Remove deletes a stored file; unknown or inline references are ignored
func (s *LocalSignatureStore) Remove(_ context.Context, ref string) error {
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return nil
	}
	path := filepath.Join(s.root, filepath.Clean("/"+ref))
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("eliminazione firma fallita: %w", err)
	}
	return nil
}

// InlineSignatureStore keeps the image as a data URL on the record itself
type InlineSignatureStore struct{}

// Save encodes data as a data URL
func (InlineSignatureStore) Save(_ context.Context, _ uint, data []byte, mime *mimetype.MIME) (string, error) {
	return "data:" + mime.String() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Remove nothing to clean up
func (InlineSignatureStore) Remove(context.Context, string) error { return nil }
