package service

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rendiconto/config"
	"rendiconto/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectSignatureImage(t *testing.T) {
	m, err := DetectSignatureImage(pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "image/png", m.String())
	assert.Equal(t, ".png", m.Extension())

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	m, err = DetectSignatureImage(jpeg)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", m.String())

	_, err = DetectSignatureImage([]byte("GIF89a......"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
	_, err = DetectSignatureImage(nil)
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestDecodeDataURL(t *testing.T) {
	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)

	data, err := DecodeDataURL(encoded, 0)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	_, err = DecodeDataURL(encoded, 10)
	assert.ErrorIs(t, err, ErrImageTooLarge)

	for _, bad := range []string{
		"iVBORw0KGgo=",
		"data:text/plain;base64,aGVsbG8=",
		"data:image/png,rawbytes",
		"data:image/png;base64,@@@",
	} {
		_, err := DecodeDataURL(bad, 0)
		assert.ErrorIs(t, err, ErrInvalidDataURL, bad)
	}
}

func TestLocalSignatureStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewSignatureStore(config.UploadConfig{Mode: "disk", Dir: root})

	m, err := DetectSignatureImage(pngHeader)
	require.NoError(t, err)

	ref, err := store.Save(ctx, 42, pngHeader, m)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "firme/user_42_firma_"))
	assert.True(t, strings.HasSuffix(ref, ".png"))

	onDisk, err := os.ReadFile(filepath.Join(root, ref))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, onDisk)

	require.NoError(t, store.Remove(ctx, ref))
	_, err = os.Stat(filepath.Join(root, ref))
	assert.True(t, os.IsNotExist(err))

	// already gone, inline and empty references are ignored
	assert.NoError(t, store.Remove(ctx, ref))
	assert.NoError(t, store.Remove(ctx, "data:image/png;base64,AAAA"))
	assert.NoError(t, store.Remove(ctx, ""))
}

func TestInlineSignatureStore(t *testing.T) {
	store := NewSignatureStore(config.UploadConfig{Mode: "inline"})
	m, err := DetectSignatureImage(pngHeader)
	require.NoError(t, err)

	ref, err := store.Save(context.Background(), 1, pngHeader, m)
	require.NoError(t, err)

	data, err := DecodeDataURL(ref, 0)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestUserService_SignatureReplacesFile(t *testing.T) {
	ts := newTestServices(t)
	root := t.TempDir()
	ts.users.signatures = NewLocalSignatureStore(root)
	ctx := context.Background()
	u := ts.registerUser(t, "file@example.com")

	first, err := ts.users.SetSignature(ctx, u.ID, "segreta123", pngHeader)
	require.NoError(t, err)
	second, err := ts.users.SetSignature(ctx, u.ID, "segreta123", pngHeader)
	require.NoError(t, err)
	assert.NotEqual(t, first.SignatureImage, second.SignatureImage)

	_, err = os.Stat(filepath.Join(root, first.SignatureImage))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, second.SignatureImage))
	assert.NoError(t, err)
}

func TestUserService_DeleteSignatureRemovesFile(t *testing.T) {
	ts := newTestServices(t)
	root := t.TempDir()
	ts.users.signatures = NewLocalSignatureStore(root)
	ctx := context.Background()
	u := ts.registerUser(t, "delete@example.com")

	got, err := ts.users.SetSignature(ctx, u.ID, "segreta123", pngHeader)
	require.NoError(t, err)
	path := filepath.Join(root, got.SignatureImage)
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, ts.users.DeleteSignature(ctx, u.ID, "segreta123"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestUserService_SignatureKeptForSignedReports(t *testing.T) {
	ts := newTestServices(t)
	root := t.TempDir()
	ts.users.signatures = NewLocalSignatureStore(root)
	ctx := context.Background()
	u := ts.registerUser(t, "signed@example.com")
	b := ts.createBeneficiary(t, u.ID, "BNCGLI40E52L219K")

	r, err := ts.reports.Create(ctx, u.ID, ReportInput{
		BeneficiaryID:      b.ID,
		PeriodStart:        date(2024, time.January, 1),
		PeriodEnd:          date(2024, time.December, 31),
		CaseRef:            "7/2024",
		PersonalConditions: "Vive in RSA",
		Signature:          completeSignature(),
	})
	require.NoError(t, err)

	_, err = ts.users.SetSignature(ctx, u.ID, "segreta123", pngHeader)
	require.NoError(t, err)
	signed, err := ts.reports.ApplySignature(ctx, r.ID, u.ID, "segreta123")
	require.NoError(t, err)
	_, err = ts.reports.SetState(ctx, r.ID, u.ID, models.ReportStateSubmitted)
	require.NoError(t, err)
	reportImage := filepath.Join(root, signed.Signature.Image)

	// a new profile signature leaves the submitted report's image in place
	replaced, err := ts.users.SetSignature(ctx, u.ID, "segreta123", pngHeader)
	require.NoError(t, err)
	require.NotEqual(t, signed.Signature.Image, replaced.SignatureImage)
	_, err = os.Stat(reportImage)
	assert.NoError(t, err)

	// the replacement is not referenced by any report, so deleting it removes the file
	require.NoError(t, ts.users.DeleteSignature(ctx, u.ID, "segreta123"))
	_, err = os.Stat(filepath.Join(root, replaced.SignatureImage))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(reportImage)
	assert.NoError(t, err)
}
