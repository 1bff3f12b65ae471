package profiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/skillswap/backend/internal/logging"
	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/realtime"
	"github.com/skillswap/backend/internal/repositories"
)

// MaxPictureBytes caps the size of an uploaded profile picture.
const MaxPictureBytes = 5 * 1024 * 1024

// PicturePrefix is the object key prefix for profile pictures.
const PicturePrefix = "profile-pictures/"

var extensions = map[string]string{
	"png":  "png",
	"jpeg": "jpg",
	"gif":  "gif",
	"webp": "webp",
}

// CheckPictureHeader validates the declared content type and size of an
// upload before its body is read.
func CheckPictureHeader(contentType string, size int64) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return models.NewValidationError("file", "please upload an image file")
	}
	if size > MaxPictureBytes {
		return models.NewValidationError("file", "image size should be less than 5MB")
	}
	return nil
}

// UploadPicture stores a new profile picture for the actor and returns its URI.
// The stored profile, when there is one, is pointed at the new picture.
func (s *Service) UploadPicture(ctx context.Context, actor models.Actor, filename, contentType string, body io.Reader, size int64) (uri string, err error) {
	ctx, span := logging.StartSpan(ctx, "profiles.upload_picture")
	defer func() { span.RecordError(err); span.End() }()

	if err := CheckPictureHeader(contentType, size); err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(body, MaxPictureBytes+1))
	if err != nil {
		return "", fmt.Errorf("read picture: %w", err)
	}
	if len(data) > MaxPictureBytes {
		return "", models.NewValidationError("file", "image size should be less than 5MB")
	}

	sniffed := http.DetectContentType(data)
	if !strings.HasPrefix(sniffed, "image/") {
		return "", models.NewValidationError("file", "please upload an image file")
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", models.NewValidationError("file", "unsupported or corrupt image")
	}
	ext, ok := extensions[format]
	if !ok {
		return "", models.NewValidationError("file", "unsupported image format "+format)
	}
	if given := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), "."); given == "jpeg" && ext == "jpg" {
		ext = given
	}

	key := fmt.Sprintf("%s%s-%d.%s", PicturePrefix, actor.UserID, s.NowFunc().UnixMilli(), ext)
	uri, err = s.uploader.Upload(ctx, key, "image/"+format, bytes.NewReader(data))
	if err != nil {
		return "", models.Upstream("upload picture", err)
	}

	switch err := s.profiles.SetPicture(ctx, actor.UserID, uri); {
	case err == nil:
		s.publish(ctx, realtime.OpUpdate, actor.UserID)
	case errors.Is(err, repositories.ErrNotFound):
		// Profile not saved yet; the URI is returned for the first save.
	default:
		return "", models.Upstream("set profile picture", err)
	}

	logging.FromContext(ctx).Info("profile picture uploaded", slog.String("key", key), slog.Int("bytes", len(data)))
	return uri, nil
}
