package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shades-uz/api/internal/platform/auth"
	"github.com/shades-uz/api/internal/platform/storage"
	"github.com/shades-uz/api/internal/repositories"
)

const (
	photoUploadExpiry   = 15 * time.Minute
	photoDownloadExpiry = 5 * time.Minute
	photoMaxUploadBytes = 10 << 20
)

var (
	// ErrPhotoInvalidInput signals the caller provided invalid data.
	ErrPhotoInvalidInput = errors.New("photo: invalid input")
	// ErrPhotoWindowNotFound indicates the window could not be located under the order.
	ErrPhotoWindowNotFound = errors.New("photo: window not found")
)

var photoAllowedContentTypes = []string{"image/jpeg", "image/png", "image/webp", "image/heic"}

// PhotoServiceDeps bundles collaborators for the photo service.
type PhotoServiceDeps struct {
	Windows repositories.WindowRepository
	Signer  *storage.Client
	Bucket  string
}

type photoService struct {
	windows repositories.WindowRepository
	signer  *storage.Client
	bucket  string
}

var _ PhotoService = (*photoService)(nil)

// NewPhotoService wires dependencies into a concrete PhotoService implementation.
func NewPhotoService(deps PhotoServiceDeps) (PhotoService, error) {
	if deps.Windows == nil {
		return nil, errors.New("photo service: window repository is required")
	}
	if deps.Signer == nil {
		return nil, errors.New("photo service: storage client is required")
	}
	if strings.TrimSpace(deps.Bucket) == "" {
		return nil, errors.New("photo service: bucket is required")
	}
	return &photoService{
		windows: deps.Windows,
		signer:  deps.Signer,
		bucket:  strings.TrimSpace(deps.Bucket),
	}, nil
}

func (s *photoService) CreateUploadURL(ctx context.Context, cmd MeasurementPhotoCommand) (SignedPhotoURL, error) {
	object, err := s.resolveObject(ctx, cmd)
	if err != nil {
		return SignedPhotoURL{}, err
	}

	contentType := strings.TrimSpace(cmd.ContentType)
	if contentType == "" {
		return SignedPhotoURL{}, fmt.Errorf("%w: content type is required", ErrPhotoInvalidInput)
	}

	result, err := s.signer.SignedURL(ctx, s.bucket, object, storage.SignedURLOptions{
		Upload: &storage.UploadOptions{
			Method:              "PUT",
			ContentType:         contentType,
			AllowedContentTypes: photoAllowedContentTypes,
			MaxSize:             photoMaxUploadBytes,
			ExpiresIn:           photoUploadExpiry,
		},
	})
	if err != nil {
		return SignedPhotoURL{}, fmt.Errorf("photo service: sign upload url: %w", err)
	}

	return signedPhotoURL(result, object), nil
}

func (s *photoService) CreateDownloadURL(ctx context.Context, cmd MeasurementPhotoCommand) (SignedPhotoURL, error) {
	object, err := s.resolveObject(ctx, cmd)
	if err != nil {
		return SignedPhotoURL{}, err
	}

	identity, _ := auth.IdentityFromContext(ctx)
	result, err := s.signer.SignedURL(ctx, s.bucket, object, storage.SignedURLOptions{
		Download: &storage.DownloadOptions{
			Method:    "GET",
			ExpiresIn: photoDownloadExpiry,
			OwnerID:   cmd.ActorID,
			Identity:  identity,
		},
	})
	if err != nil {
		if errors.Is(err, storage.ErrPermissionDenied) {
			return SignedPhotoURL{}, err
		}
		return SignedPhotoURL{}, fmt.Errorf("photo service: sign download url: %w", err)
	}

	return signedPhotoURL(result, object), nil
}

// resolveObject validates the window belongs to the order and builds the object key.
func (s *photoService) resolveObject(ctx context.Context, cmd MeasurementPhotoCommand) (string, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	windowID := strings.TrimSpace(cmd.WindowID)
	fileName := strings.TrimSpace(cmd.FileName)
	if orderID == "" {
		return "", fmt.Errorf("%w: order id is required", ErrPhotoInvalidInput)
	}
	if windowID == "" {
		return "", fmt.Errorf("%w: window id is required", ErrPhotoInvalidInput)
	}
	if fileName == "" {
		return "", fmt.Errorf("%w: file name is required", ErrPhotoInvalidInput)
	}

	window, err := s.windows.FindByID(ctx, windowID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return "", fmt.Errorf("%w: %s", ErrPhotoWindowNotFound, windowID)
		}
		return "", err
	}
	if window.OrderID != orderID {
		return "", fmt.Errorf("%w: window %s does not belong to order %s", ErrPhotoWindowNotFound, windowID, orderID)
	}

	object, err := storage.MeasurementPhotoPath(orderID, windowID, fileName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPhotoInvalidInput, err)
	}
	return object, nil
}

func signedPhotoURL(result storage.SignedURLResult, object string) SignedPhotoURL {
	return SignedPhotoURL{
		URL:       result.URL,
		Method:    result.Method,
		ObjectKey: object,
		ExpiresAt: result.ExpiresAt,
		Headers:   result.Headers,
	}
}
