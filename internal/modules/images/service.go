package images

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/tenant"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Upload describes one incoming file.
type Upload struct {
	Body         io.Reader
	OriginalName string
	Category     Category
	EntityType   EntityType
	EntityID     string
}

// Service stores attachments for the current tenant. It never touches the
// entity cache; callers copy the returned URL onto the entity themselves.
type Service interface {
	Upload(ctx context.Context, u Upload) (*ImageAttachment, error)
	ListFor(ctx context.Context, entityType EntityType, entityID string) ([]*ImageAttachment, error)
	// Open returns the attachment and its bytes. The caller closes the reader.
	Open(ctx context.Context, id string) (*ImageAttachment, io.ReadCloser, error)
	Remove(ctx context.Context, id string) error
}

// Options configures a Service. BaseURL is the prefix of the authenticated
// content route; an attachment's URL is BaseURL/<id>/content.
type Options struct {
	BaseURL  string
	MaxBytes int64
	Now      func() time.Time
}

type service struct {
	repo  Repository
	blobs BlobStore
	opts  Options
}

func NewService(repo Repository, blobs BlobStore, opts Options) Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &service{repo: repo, blobs: blobs, opts: opts}
}

func validateTarget(entityType EntityType, entityID string) error {
	if _, ok := categoriesFor[entityType]; !ok {
		return apperr.Validation("invalid entity_type %q", entityType)
	}
	if _, err := uuid.Parse(entityID); err != nil {
		return apperr.Validation("invalid entity_id %q", entityID)
	}
	return nil
}

func (s *service) Upload(ctx context.Context, u Upload) (*ImageAttachment, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateTarget(u.EntityType, u.EntityID); err != nil {
		return nil, err
	}
	if !lo.Contains(categoriesFor[u.EntityType], u.Category) {
		return nil, apperr.Validation("category %q is not valid for a %s", u.Category, u.EntityType)
	}
	if u.Body == nil {
		return nil, apperr.Validation("file is required")
	}

	data, err := io.ReadAll(io.LimitReader(u.Body, s.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, apperr.Validation("file is empty")
	}
	if int64(len(data)) > s.opts.MaxBytes {
		return nil, apperr.Validation("file exceeds %d bytes", s.opts.MaxBytes)
	}

	mt := mimetype.Detect(data)
	allowed := lo.ContainsBy(allowedMIME, func(m string) bool { return mt.Is(m) })
	if !allowed {
		return nil, apperr.Validation("file type %s is not allowed", mt.String())
	}

	id := uuid.NewString()
	key := fmt.Sprintf("%s/%s/%s/%s%s", companyID, u.EntityType, u.EntityID, id, mt.Extension())
	if err := s.blobs.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("store %s: %w", key, err)
	}

	a := &ImageAttachment{
		ID:           id,
		CompanyID:    string(companyID),
		EntityType:   u.EntityType,
		EntityID:     u.EntityID,
		Category:     u.Category,
		Filename:     key,
		OriginalName: filepath.Base(u.OriginalName),
		Size:         int64(len(data)),
		MimeType:     mt.String(),
		URL:          s.opts.BaseURL + "/" + id + "/content",
		UploadedAt:   s.opts.Now().UTC(),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if derr := s.blobs.Delete(ctx, key); derr != nil {
			logger.FromContext(ctx).Warn("orphaned image blob", zap.String("key", key), zap.Error(derr))
		}
		return nil, fmt.Errorf("save image metadata: %w", err)
	}
	return a, nil
}

func (s *service) ListFor(ctx context.Context, entityType EntityType, entityID string) ([]*ImageAttachment, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateTarget(entityType, entityID); err != nil {
		return nil, err
	}
	return s.repo.ListFor(ctx, string(companyID), entityType, entityID)
}

func (s *service) Open(ctx context.Context, id string) (*ImageAttachment, io.ReadCloser, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil, apperr.Validation("invalid image id %q", id)
	}
	a, err := s.repo.Get(ctx, string(companyID), id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(ctx, a.Filename)
	if err != nil {
		return nil, nil, err
	}
	return a, rc, nil
}

func (s *service) Remove(ctx context.Context, id string) error {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperr.Validation("invalid image id %q", id)
	}
	a, err := s.repo.Get(ctx, string(companyID), id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, string(companyID), id); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, a.Filename); err != nil {
		logger.FromContext(ctx).Warn("failed to delete image blob", zap.String("key", a.Filename), zap.Error(err))
	}
	return nil
}
