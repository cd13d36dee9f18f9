package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/export"
	"github.com/noah-isme/classroom-api/pkg/storage"
)

type exportStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (*storage.Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	Key         string    `json:"-"`
	URL         string    `json:"url"`
	Format      string    `json:"format"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ExportService persists rendered tables and hands out signed download links for them.
type ExportService struct {
	store  exportStore
	signer *storage.SignedURLSigner
	logger *zap.Logger
	cfg    ExportConfig
	now    func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(store exportStore, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{store: store, signer: signer, logger: logger, cfg: cfg, now: time.Now}
}

// Render writes t in format f under prefix and returns a signed link to it.
func (s *ExportService) Render(ctx context.Context, prefix string, f export.Format, t export.Table) (*ExportResult, error) {
	if s == nil || s.store == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "exports are not configured")
	}
	renderer := export.For(f)
	payload, err := renderer.Render(t)
	if err != nil {
		if errors.Is(err, export.ErrNoColumns) {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "nothing to export")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	key := fmt.Sprintf("%s/%s.%s", strings.Trim(prefix, "/"), s.now().UTC().Format("20060102_150405"), renderer.Extension())
	obj, err := s.store.Put(ctx, key, bytes.NewReader(payload), renderer.ContentType())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate("export", obj.Key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}

	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	if base == "" {
		base = "/api/v1"
	}
	return &ExportResult{
		Key:         obj.Key,
		URL:         fmt.Sprintf("%s/exports/download?token=%s", base, token),
		Format:      string(f),
		ContentType: renderer.ContentType(),
		ExpiresAt:   expiresAt,
	}, nil
}

// Open validates a download token and returns the stored export.
func (s *ExportService) Open(ctx context.Context, token string) (string, io.ReadCloser, error) {
	if s == nil || s.store == nil || s.signer == nil {
		return "", nil, appErrors.Clone(appErrors.ErrNotFound, "exports are not configured")
	}
	parsed, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return "", nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return "", nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download link")
	}
	rc, err := s.store.Open(ctx, parsed.Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	return parsed.Key, rc, nil
}

// Cleanup removes exports older than the configured retention. It runs from the scheduler.
func (s *ExportService) Cleanup(ctx context.Context) error {
	removed, err := s.store.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		return fmt.Errorf("cleanup exports: %w", err)
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
	return nil
}
