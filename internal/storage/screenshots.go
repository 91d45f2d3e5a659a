package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"open-lovable/internal/config"
	"open-lovable/internal/logging"
)

const maxScreenshotBytes = 20 << 20

var hostSanitizer = regexp.MustCompile(`[^a-z0-9.-]+`)

// ScreenshotArchive stores captured screenshots under screenshots/<host>/<uuid>.png
type ScreenshotArchive struct {
	provider   Provider
	httpClient *http.Client
	newID      func() string
}

// NewScreenshotArchive creates an archive over provider
func NewScreenshotArchive(provider Provider) *ScreenshotArchive {
	return &ScreenshotArchive{
		provider:   provider,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		newID:      uuid.NewString,
	}
}

// OpenScreenshotArchive picks S3 when a bucket is configured, a local
// directory when one is set, and returns nil when archiving is disabled
func OpenScreenshotArchive(ctx context.Context, cfg *config.AppConfig) (*ScreenshotArchive, error) {
	switch {
	case cfg.ScreenshotBucket != "":
		s3, err := NewS3Storage(ctx, S3Config{
			Bucket:          cfg.ScreenshotBucket,
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretKey,
		})
		if err != nil {
			return nil, err
		}
		logging.L().Info("screenshot archive enabled", zap.String("bucket", cfg.ScreenshotBucket))
		return NewScreenshotArchive(s3), nil
	case cfg.ScreenshotDir != "":
		local, err := NewLocalStorage(cfg.ScreenshotDir)
		if err != nil {
			return nil, err
		}
		logging.L().Info("screenshot archive enabled", zap.String("dir", cfg.ScreenshotDir))
		return NewScreenshotArchive(local), nil
	default:
		return nil, nil
	}
}

// Save stores screenshot, a data URI or an http(s) URL, and returns its location
func (a *ScreenshotArchive) Save(ctx context.Context, pageURL, screenshot string) (string, error) {
	data, err := a.load(ctx, screenshot)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("screenshot is empty")
	}

	key := fmt.Sprintf("screenshots/%s/%s.png", hostOf(pageURL), a.newID())
	if err := a.provider.Upload(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", err
	}
	return a.provider.Location(key), nil
}

func (a *ScreenshotArchive) load(ctx context.Context, screenshot string) ([]byte, error) {
	if strings.HasPrefix(screenshot, "data:") {
		comma := strings.IndexByte(screenshot, ',')
		if comma < 0 || !strings.Contains(screenshot[:comma], ";base64") {
			return nil, errors.New("unsupported screenshot data URI")
		}
		data, err := base64.StdEncoding.DecodeString(screenshot[comma+1:])
		if err != nil {
			return nil, fmt.Errorf("failed to decode screenshot: %w", err)
		}
		return data, nil
	}

	if !strings.HasPrefix(screenshot, "http://") && !strings.HasPrefix(screenshot, "https://") {
		return nil, errors.New("screenshot is neither a data URI nor a URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, screenshot, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download screenshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download screenshot: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxScreenshotBytes))
}

func hostOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "unknown"
	}
	host := hostSanitizer.ReplaceAllString(strings.ToLower(u.Hostname()), "_")
	host = strings.Trim(host, "._-")
	if host == "" {
		return "unknown"
	}
	return host
}
