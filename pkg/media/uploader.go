// Package media uploads generated images to an external media host and
// returns durable URLs. The host is only consulted on a cache miss; cached
// generation entries already carry the durable URL.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Uploader stores image bytes durably and returns a public URL.
type Uploader interface {
	Upload(ctx context.Context, image []byte) (string, error)
}

// Config holds the HTTP uploader configuration.
type Config struct {
	// UploadURL is the media host's upload endpoint.
	UploadURL string

	// Preset is an optional unsigned-upload preset name.
	Preset string

	// Folder is an optional folder to file uploads under.
	Folder string

	// Timeout bounds a single upload. Defaults to 30s.
	Timeout time.Duration

	// Logger is the component logger.
	Logger zerolog.Logger
}

// HTTPUploader uploads images via multipart POST. The response is expected
// to be JSON carrying the stored image's URL under "secure_url" or "url",
// which is the shape common media hosts answer with.
type HTTPUploader struct {
	config     Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPUploader creates an uploader for the configured media host.
func NewHTTPUploader(cfg Config) (*HTTPUploader, error) {
	if cfg.UploadURL == "" {
		return nil, fmt.Errorf("upload URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPUploader{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     cfg.Logger,
	}, nil
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
}

// Upload stores the image and returns its durable URL.
func (u *HTTPUploader) Upload(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("empty image")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	if u.config.Preset != "" {
		if err := writer.WriteField("upload_preset", u.config.Preset); err != nil {
			return "", fmt.Errorf("write preset field: %w", err)
		}
	}
	if u.config.Folder != "" {
		if err := writer.WriteField("folder", u.config.Folder); err != nil {
			return "", fmt.Errorf("write folder field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.config.UploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, data)
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}

	url := parsed.SecureURL
	if url == "" {
		url = parsed.URL
	}
	if url == "" {
		return "", fmt.Errorf("upload succeeded but no URL returned")
	}

	u.logger.Info().Int("bytes", len(image)).Msg("Image uploaded")
	return url, nil
}
