// Package ai provides the image analysis and generation services that sit in
// front of the response cache. Each operation fingerprints its input, serves
// from cache when possible, and otherwise calls the upstream model and stores
// the result best-effort.
package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/kwtsai/visioncache/pkg/cache"
	"github.com/kwtsai/visioncache/pkg/media"
)

// Prometheus metrics for upstream AI operations.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visioncache_upstream_requests_total",
		Help: "Total upstream AI calls by operation and outcome",
	}, []string{"operation", "status"})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "visioncache_upstream_duration_seconds",
		Help:    "Upstream AI call duration in seconds by operation",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"operation"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visioncache_upstream_errors_total",
		Help: "Total upstream AI errors by class",
	}, []string{"class"})
)

// analysisPrompt is the fixed instruction for image analysis.
const analysisPrompt = `You are a professional image analyst. Describe this image vividly and in detail.
Your analysis should cover:
1. Main subjects and scene: what stands out, what is happening?
2. Composition and mood: how is the image framed, what feeling does it convey?
3. Text recognition: if the image contains clearly legible text, list it in full; otherwise skip this point.
Present your analysis as one flowing description.`

// Config holds the service configuration.
type Config struct {
	// APIKey authenticates against the upstream AI API (required).
	APIKey string

	// BaseURL overrides the upstream endpoint (optional, used in tests and
	// for OpenAI-compatible gateways).
	BaseURL string

	// VisionModel is the chat model used for analysis and prompt translation.
	VisionModel string

	// ImageModel is the image generation model.
	ImageModel string

	// Cache is the response cache (required; construct a disabled manager
	// to run without caching).
	Cache *cache.Manager

	// Uploader stores generated images durably. When nil, the upstream's
	// own (short-lived) URL is returned instead.
	Uploader media.Uploader

	// RequestsPerSecond gates upstream calls.
	RequestsPerSecond float64

	// Burst is the limiter burst size.
	Burst int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string, cacheManager *cache.Manager) Config {
	return Config{
		APIKey:            apiKey,
		VisionModel:       openai.GPT4oMini,
		ImageModel:        openai.CreateImageModelDallE3,
		Cache:             cacheManager,
		RequestsPerSecond: 5,
		Burst:             5,
	}
}

// Service performs cached image analysis and generation.
type Service struct {
	client   *openai.Client
	cache    *cache.Manager
	uploader media.Uploader
	limiter  *rate.Limiter
	config   Config
	logger   zerolog.Logger
}

// Result is a cacheable operation outcome. Cached reports whether the value
// was served from the response cache.
type Result struct {
	Value  string
	Cached bool
}

// New creates a new AI service.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache manager is required")
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = openai.GPT4oMini
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = openai.CreateImageModelDallE3
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Service{
		client:   openai.NewClientWithConfig(clientConfig),
		cache:    cfg.Cache,
		uploader: cfg.Uploader,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		config:   cfg,
		logger:   logger,
	}, nil
}

// AnalyzeImage returns the analysis text for an image, serving a previously
// computed analysis from cache when the same bytes were seen within the
// analysis TTL.
func (s *Service) AnalyzeImage(ctx context.Context, image []byte) (Result, error) {
	key, err := cache.Fingerprint(cache.KindAnalysis, image)
	if err != nil {
		return Result{}, fmt.Errorf("fingerprint image: %w", err)
	}

	if value, err := s.cache.Get(ctx, key); err == nil {
		return Result{Value: value, Cached: true}, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limiter: %w", err)
	}

	var text string
	err = s.timed(ctx, "analyze", func() error {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: s.config.VisionModel,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL:    imageDataURL(image),
								Detail: openai.ImageURLDetailAuto,
							},
						},
						{
							Type: openai.ChatMessagePartTypeText,
							Text: analysisPrompt,
						},
					},
				},
			},
		})
		if err != nil {
			return wrapUpstream("analyze image", err)
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return ErrEmptyResponse
		}
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	// Best-effort: a failed put only costs a recomputation later.
	if err := s.cache.Put(ctx, key, text, cache.KindAnalysis); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache analysis result")
	}

	return Result{Value: text}, nil
}

// GenerateImage returns a durable URL for an image generated from the
// prompt, serving the previously generated URL from cache when the same
// normalized prompt was seen within the generation TTL.
func (s *Service) GenerateImage(ctx context.Context, prompt string) (Result, error) {
	key, err := cache.FingerprintPrompt(prompt)
	if err != nil {
		return Result{}, fmt.Errorf("fingerprint prompt: %w", err)
	}

	if value, err := s.cache.Get(ctx, key); err == nil {
		return Result{Value: value, Cached: true}, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limiter: %w", err)
	}

	// Translation is best-effort; the original prompt is still usable.
	drawPrompt := s.translatePrompt(ctx, strings.TrimSpace(prompt))

	url, err := s.generate(ctx, drawPrompt)
	if err != nil {
		return Result{}, err
	}

	if err := s.cache.Put(ctx, key, url, cache.KindGeneration); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache generated image URL")
	}

	return Result{Value: url}, nil
}

// generate calls the image model and resolves a URL for the result. With an
// uploader configured, the raw bytes are pushed to the media host for a
// durable URL; otherwise the upstream's own URL is used.
func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	responseFormat := openai.CreateImageResponseFormatURL
	if s.uploader != nil {
		responseFormat = openai.CreateImageResponseFormatB64JSON
	}

	var data openai.ImageResponseDataInner
	err := s.timed(ctx, "generate", func() error {
		resp, err := s.client.CreateImage(ctx, openai.ImageRequest{
			Prompt:         prompt,
			Model:          s.config.ImageModel,
			N:              1,
			Size:           openai.CreateImageSize1024x1024,
			ResponseFormat: responseFormat,
		})
		if err != nil {
			return wrapUpstream("generate image", err)
		}
		if len(resp.Data) == 0 {
			return ErrEmptyResponse
		}
		data = resp.Data[0]
		return nil
	})
	if err != nil {
		return "", err
	}

	if s.uploader == nil {
		if data.URL == "" {
			return "", ErrEmptyResponse
		}
		return data.URL, nil
	}

	image, err := base64.StdEncoding.DecodeString(data.B64JSON)
	if err != nil {
		return "", fmt.Errorf("decode generated image: %w", err)
	}

	url, err := s.uploader.Upload(ctx, image)
	if err != nil {
		return "", fmt.Errorf("upload generated image: %w", err)
	}
	return url, nil
}

// translatePrompt rewrites a drawing prompt into a vivid English prompt for
// the image model. On any failure the original prompt is returned unchanged.
func (s *Service) translatePrompt(ctx context.Context, prompt string) string {
	translated := prompt
	err := s.timed(ctx, "translate", func() error {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: s.config.VisionModel,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					Content: fmt.Sprintf(
						"Translate the following text into a vivid, detailed English prompt for an AI image generation model: %q",
						prompt),
				},
			},
		})
		if err != nil {
			return wrapUpstream("translate prompt", err)
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return ErrEmptyResponse
		}
		translated = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Prompt translation failed, using original prompt")
		return prompt
	}
	return translated
}

// timed wraps an upstream call with retry, duration and outcome metrics.
func (s *Service) timed(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	defer func() {
		upstreamDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	err := retryWithBackoff(ctx, s.logger, fn)
	if err != nil {
		upstreamRequestsTotal.WithLabelValues(operation, "error").Inc()
		upstreamErrorsTotal.WithLabelValues(string(classify(err))).Inc()
		return err
	}

	upstreamRequestsTotal.WithLabelValues(operation, "ok").Inc()
	return nil
}

// imageDataURL encodes image bytes as a data URL for the vision model.
func imageDataURL(image []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
}
