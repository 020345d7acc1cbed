// Command visioncached serves cached AI image analysis and generation over
// HTTP. Configuration comes from flags or VISIONCACHE_* environment
// variables; the Redis backing store and the media uploader are both
// optional, and the service degrades to uncached operation without them.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kwtsai/visioncache/pkg/ai"
	"github.com/kwtsai/visioncache/pkg/cache"
	"github.com/kwtsai/visioncache/pkg/logging"
	"github.com/kwtsai/visioncache/pkg/media"
)

var rootCmd = &cobra.Command{
	Use:   "visioncached",
	Short: "Cached AI image analysis and generation service",
	Long: `visioncached fronts an OpenAI-compatible upstream with a
content-addressed response cache. Image analysis results are cached for 24
hours and generated-image URLs for 7 days, keyed by a fingerprint of the
input. Without a configured Redis the service still works, just without
cross-request caching.`,
	RunE: run,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("addr", ":8080", "listen address")
	flags.String("redis-url", "", "Redis connection URL (empty disables the backing store)")
	flags.String("openai-api-key", "", "upstream AI API key")
	flags.String("openai-base-url", "", "upstream AI base URL override")
	flags.String("vision-model", "", "chat model for analysis and translation")
	flags.String("image-model", "", "image generation model")
	flags.String("upload-url", "", "media host upload endpoint (empty returns upstream URLs)")
	flags.String("upload-preset", "", "media host unsigned upload preset")
	flags.String("upload-folder", "bot_images", "media host folder")
	flags.Bool("local-cache", false, "use an in-process cache when Redis is not configured")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("log-pretty", false, "human-readable log output")

	viper.SetEnvPrefix("VISIONCACHE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Conventional env names take precedence over the prefixed form.
	_ = viper.BindEnv("openai-api-key", "OPENAI_API_KEY", "VISIONCACHE_OPENAI_API_KEY")
	_ = viper.BindEnv("redis-url", "REDIS_URL", "VISIONCACHE_REDIS_URL")

	_ = viper.BindPFlags(flags)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(viper.GetString("log-level")),
		Pretty: viper.GetBool("log-pretty"),
		Output: os.Stderr,
	})

	redisClient := connectRedis(viper.GetString("redis-url"))

	manager := cache.NewManager(cache.Config{
		Redis:       redisClient,
		EnableLocal: viper.GetBool("local-cache"),
		Logger:      logging.NewLogger("cache"),
	})

	var uploader media.Uploader
	if uploadURL := viper.GetString("upload-url"); uploadURL != "" {
		var err error
		uploader, err = media.NewHTTPUploader(media.Config{
			UploadURL: uploadURL,
			Preset:    viper.GetString("upload-preset"),
			Folder:    viper.GetString("upload-folder"),
			Logger:    logging.NewLogger("media"),
		})
		if err != nil {
			return fmt.Errorf("configure uploader: %w", err)
		}
	} else {
		logger.Warn().Msg("No upload URL configured, generated images will use upstream URLs")
	}

	aiCfg := ai.DefaultConfig(viper.GetString("openai-api-key"), manager)
	aiCfg.BaseURL = viper.GetString("openai-base-url")
	if model := viper.GetString("vision-model"); model != "" {
		aiCfg.VisionModel = model
	}
	if model := viper.GetString("image-model"); model != "" {
		aiCfg.ImageModel = model
	}
	aiCfg.Uploader = uploader

	svc, err := ai.New(aiCfg, logging.NewLogger("ai"))
	if err != nil {
		return fmt.Errorf("create AI service: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(redisClient))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/analyze", analyzeHandler(svc))
	mux.HandleFunc("/v1/generate", generateHandler(svc))

	addr := viper.GetString("addr")
	logger.Info().
		Str("addr", addr).
		Bool("cache_enabled", manager.Enabled()).
		Msg("Starting visioncached")

	if err := http.ListenAndServe(addr, mux); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// connectRedis returns a Redis client for the URL, or nil when the URL is
// empty or the store is unreachable. An unreachable store at startup is not
// fatal: the cache layer degrades and the service still answers requests.
func connectRedis(redisURL string) *redis.Client {
	logger := logging.NewLogger("redis")

	if redisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		// Accept bare host:port too.
		opts = &redis.Options{Addr: redisURL}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis unreachable at startup, continuing degraded")
	} else {
		logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	}

	return client
}
