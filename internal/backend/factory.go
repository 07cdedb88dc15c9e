package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/api/option"
	gstorage "google.golang.org/api/storage/v1"

	"roomsplit/internal/amqp"
	"roomsplit/internal/categorize/gemini"
	"roomsplit/internal/log"
	"roomsplit/internal/media"
	"roomsplit/internal/media/gcs"
	"roomsplit/internal/media/local"
	gsheet "roomsplit/internal/sheets/google"
)

// LocalMediaPrefix is the URL path the server mounts local media under.
const LocalMediaPrefix = "/media"

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(log.FieldComponent, log.ComponentApp),
	}
}

// Create implements Factory.Create. A broker that cannot be reached is
// logged and skipped; every other failure is returned.
func (f *DefaultFactory) Create(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res := &Result{}

	store, root, err := f.createMedia(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res.Media, res.LocalMediaRoot = store, root

	categorizer, err := gemini.New(ctx, gemini.Options{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.CategorizeTimeout,
		Extra:   cfg.GoogleOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize categorizer: %w", err)
	}
	if cfg.GeminiAPIKey == "" {
		f.logger.WarnContext(ctx, "GEMINI_API_KEY not set, expense creation will fail categorization")
	}
	res.Categorizer = categorizer

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without messaging", log.FieldError, err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
			res.AMQP = client
		}
	}

	if cfg.GoogleSpreadsheetID != "" {
		exporter, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, gsheet.Credentials{
			JSON: cfg.GoogleServiceAccountJSON,
			File: cfg.GoogleServiceAccountFile,
		}, cfg.GoogleOptions...)
		if err != nil {
			if res.AMQP != nil {
				res.AMQP.Close()
			}
			return nil, fmt.Errorf("failed to initialize Google Sheets exporter: %w", err)
		}
		res.Exporter = exporter
	}

	amqpClient := res.AMQP
	res.Cleanup = func() error {
		if amqpClient != nil {
			return amqpClient.Close()
		}
		return nil
	}

	f.logger.InfoContext(ctx, "Initialized integrations",
		"media_backend", cfg.Media.String(),
		"amqp_enabled", res.AMQP != nil,
		"export_enabled", res.Exporter != nil)

	return res, nil
}

func (f *DefaultFactory) createMedia(ctx context.Context, cfg Config) (*media.Store, string, error) {
	switch cfg.Media {
	case GCSMedia:
		opts, err := storageCredentials(cfg)
		if err != nil {
			return nil, "", err
		}
		b, err := gcs.New(ctx, cfg.GCSBucket, cfg.MediaPublicBaseURL, append(opts, cfg.GoogleOptions...)...)
		if err != nil {
			return nil, "", fmt.Errorf("failed to initialize GCS media backend: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized GCS media backend", "bucket", cfg.GCSBucket)
		return media.NewStore(b), "", nil
	default:
		base := cfg.MediaPublicBaseURL
		if base == "" {
			base = LocalMediaPrefix
		}
		b, err := local.New(cfg.MediaLocalDir, base)
		if err != nil {
			return nil, "", fmt.Errorf("failed to initialize local media backend: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized local media backend", "dir", cfg.MediaLocalDir)
		return media.NewStore(b), b.Root(), nil
	}
}

// storageCredentials uses the service account when one is configured and
// falls back to application default credentials.
func storageCredentials(cfg Config) ([]option.ClientOption, error) {
	scopes := option.WithScopes(gstorage.DevstorageReadWriteScope)
	switch {
	case strings.TrimSpace(cfg.GoogleServiceAccountJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.GoogleServiceAccountJSON)), scopes}, nil
	case strings.TrimSpace(cfg.GoogleServiceAccountFile) != "":
		data, err := os.ReadFile(cfg.GoogleServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return []option.ClientOption{option.WithCredentialsJSON(data), scopes}, nil
	default:
		return []option.ClientOption{scopes}, nil
	}
}
