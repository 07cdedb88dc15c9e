package backend

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/option"

	"roomsplit/internal/config"
)

// MediaType names a media storage backend
type MediaType string

const (
	LocalMedia MediaType = config.MediaBackendLocal
	GCSMedia   MediaType = config.MediaBackendGCS
)

func (mt MediaType) String() string {
	return string(mt)
}

// IsValid returns true if the media type is known
func (mt MediaType) IsValid() bool {
	switch mt {
	case LocalMedia, GCSMedia:
		return true
	default:
		return false
	}
}

// Config holds everything the factory needs
type Config struct {
	Media              MediaType
	MediaLocalDir      string
	MediaPublicBaseURL string
	GCSBucket          string

	GeminiAPIKey      string
	GeminiModel       string
	CategorizeTimeout time.Duration

	// AMQP is optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Ledger export is optional
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// GoogleOptions are appended to every Google API client.
	GoogleOptions []option.ClientOption
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	mt := MediaType(appConfig.MediaBackend)
	if !mt.IsValid() {
		return Config{}, fmt.Errorf("invalid media backend in config: %s", appConfig.MediaBackend)
	}

	return Config{
		Media:              mt,
		MediaLocalDir:      appConfig.MediaLocalDir,
		MediaPublicBaseURL: appConfig.MediaPublicBaseURL,
		GCSBucket:          appConfig.GCSBucket,

		GeminiAPIKey:      appConfig.GeminiAPIKey,
		GeminiModel:       appConfig.GeminiModel,
		CategorizeTimeout: appConfig.CategorizeTimeout,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Media.IsValid() {
		return fmt.Errorf("invalid media backend: %s", c.Media)
	}

	switch c.Media {
	case LocalMedia:
		if c.MediaLocalDir == "" {
			return errors.New("media directory is required for the local media backend")
		}
	case GCSMedia:
		if c.GCSBucket == "" {
			return errors.New("bucket is required for the gcs media backend")
		}
	}

	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return errors.New("AMQP exchange and queue are required when AMQP URL is set")
	}

	return nil
}
