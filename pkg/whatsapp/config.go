package whatsapp

import (
	"time"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/env"
)

type Config struct {
	DatastoreType string
	DatastoreURI  string
	ProxyURL      string

	MediaTimeout       time.Duration
	MediaMaxBytes      int
	ImageConvertWebP   bool
	ImageCompression   bool
	VersionRefreshWait time.Duration

	// Optional WhatsApp Web version pin; zero values keep the library default.
	VersionMajor int
	VersionMinor int
	VersionPatch int
}

const (
	DefaultDatastoreType = "sqlite3"
	DefaultDatastoreURI  = "file:data/whatsapp.db?_foreign_keys=on"
)

func LoadConfig() Config {
	return Config{
		DatastoreType:      env.GetEnvStringOrDefault("WHATSAPP_DATASTORE_TYPE", DefaultDatastoreType),
		DatastoreURI:       env.GetEnvStringOrDefault("WHATSAPP_DATASTORE_URI", DefaultDatastoreURI),
		ProxyURL:           env.GetEnvStringOrDefault("WHATSAPP_CLIENT_PROXY_URL", ""),
		MediaTimeout:       env.GetEnvDurationOrDefault("WHATSAPP_MEDIA_TIMEOUT", 20*time.Second),
		MediaMaxBytes:      env.GetEnvSizeOrDefault("WHATSAPP_MEDIA_MAX_BYTES", 16<<20),
		ImageConvertWebP:   env.GetEnvBoolOrDefault("WHATSAPP_MEDIA_IMAGE_CONVERT_WEBP", true),
		ImageCompression:   env.GetEnvBoolOrDefault("WHATSAPP_MEDIA_IMAGE_COMPRESSION", false),
		VersionRefreshWait: env.GetEnvDurationOrDefault("WHATSAPP_WAVERSION_REFRESH_MIN_INTERVAL", 10*time.Minute),
		VersionMajor:       env.GetEnvIntOrDefault("WHATSAPP_VERSION_MAJOR", 0),
		VersionMinor:       env.GetEnvIntOrDefault("WHATSAPP_VERSION_MINOR", 0),
		VersionPatch:       env.GetEnvIntOrDefault("WHATSAPP_VERSION_PATCH", 0),
	}
}
