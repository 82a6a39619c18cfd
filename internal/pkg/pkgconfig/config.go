package pkgconfig

import (
	"io"
	"time"
)

// Config is the read-only view of application configuration used by the app.
type Config interface {
	GetInt(key string) int64
	GetBool(key string) bool
	GetString(key string) string
	GetDuration(key string) time.Duration
	GetArray(key string) []string
	GetMap(key string) map[string]string
	io.Closer
}
