package pkgconfig

import (
	"path"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override file values.
const EnvPrefix = "APP"

// Viper is a Config implementation backed by github.com/spf13/viper.
type Viper struct {
	v *viper.Viper
}

// NewViper loads configuration from the given file path and returns a Viper-backed Config.
//
// The config file type is inferred by Viper from the filename extension. The
// file is layered with APP_* environment variables, environment first.
func NewViper(pathFile string) (*Viper, error) {
	v := viper.New()

	filename := path.Base(pathFile)
	filePath := path.Dir(pathFile)

	configName := path.Base(filename[:len(filename)-len(path.Ext(filename))])

	v.AddConfigPath(filePath)
	v.SetConfigName(configName)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return &Viper{v: v}, nil
}

// GetInt returns the value for key as int64.
func (vc *Viper) GetInt(key string) int64 {
	return vc.v.GetInt64(key)
}

// GetBool returns the value for key as bool.
func (vc *Viper) GetBool(key string) bool {
	return vc.v.GetBool(key)
}

// GetString returns the value for key as string.
func (vc *Viper) GetString(key string) string {
	return vc.v.GetString(key)
}

// GetDuration returns the value for key parsed as a time.Duration ("30s", "2m").
func (vc *Viper) GetDuration(key string) time.Duration {
	return vc.v.GetDuration(key)
}

// GetArray returns the value for key as a list. A YAML sequence is used as is,
// a string (as set through the environment) is split by commas.
//
// An unset or empty key yields nil rather than a single empty element.
func (vc *Viper) GetArray(key string) []string {
	if raw, ok := vc.v.Get(key).(string); ok {
		if raw == "" {
			return nil
		}
		return strings.Split(raw, ",")
	}

	items := vc.v.GetStringSlice(key)
	if len(items) == 0 {
		return nil
	}

	return items
}

// GetMap returns the value for key as a map. A YAML mapping is used as is,
// a string is parsed from "k:v,k:v" pairs.
func (vc *Viper) GetMap(key string) map[string]string {
	raw, ok := vc.v.Get(key).(string)
	if !ok {
		m := vc.v.GetStringMapString(key)
		if m == nil {
			m = make(map[string]string)
		}
		return m
	}

	m := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) == 2 {
			m[kv[0]] = kv[1]
		}
	}

	return m
}

// Close implements io.Closer for interface compatibility.
func (vc *Viper) Close() error {
	// No resources to close for ViperConfig; this is just for interface completeness.
	return nil
}
