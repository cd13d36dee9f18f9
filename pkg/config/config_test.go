package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, StorageLocal, cfg.Storage.Driver)
	assert.Equal(t, int64(25*1024*1024), cfg.Storage.MaxFileSizeBytes)
	assert.Equal(t, MailLog, cfg.Mail.Provider)
	assert.Equal(t, 14*24*time.Hour, cfg.Invites.TTL)
	assert.True(t, cfg.Cache.Enabled)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("STORAGE_DRIVER", "GridFS")
	v.Set("ALLOWED_ORIGINS", " https://a.test, ,https://b.test ")
	v.Set("QUERY_CACHE_TTL", "not-a-duration")
	v.Set("APP_URL", "https://app.test/")

	cfg := fromViper(v)
	assert.Equal(t, StorageGridFS, cfg.Storage.Driver)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "https://app.test", cfg.Mail.AppURL)
}
