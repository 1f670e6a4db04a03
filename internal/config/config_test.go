package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
	assert.Equal(t, "second_hand", cfg.KeyPrefix)
	assert.Equal(t, "local", cfg.MediaBackend)
	assert.Equal(t, "media", cfg.MediaRoot)
}

func TestLoadRequiresToken(t *testing.T) {
	// t.Setenv registers the restore; the variable must be absent, not empty.
	t.Setenv("BOT_TOKEN", "placeholder")
	os.Unsetenv("BOT_TOKEN")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadParsesIDLists(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("SUPER_ADMIN_IDS", "10,20")
	t.Setenv("MODERATOR_CHAT_IDS", "-100123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int64{10, 20}, cfg.SuperAdminIDs)
	assert.Equal(t, []int64{-100123}, cfg.ModeratorChatIDs)
	assert.True(t, cfg.IsSuperAdmin(10))
	assert.False(t, cfg.IsSuperAdmin(30))
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("MEDIA_BACKEND", "ftp")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadValidatesS3Settings(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("MEDIA_BACKEND", "s3")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("S3_BUCKET", "listings")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.S3Region)
}
