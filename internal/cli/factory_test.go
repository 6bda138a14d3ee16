package cli

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/insurai/internal/config"
	"github.com/aretw0/insurai/internal/logging"
	"github.com/aretw0/insurai/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, cfg config.Config) *App {
	t.Helper()
	app, err := Build(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestBuild_Backends(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name   string
		adjust func(*config.Config)
	}{
		{"memory", func(*config.Config) {}},
		{"file", func(c *config.Config) {
			c.Sessions.Backend = config.BackendFile
			c.Sessions.Dir = t.TempDir()
		}},
		{"redis", func(c *config.Config) {
			c.Sessions.Backend = config.BackendRedis
			c.Redis.Addr = mr.Addr()
		}},
		{"encrypted sqlite", func(c *config.Config) {
			c.Sessions.EncryptionKey = strings.Repeat("ab", 32)
			c.Sessions.MaskFields = []string{"^phone$"}
			c.Database.Path = filepath.Join(t.TempDir(), "insurai.db")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.adjust(&cfg)
			app := build(t, cfg)
			assert.Equal(t, []string{"claims", "onboarding", "support"}, app.Engine.Flows())

			ctx := context.Background()
			res, err := app.Engine.StartSession(ctx, "support", domain.Input{Name: "name", Value: "Meena"})
			require.NoError(t, err)
			assert.Equal(t, "user_query", res.Awaiting)

			res, err = app.Engine.Advance(ctx, res.SessionID, domain.Input{Name: "user_query", Value: "What is health insurance?"})
			require.NoError(t, err)
			assert.Equal(t, []string{"I'm here to help you understand insurance better. What would you like to know about?"}, res.Messages,
				"without an LLM the scripted fallback answers")
		})
	}
}

func TestBuild_ClaimsUsesOutbox(t *testing.T) {
	app := build(t, config.Default())
	ctx := context.Background()

	res, err := app.Engine.StartSession(ctx, "claims",
		domain.Input{Name: "insurance_type", Value: "health"},
		domain.Input{Name: "insurance_ref_id", Value: "1"},
		domain.Input{Name: "raise_claim", Value: "yes"},
	)
	require.NoError(t, err)
	require.Equal(t, "otp", res.Awaiting)
	require.Len(t, app.Outbox.SMS(), 1)
	assert.Contains(t, app.Outbox.SMS()[0].Body, "Your Insurance Claim OTP is ")
}

func TestBuild_RedisKeysFollowSessionPrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
	}{
		{name: "default", prefix: config.Default().Sessions.Prefix},
		{name: "custom", prefix: "acme:desk:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			cfg := config.Default()
			cfg.Sessions.Backend = config.BackendRedis
			cfg.Sessions.Prefix = tt.prefix
			cfg.Redis.Addr = mr.Addr()
			app := build(t, cfg)

			res, err := app.Engine.StartSession(context.Background(), "claims",
				domain.Input{Name: "insurance_type", Value: "health"},
				domain.Input{Name: "insurance_ref_id", Value: "1"},
				domain.Input{Name: "raise_claim", Value: "yes"},
			)
			require.NoError(t, err)
			require.Equal(t, "otp", res.Awaiting)

			keys := mr.Keys()
			require.NotEmpty(t, keys)
			for _, key := range keys {
				assert.True(t, strings.HasPrefix(key, tt.prefix), "key %q escapes the %q namespace", key, tt.prefix)
			}
			assert.True(t, mr.Exists(tt.prefix+"otp:+916301989290"), "the one-time code lives under the session prefix")
		})
	}
}

func TestBuild_InvalidEncryptionKey(t *testing.T) {
	cfg := config.Default()
	cfg.Sessions.EncryptionKey = "short"
	_, err := Build(context.Background(), cfg, logging.NewNop())
	assert.ErrorContains(t, err, "encryption key must be 32 bytes")
}
