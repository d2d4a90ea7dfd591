package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		TorBoxAPIKey:    "key",
		ArrRecheckHours: 24,
		Categories: []CategoryConfig{
			{Name: CategoryMovies, Action: "Move", TargetDir: "/media/movies"},
			{Name: CategoryOther, Action: "Nothing"},
		},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing api key", func(c *Config) { c.TorBoxAPIKey = "" }, "TORBOX_API_KEY"},
		{"bad cleanup policy", func(c *Config) { c.CleanActiveDownloads = 7 }, "CLEAN_ACTIVE_DOWNLOADS_POLICY"},
		{"zero recheck", func(c *Config) { c.ArrRecheckHours = 0 }, "ARR_RECHECK_HOURS"},
		{"copy without dir", func(c *Config) { c.Categories[1] = CategoryConfig{Name: CategoryOther, Action: "Copy"} }, "no target directory"},
		{"unknown action", func(c *Config) { c.Categories[0].Action = "Link" }, "unknown action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "MOVIE_SERIES_DIR", envKey(CategoryMovieSeries, "DIR"))
	assert.Equal(t, "NO_TYPE_ACTION", envKey(CategoryNoType, "ACTION"))
}

func TestLoadReadsCategoryPolicies(t *testing.T) {
	t.Setenv("CONFIG_DIR", t.TempDir())
	t.Setenv("TORBOX_API_KEY", "secret")
	t.Setenv("MOVIES_ACTION", "Copy")
	t.Setenv("MOVIES_DIR", "/library/movies")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "torbox.app", cfg.TorBoxHost)
	assert.True(t, cfg.OrganizeMovies)
	require.Len(t, cfg.Categories, len(KnownCategories))
	for _, cat := range cfg.Categories {
		if cat.Name == CategoryMovies {
			assert.Equal(t, "Copy", cat.Action)
			assert.Equal(t, "/library/movies", cat.TargetDir)
		}
	}
}
