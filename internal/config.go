package internal

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mjharwood/medley/internal/database"
	"github.com/mjharwood/medley/internal/ingest"
	"github.com/mjharwood/medley/internal/media"
	"github.com/mjharwood/medley/internal/podcast"
	"github.com/mjharwood/medley/internal/probe"
)

// MedleyConfig is the struct used to contain the
// various user config supplied by file, or
// manually inside the code.
type MedleyConfig struct {
	Database   database.DatabaseConfig `yaml:"database" env-required:"true"`
	Scan       ingest.Config           `yaml:"scan"`
	Classifier media.ClassifierConfig  `yaml:"classifier"`
	Probe      probe.Config            `yaml:"probe"`
	Podcast    podcast.Config          `yaml:"podcast"`
	Providers  ProviderConfig          `yaml:"providers"`
}

// ProviderConfig carries the credentials for the metadata providers that
// require them. Apple Music and Deezer are keyless; Spotify and Last.fm
// are skipped when their credentials are absent.
type ProviderConfig struct {
	SpotifyClientID     string `yaml:"spotify_client_id" env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `yaml:"spotify_client_secret" env:"SPOTIFY_CLIENT_SECRET"`
	LastFmApiKey        string `yaml:"lastfm_api_key" env:"LASTFM_API_KEY"`
}

// Loads a configuration file formatted in YAML in to a
// MedleyConfig struct ready to be passed to Medley
func (config *MedleyConfig) LoadFromFile(configPath string) error {
	err := cleanenv.ReadConfig(configPath, config)
	if err != nil {
		return fmt.Errorf("failed to load configuration for MedleyConfig - %v", err.Error())
	}

	return nil
}
