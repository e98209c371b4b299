package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/mjharwood/medley/internal/database"
	"github.com/mjharwood/medley/internal/event"
	"github.com/mjharwood/medley/internal/ingest"
	"github.com/mjharwood/medley/internal/media"
	"github.com/mjharwood/medley/internal/metadata"
	"github.com/mjharwood/medley/internal/metadata/applemusic"
	"github.com/mjharwood/medley/internal/metadata/deezer"
	"github.com/mjharwood/medley/internal/metadata/lastfm"
	"github.com/mjharwood/medley/internal/metadata/spotify"
	"github.com/mjharwood/medley/internal/podcast"
	"github.com/mjharwood/medley/internal/probe"
	"github.com/mjharwood/medley/pkg/logger"
)

var log = logger.Get("Core")

type RunnableService interface {
	Run(context.Context) error
}

// Medley represents the top-level object for the server, and is
// responsible for initialising the stores, ingestion services, event
// handling, et cetera...
type medleyImpl struct {
	eventBus event.EventCoordinator
	config   MedleyConfig

	libraryStore *media.Store
	videoStore   *media.VideoStore
	podcastStore *media.PodcastStore

	scanService    RunnableService
	podcastService *podcast.Service
}

func New(config MedleyConfig) *medleyImpl {
	log.Debugf("Bootstrapping Medley services using config: %#v\n", config)
	return &medleyImpl{
		eventBus:     event.New(),
		config:       config,
		libraryStore: &media.Store{},
		videoStore:   &media.VideoStore{},
		podcastStore: &media.PodcastStore{},
	}
}

// Run will start all of Medley by bringing up all required services and
// connections.
//
// This function will not return until Medley is stopped. To stop Medley,
// the provided context must be cancelled. Errors from which Medley cannot
// recover will also cause it to stop.
func (medley *medleyImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	crashHandler := func(label string, err error) {
		log.Fatalf("Service crash (%s)! %s\n", label, err.Error())
		cancel()
	}

	log.Infof("Connecting to database...\n")
	db := database.New()
	if err := db.Connect(medley.config.Database); err != nil {
		return err
	}

	parser, err := probe.New(medley.config.Probe)
	if err != nil {
		return fmt.Errorf("failed to construct media parser: %w", err)
	}

	sqlxDb := db.GetSqlxDb()
	enrichment := metadata.New(sqlxDb, medley.libraryStore, parser, medley.buildProviders()...)
	classifier := media.NewClassifier(medley.config.Classifier)

	audioService := ingest.NewAudioService(sqlxDb, medley.libraryStore, parser, enrichment, classifier, medley.eventBus)
	videoService := ingest.NewVideoService(sqlxDb, medley.videoStore, parser, classifier, medley.eventBus)
	medley.scanService = ingest.New(medley.config.Scan, medley.eventBus, audioService, videoService)
	medley.podcastService = podcast.New(medley.config.Podcast, sqlxDb, medley.podcastStore, podcast.NewFeedFetcher(), medley.eventBus)

	wg := &sync.WaitGroup{}
	medley.spawnAsyncService(ctx, wg, medley.scanService, "scan-service", crashHandler)
	medley.spawnAsyncService(ctx, wg, medley.podcastService, "podcast-service", crashHandler)
	log.Infof("Medley services spawned!\n")

	wg.Wait()
	return nil
}

// buildProviders assembles the metadata provider list in registration
// order. Keyed providers with no configured credentials are omitted so
// enrichment never emits doomed requests.
func (medley *medleyImpl) buildProviders() []metadata.Provider {
	providers := make([]metadata.Provider, 0, 4)

	if medley.config.Providers.SpotifyClientID != "" && medley.config.Providers.SpotifyClientSecret != "" {
		providers = append(providers, spotify.New(spotify.Config{
			ClientID:     medley.config.Providers.SpotifyClientID,
			ClientSecret: medley.config.Providers.SpotifyClientSecret,
		}))
	}
	if medley.config.Providers.LastFmApiKey != "" {
		providers = append(providers, lastfm.New(lastfm.Config{ApiKey: medley.config.Providers.LastFmApiKey}))
	}

	providers = append(providers, applemusic.New(), deezer.New())
	return providers
}

// PodcastService exposes the podcast sync service for callers that drive
// feed subscriptions outside of the file system scan.
func (medley *medleyImpl) PodcastService() *podcast.Service {
	return medley.podcastService
}

// spawnAsyncService will run the provided function/service as it's own
// go-routine, ensuring that the Medley service waitgroup is updated correctly
func (medley *medleyImpl) spawnAsyncService(context context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Infof("Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		defer wg.Done()
		if err := service.Run(context); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}
