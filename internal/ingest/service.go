package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mjharwood/medley/internal/event"
	"github.com/mjharwood/medley/pkg/logger"
	gosync "github.com/mjharwood/medley/pkg/sync"
	"github.com/rjeczalik/notify"
)

var log = logger.Get("ScanServ")

type (
	// Ingester consumes candidate file paths discovered during a library
	// scan. AddFile reports whether the ingester handled the path; every
	// ingester sees every discovered file, and files an ingester does
	// not recognize are silently declined.
	Ingester interface {
		AddFile(path string) bool
	}

	// scanService walks the configured library directories and offers
	// every discovered file to its registered ingesters. The walk visits
	// the files of a directory (in lexical order) before descending in
	// to its subdirectories, so parent-level content is ingested before
	// nested content.
	scanService struct {
		config    Config
		ingesters []Ingester
		eventBus  event.EventDispatcher
		inFlight  gosync.KeySet[string]
	}
)

// New creates a new scan service over the provided ingesters. Each
// discovered file is offered to every ingester, in this order; an
// ingester that does not recognize a path simply declines it.
func New(config Config, eventBus event.EventDispatcher, ingesters ...Ingester) *scanService {
	return &scanService{
		config:    config,
		ingesters: ingesters,
		eventBus:  eventBus,
	}
}

// Run is the main entry point of this service. It performs an initial
// scan of every configured library path, then listens to the OS file
// system for changes, as well as regularly re-scanning irrespective of
// the watcher. To kill the service, the calling code should cancel the
// context provided.
func (service *scanService) Run(ctx context.Context) error {
	fsNotifyChannel := make(chan notify.EventInfo, 128)
	for _, path := range service.config.LibraryPaths {
		if err := notify.Watch(filepath.Join(path, "..."), fsNotifyChannel, notify.All); err != nil {
			return fmt.Errorf("failed to watch library path '%s': %w", path, err)
		}
	}
	defer notify.Stop(fsNotifyChannel)

	forceSyncChannel := time.NewTicker(service.config.ForceSyncInterval())
	defer forceSyncChannel.Stop()

	service.scanAll()

	for {
		select {
		case <-fsNotifyChannel:
			service.scanAll()
		case <-forceSyncChannel.C:
			service.scanAll()
		case <-ctx.Done():
			return nil
		}
	}
}

func (service *scanService) scanAll() {
	for _, path := range service.config.LibraryPaths {
		if err := service.ScanTree(path); err != nil {
			log.Errorf("Scan of library path '%s' failed: %v\n", path, err)
		}
	}
}

// ScanTree walks the directory tree rooted at the given path, offering
// every file to each registered ingester in order. An error is returned
// only when the root itself is missing or not a directory; failures on
// individual files are handled by the ingesters and never abort the
// walk. Directory symlink cycles are detected and skipped.
func (service *scanService) ScanTree(root string) error {
	if info, err := os.Stat(root); err != nil {
		return fmt.Errorf("scan root '%s' could not be accessed: %w", root, err)
	} else if !info.IsDir() {
		return fmt.Errorf("scan root '%s' is not a directory", root)
	}

	scanID := uuid.New()
	service.eventBus.Dispatch(event.SCAN_STARTED, scanID)
	defer service.eventBus.Dispatch(event.SCAN_COMPLETE, scanID)

	visited := make(map[string]bool)
	service.walkDirectory(root, visited)
	return nil
}

// walkDirectory ingests the files of the directory before recursing in
// to its subdirectories. Directories are tracked by their resolved path
// so a symlink loop is walked at most once.
func (service *scanService) walkDirectory(dir string, visited map[string]bool) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		log.Warnf("Skipping unresolvable directory '%s': %v\n", dir, err)
		return
	}
	if visited[resolved] {
		return
	}
	visited[resolved] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warnf("Skipping unreadable directory '%s': %v\n", dir, err)
		return
	}

	var files, subdirs []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			subdirs = append(subdirs, path)
			continue
		}

		// ReadDir does not follow symlinks, so a link to a directory
		// reports as a non-dir entry and must be resolved here.
		if entry.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				log.Warnf("Skipping unresolvable symlink '%s': %v\n", path, err)
				continue
			}
			if info.IsDir() {
				subdirs = append(subdirs, path)
				continue
			}
		}

		files = append(files, path)
	}

	for _, path := range files {
		service.offerFile(path)
	}
	for _, path := range subdirs {
		service.walkDirectory(path, visited)
	}
}

// offerFile presents the path to each ingester in registration order.
// A path already being ingested by a concurrent scan is skipped.
func (service *scanService) offerFile(path string) {
	if !service.inFlight.TryAdd(path) {
		return
	}
	defer service.inFlight.Remove(path)

	for _, ingester := range service.ingesters {
		ingester.AddFile(path)
	}
}
