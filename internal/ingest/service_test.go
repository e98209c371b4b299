package ingest_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/mjharwood/medley/internal/event"
	"github.com/mjharwood/medley/internal/ingest"
	"github.com/stretchr/testify/assert"
)

// fakeIngester accepts any path carrying one of its extensions and
// records every path it was offered.
type fakeIngester struct {
	extensions []string
	offered    []string
}

func (i *fakeIngester) AddFile(path string) bool {
	i.offered = append(i.offered, path)
	for _, ext := range i.extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	return false
}

func writeTree(t *testing.T, root string, paths []string) {
	t.Helper()
	for _, rel := range paths {
		path := filepath.Join(root, rel)
		assert.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		assert.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
}

func Test_ScanTree_InvalidRoot(t *testing.T) {
	service := ingest.New(ingest.Config{}, event.New(), &fakeIngester{})

	assert.Error(t, service.ScanTree(filepath.Join(t.TempDir(), "missing")))

	file := filepath.Join(t.TempDir(), "file.mp3")
	assert.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.Error(t, service.ScanTree(file))
}

func Test_ScanTree_OffersFilesInOrder(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, []string{
		"b.mp3",
		"z.txt",
		"albums/c.mp3",
	})

	audio := &fakeIngester{extensions: []string{".mp3"}}
	fallback := &fakeIngester{}
	service := ingest.New(ingest.Config{}, event.New(), audio, fallback)

	assert.NoError(t, service.ScanTree(root))

	// Root-level files are offered (lexically) before any subdirectory
	// content.
	assert.Equal(t, []string{
		filepath.Join(root, "b.mp3"),
		filepath.Join(root, "z.txt"),
		filepath.Join(root, "albums", "c.mp3"),
	}, audio.offered)

	// Every ingester sees every discovered file, even paths an earlier
	// ingester already accepted.
	assert.Equal(t, audio.offered, fallback.offered)
}

func Test_ScanTree_EmitsScanLifecycleEvents(t *testing.T) {
	bus := event.New()

	scanIDs := make(map[event.Event]uuid.UUID)
	for _, ev := range []event.Event{event.SCAN_STARTED, event.SCAN_COMPLETE} {
		bus.RegisterHandlerFunction(ev, func(ev event.Event, payload event.Payload) {
			scanIDs[ev] = payload.(uuid.UUID)
		})
	}

	root := t.TempDir()
	writeTree(t, root, []string{"a.mp3"})
	service := ingest.New(ingest.Config{}, bus, &fakeIngester{extensions: []string{".mp3"}})
	assert.NoError(t, service.ScanTree(root))

	// Both lifecycle events fired, carrying the same scan session ID.
	assert.Contains(t, scanIDs, event.SCAN_STARTED)
	assert.Contains(t, scanIDs, event.SCAN_COMPLETE)
	assert.Equal(t, scanIDs[event.SCAN_STARTED], scanIDs[event.SCAN_COMPLETE])
}

func Test_ScanTree_SymlinkCycleTerminates(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, []string{"nested/a.mp3"})
	assert.NoError(t, os.Symlink(root, filepath.Join(root, "nested", "loop")))

	audio := &fakeIngester{extensions: []string{".mp3"}}
	service := ingest.New(ingest.Config{}, event.New(), audio)

	assert.NoError(t, service.ScanTree(root))
	assert.Equal(t, []string{filepath.Join(root, "nested", "a.mp3")}, audio.offered)
}

func Test_ScanTree_FollowsSymlinkedDirectories(t *testing.T) {
	outside := t.TempDir()
	writeTree(t, outside, []string{"b.mp3"})

	root := t.TempDir()
	writeTree(t, root, []string{"a.mp3"})
	assert.NoError(t, os.Symlink(outside, filepath.Join(root, "linked")))

	audio := &fakeIngester{extensions: []string{".mp3"}}
	service := ingest.New(ingest.Config{}, event.New(), audio)

	assert.NoError(t, service.ScanTree(root))

	// The symlinked directory is walked like any other subdirectory,
	// after the root-level files.
	assert.Equal(t, []string{
		filepath.Join(root, "a.mp3"),
		filepath.Join(root, "linked", "b.mp3"),
	}, audio.offered)
}
