// Responsible for extracting tag and stream information from local media
// files: audio tags via the file's embedded metadata, and video stream
// properties via `ffprobe`. Also home to the artwork cache, which stores
// artist/album images under a content-addressed-by-name path.
package probe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	"github.com/floostack/transcoder/ffmpeg"
	"github.com/mjharwood/medley/internal/media"
	"github.com/mjharwood/medley/pkg/logger"
)

var log = logger.Get("Probe")

type (
	Config struct {
		// ArtworkCacheDir is where cached artist/album images are
		// written. Created on startup if missing.
		ArtworkCacheDir string `yaml:"artwork_cache_dir" env:"ARTWORK_CACHE_DIR"`
	}

	// VideoInfo is the result of probing a video file: the stream
	// properties plus the show title extracted from the filename, which
	// is empty when the filename carries no episodic pattern.
	VideoInfo struct {
		media.Video
		ShowTitle string
	}

	Parser struct {
		config Config
	}
)

// showTitleMatcher recognizes the common 'Show.Name.S01E02' episodic
// filename pattern.
var showTitleMatcher = regexp.MustCompile(`(?i)^(.*?)[. _-]+s(\d+)[. _-]?e(\d+)`)

// New constructs a Parser, ensuring the artwork cache directory exists.
// If the configured path points at an existing FILE, an error is returned.
func New(config Config) (*Parser, error) {
	if info, err := os.Stat(config.ArtworkCacheDir); err == nil {
		if !info.IsDir() {
			return nil, fmt.Errorf("artwork cache path '%s' is not a directory", config.ArtworkCacheDir)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(config.ArtworkCacheDir, os.ModeDir|os.ModePerm); err != nil {
			return nil, fmt.Errorf("artwork cache path '%s' could not be created: %w", config.ArtworkCacheDir, err)
		}
	} else {
		return nil, fmt.Errorf("artwork cache path '%s' could not be accessed: %w", config.ArtworkCacheDir, err)
	}

	return &Parser{config: config}, nil
}

// GetMusicProperties reads the audio tags embedded in the file at the
// given path and returns them as an unpersisted Track. The scalar tag
// fields are copied verbatim (trimmed); the duration comes from ffprobe
// and is best-effort - a probe failure logs and leaves it zero rather
// than failing the parse.
func (parser *Parser) GetMusicProperties(path string) (*media.Track, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file for tag parsing: %w", err)
	}
	defer file.Close()

	tags, err := tag.ReadFrom(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags from '%s': %w", path, err)
	}

	trackNumber, _ := tags.Track()
	discNumber, _ := tags.Disc()
	track := &media.Track{
		Path:        path,
		Title:       strings.TrimSpace(tags.Title()),
		ArtistName:  strings.TrimSpace(tags.Artist()),
		AlbumName:   strings.TrimSpace(tags.Album()),
		TrackNumber: trackNumber,
		DiscNumber:  discNumber,
	}

	if duration, err := probeDurationSeconds(path); err == nil {
		track.DurationSeconds = duration
	} else {
		log.Debugf("Could not probe duration of '%s': %v\n", path, err)
	}

	return track, nil
}

// GetVideoProperties probes the file at the given path with ffprobe and
// returns its stream properties as an unpersisted Video, along with any
// show title recognized in the filename.
func (parser *Parser) GetVideoProperties(path string) (*VideoInfo, error) {
	metadata, err := ffmpeg.New(&ffmpeg.Config{}).Input(path).GetMetadata()
	if err != nil {
		return nil, fmt.Errorf("failed to extract video metadata using ffprobe: %w", err)
	}

	info := VideoInfo{
		Video: media.Video{
			Path:  path,
			Title: titleFromFilename(path),
		},
		ShowTitle: showTitleFromFilename(path),
	}

	if streams := metadata.GetStreams(); len(streams) > 0 {
		info.Width = streams[0].GetWidth()
		info.Height = streams[0].GetHeight()
	}
	if duration, err := strconv.ParseFloat(metadata.GetFormat().GetDuration(), 64); err == nil {
		info.DurationSeconds = int(duration)
	}

	return &info, nil
}

func probeDurationSeconds(path string) (int, error) {
	metadata, err := ffmpeg.New(&ffmpeg.Config{}).Input(path).GetMetadata()
	if err != nil {
		return 0, err
	}

	duration, err := strconv.ParseFloat(metadata.GetFormat().GetDuration(), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe reported a non-numeric duration: %w", err)
	}

	return int(duration), nil
}

// titleFromFilename strips the extension and normalizes separator
// characters to produce a displayable title.
func titleFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSpace(strings.NewReplacer(".", " ", "_", " ").Replace(base))
}

// showTitleFromFilename extracts the show portion of an episodic
// 'Show.Name.S01E02' filename, returning the empty string for
// non-episodic filenames.
func showTitleFromFilename(path string) string {
	base := filepath.Base(path)
	groups := showTitleMatcher.FindStringSubmatch(base)
	if groups == nil {
		return ""
	}

	return strings.TrimSpace(strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(groups[1]))
}
