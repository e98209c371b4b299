package media

type (
	// ClassifierConfig allows the recognized extension sets to be swapped
	// out (mainly by tests); a zero value config falls back to the
	// defaults below.
	ClassifierConfig struct {
		AudioExtensions    []string `yaml:"audio_extensions" env:"CLASSIFIER_AUDIO_EXTENSIONS"`
		VideoExtensions    []string `yaml:"video_extensions" env:"CLASSIFIER_VIDEO_EXTENSIONS"`
		SubtitleExtensions []string `yaml:"subtitle_extensions" env:"CLASSIFIER_SUBTITLE_EXTENSIONS"`
	}

	// Classifier maps a file extension (including the leading dot, exactly
	// as produced by filepath.Ext) to a media type. Matching is
	// case-sensitive; the default sets are all lowercase.
	Classifier struct {
		audio    map[string]struct{}
		video    map[string]struct{}
		subtitle map[string]struct{}
	}
)

var (
	defaultAudioExtensions = []string{
		".mp3", ".flac", ".ogg", ".oga", ".m4a", ".aac", ".wav", ".wma", ".opus", ".ape",
	}
	defaultVideoExtensions = []string{
		".mp4", ".mkv", ".avi", ".mov", ".wmv", ".webm", ".m4v", ".mpg", ".mpeg", ".ts",
	}
	defaultSubtitleExtensions = []string{
		".srt", ".sub", ".ssa", ".ass", ".vtt",
	}
)

func NewClassifier(config ClassifierConfig) *Classifier {
	audio := config.AudioExtensions
	if len(audio) == 0 {
		audio = defaultAudioExtensions
	}
	video := config.VideoExtensions
	if len(video) == 0 {
		video = defaultVideoExtensions
	}
	subtitle := config.SubtitleExtensions
	if len(subtitle) == 0 {
		subtitle = defaultSubtitleExtensions
	}

	return &Classifier{
		audio:    toSet(audio),
		video:    toSet(video),
		subtitle: toSet(subtitle),
	}
}

// Classify performs a pure lookup of the extension against the configured
// extension sets. No side effects, no errors; unrecognized extensions
// (including the empty string) classify as UNKNOWN.
func (classifier *Classifier) Classify(ext string) Type {
	if _, ok := classifier.audio[ext]; ok {
		return AUDIO
	}
	if _, ok := classifier.video[ext]; ok {
		return VIDEO
	}
	if _, ok := classifier.subtitle[ext]; ok {
		return SUBTITLE
	}

	return UNKNOWN
}

func toSet(extensions []string) map[string]struct{} {
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		set[ext] = struct{}{}
	}

	return set
}
