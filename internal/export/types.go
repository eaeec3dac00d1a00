package export

import "github.com/autocut/autocut-agent/internal/clip"

const (
	DefaultPrefix    = "clip"
	DefaultContainer = "mp4"
)

// Request is one batch of clips cut from a single media file.
type Request struct {
	MediaPath  string       `json:"media_path"`
	Ranges     []clip.Range `json:"ranges"`
	OutputDir  string       `json:"output_dir"`
	NamePrefix string       `json:"name_prefix"`
	Container  string       `json:"container"`
}

// Failure records a clip whose transcoder run did not succeed.
type Failure struct {
	Ordinal  int        `json:"ordinal"`
	Range    clip.Range `json:"range"`
	Path     string     `json:"path"`
	ExitCode int        `json:"exit_code"`
	Message  string     `json:"message"`
}

// Result summarises a batch. Exported counts clips whose transcoder exited
// cleanly; Attempted includes failures.
type Result struct {
	Requested int       `json:"requested"`
	Attempted int       `json:"attempted"`
	Exported  int       `json:"exported"`
	Files     []string  `json:"files"`
	Failed    []Failure `json:"failed,omitempty"`
	FrameRate float64   `json:"frame_rate"`
	Cancelled bool      `json:"cancelled"`
}

// EDLRequest asks for an edit decision list of the given ranges.
type EDLRequest struct {
	Title      string       `json:"title"`
	MediaPath  string       `json:"media_path"`
	Ranges     []clip.Range `json:"ranges"`
	NamePrefix string       `json:"name_prefix"`
	FrameRate  float64      `json:"frame_rate"`
	OutputDir  string       `json:"output_dir"`
}
