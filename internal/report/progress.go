package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// progressLine is the JSON payload following the "PROGRESS " prefix
// (spec §6): a single machine-readable line per album processed, for
// callers driving crate as a subprocess.
type progressLine struct {
	Event     EventType `json:"event"`
	Album     string    `json:"album"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	Timestamp string    `json:"timestamp"`
}

// ProgressEmitter reports per-album progress either as "PROGRESS {...}"
// JSON lines (for callers driving crate as a subprocess) or as an
// interactive terminal bar, never both. It is safe for concurrent use
// since multiple workers report progress at once.
type ProgressEmitter struct {
	w   io.Writer
	bar *progressbar.ProgressBar
	mu  sync.Mutex
}

// NewProgressEmitter builds an emitter writing JSON lines to w
// (typically os.Stdout). Construct one only when machine_readable is
// enabled; leave the *Driver's Progress field nil otherwise.
func NewProgressEmitter(w io.Writer) *ProgressEmitter {
	return &ProgressEmitter{w: w}
}

// NewTerminalProgress builds an emitter that renders an interactive
// progress bar instead of JSON, for an attended run against a real
// terminal. The bar starts indeterminate and switches to a known total
// the first time Emit reports one (album discovery finishes before the
// first album commits).
func NewTerminalProgress() *ProgressEmitter {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("processing"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("albums"),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &ProgressEmitter{bar: bar}
}

// Emit reports albumPath's outcome, either as a JSON line or as a bar
// update depending on how the emitter was constructed.
func (p *ProgressEmitter) Emit(event EventType, albumPath string, processed, total int) {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		if total > 0 && p.bar.GetMax() != total {
			p.bar.ChangeMax(total)
		}
		p.bar.Set(processed)
		return
	}

	line := progressLine{
		Event:     event,
		Album:     albumPath,
		Processed: processed,
		Total:     total,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(line)
	if err != nil {
		return
	}
	fmt.Fprintf(p.w, "PROGRESS %s\n", b)
}
