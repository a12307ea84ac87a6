package cli

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/pipeline"
)

// RunProgress draws a progress bar for a pipeline run. The total is only known
// once the run has loaded its inputs, so the bar is created lazily.
type RunProgress struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
	done   int
	mu     sync.Mutex
}

// NewRunProgress creates a progress reporter writing to w.
func NewRunProgress(w io.Writer) *RunProgress {
	return &RunProgress{writer: w}
}

// Func returns the callback to hand to pipeline.WithProgress.
func (p *RunProgress) Func() pipeline.ProgressFunc {
	return p.update
}

func (p *RunProgress) update(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.writer),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("[cyan][bold]Evaluating listings...[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				if _, err := fmt.Fprintln(p.writer); err != nil {
					slog.Warn("Failed to write newline after progress bar", "error", err)
				}
			}),
		)
	}

	p.done = done
	if err := p.bar.Set(done); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Done reports how many pairs the bar has recorded.
func (p *RunProgress) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
