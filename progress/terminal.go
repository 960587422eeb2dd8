package progress

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/franzpoize/bl/internal/lock"
)

// Terminal renders one progressbar per slot plus an aggregate
// completion counter: a per-task status line alongside an overall
// count bar.
type Terminal struct {
	out io.Writer

	mu    lock.RWMutex
	bars  map[string]*progressbar.ProgressBar
	total *progressbar.ProgressBar
	done  int
}

// NewTerminal returns a Terminal writing to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out, bars: make(map[string]*progressbar.ProgressBar)}
}

func (t *Terminal) Start(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(t.out),
		progressbar.OptionSetDescription(color.CyanString("assembling slots")),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (t *Terminal) SlotStarted(slot string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(t.out),
		progressbar.OptionSpinnerType(11),
		progressbar.OptionSetDescription(color.CyanString(slot)),
	)
	t.bars[slot] = bar
}

func (t *Terminal) SlotStatus(slot, status string) {
	t.mu.RLock()
	bar, ok := t.bars[slot]
	t.mu.RUnlock()
	if !ok {
		return
	}
	bar.Describe(fmt.Sprintf("%s: %s", color.CyanString(slot), status))
}

func (t *Terminal) SlotDone(slot string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bar, ok := t.bars[slot]
	if ok {
		if err != nil {
			bar.Describe(fmt.Sprintf("%s: %s", color.RedString(slot), err))
		} else {
			bar.Describe(fmt.Sprintf("%s: %s", color.GreenString(slot), "done"))
			_ = bar.Finish()
		}
		delete(t.bars, slot)
	}

	t.done++
	if t.total != nil {
		_ = t.total.Set(t.done)
	}
}

func (t *Terminal) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.total != nil {
		_ = t.total.Finish()
	}
}
