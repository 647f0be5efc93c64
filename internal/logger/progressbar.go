package logger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ProgressBar renders step completion as a fixed-width ASCII bar:
// "[=====     ] 4/8 (50%)". Safe for concurrent use.
type ProgressBar struct {
	mu      sync.Mutex
	current int
	total   int
	width   int
	colored bool
}

// NewProgressBar creates a bar for total units. Widths below 1 are
// raised to 10.
func NewProgressBar(total, width int, colored bool) *ProgressBar {
	if width < 1 {
		width = 10
	}
	return &ProgressBar{total: total, width: width, colored: colored}
}

// Update sets the completed count.
func (pb *ProgressBar) Update(current int) {
	pb.mu.Lock()
	pb.current = current
	pb.mu.Unlock()
}

// Increment advances the completed count by one.
func (pb *ProgressBar) Increment() {
	pb.mu.Lock()
	pb.current++
	pb.mu.Unlock()
}

// Percentage returns completion clamped to [0, 100]. A zero total is 0%.
func (pb *ProgressBar) Percentage() int {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.percentageLocked()
}

func (pb *ProgressBar) percentageLocked() int {
	if pb.total <= 0 {
		return 0
	}
	perc := pb.current * 100 / pb.total
	if perc > 100 {
		return 100
	}
	if perc < 0 {
		return 0
	}
	return perc
}

// Render returns the bar and percentage as one fragment, e.g.
// "[=====     ] 50%". In-progress bars render cyan and finished bars
// green when color is enabled.
func (pb *ProgressBar) Render() string {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	perc := pb.percentageLocked()
	filled := perc * pb.width / 100
	bar := "[" + strings.Repeat("=", filled) + strings.Repeat(" ", pb.width-filled) + "]"

	out := fmt.Sprintf("%s %d%%", bar, perc)
	if !pb.colored {
		return out
	}
	if perc == 100 {
		return color.New(color.FgGreen).Sprint(out)
	}
	return color.New(color.FgCyan).Sprint(out)
}
