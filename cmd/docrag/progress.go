package main

import (
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"docrag/internal/bridge"
)

// await shows an indeterminate spinner on stderr until inv finishes, using
// progress events as the spinner description.
func await[T any](inv *bridge.Invocation[T], description string) (T, error) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	events := inv.Events()
	for events != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Kind == bridge.Progress {
				bar.Describe(ev.Message)
			}
		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
	_ = bar.Finish()
	return inv.Wait()
}
