package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"artifactcore/internal/collector"
)

type progressMsg float64

// progressDoneMsg reports that the stream ch was closed.
type progressDoneMsg struct {
	ch <-chan progressMsg
}

// progressSink forwards collector progress to ch until ctx is done.
func progressSink(ctx context.Context, ch chan<- progressMsg) collector.ProgressFunc {
	return func(fraction float64) {
		select {
		case ch <- progressMsg(fraction):
		case <-ctx.Done():
		}
	}
}

func listenProgressCmd(ch <-chan progressMsg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return progressDoneMsg{ch: ch}
		}
		return msg
	}
}
