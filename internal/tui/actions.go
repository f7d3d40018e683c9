package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"artifactcore/internal/core"
	"artifactcore/pkg/domain"
)

type collectDoneMsg struct {
	result core.CollectResult
	err    error
}

type insertDoneMsg struct {
	result domain.LoadResult
	err    error
}

type queryDoneMsg struct {
	result core.QueryResult
	err    error
}

func collectCmd(ctx context.Context, svc Pipeline, req core.CollectRequest, ch chan progressMsg) tea.Cmd {
	return func() tea.Msg {
		req.Progress = progressSink(ctx, ch)
		res, err := svc.Collect(ctx, req)
		close(ch)
		return collectDoneMsg{result: res, err: err}
	}
}

func insertCmd(ctx context.Context, svc Pipeline) tea.Cmd {
	return func() tea.Msg {
		res, err := svc.Insert(ctx)
		return insertDoneMsg{result: res, err: err}
	}
}

func queryCmd(ctx context.Context, svc Pipeline, id string) tea.Cmd {
	return func() tea.Msg {
		res, err := svc.RunQuery(ctx, id)
		return queryDoneMsg{result: res, err: err}
	}
}
