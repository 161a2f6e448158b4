// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package tui is an optional Bubble Tea front end for pvachat, showing the
// connection status and transcript produced by a [chatadapter.Adapter]
// instead of the line-mode stdin/stdout loop.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/microsoft/power-virtual-agents-sdk/chatadapter"
	"github.com/microsoft/power-virtual-agents-sdk/pva"
)

var (
	statusStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

type activityMsg pva.Activity
type statusMsg chatadapter.ConnectionStatus
type postResultMsg chatadapter.PostResult
type streamClosedMsg struct{}

// Model is the Bubble Tea model driving the chat transcript.
type Model struct {
	adapter    *chatadapter.Adapter
	activities <-chan pva.Activity
	statuses   <-chan chatadapter.ConnectionStatus
	input      string
	status     chatadapter.ConnectionStatus
	lines      []string
	lastErr    error
	done       bool
}

// New returns a Model wrapping adapter. Subscribing here (rather than on
// every Bubble Tea update) matters because ConnectionStatus() hands back a
// fresh replay-from-current subscription on each call.
func New(adapter *chatadapter.Adapter) Model {
	return Model{
		adapter:    adapter,
		activities: adapter.Activities(),
		statuses:   adapter.ConnectionStatus(),
		status:     chatadapter.Uninitialized,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForActivity(m.activities), waitForStatus(m.statuses))
}

func waitForActivity(ch <-chan pva.Activity) tea.Cmd {
	return func() tea.Msg {
		act, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return activityMsg(act)
	}
}

func waitForStatus(ch <-chan chatadapter.ConnectionStatus) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return statusMsg(s)
	}
}

func postActivity(a *chatadapter.Adapter, text string) tea.Cmd {
	return func() tea.Msg {
		result := <-a.PostActivity(context.Background(), pva.Activity{"type": "message", "text": text})
		return postResultMsg(result)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.input == "" || m.done {
				return m, nil
			}
			m.lines = append(m.lines, userStyle.Render("you> "+m.input))
			cmd := postActivity(m.adapter, m.input)
			m.input = ""
			return m, cmd
		case tea.KeyBackspace:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
			return m, nil
		default:
			m.input += msg.String()
			return m, nil
		}
	case activityMsg:
		if text, ok := pva.Activity(msg)["text"].(string); ok {
			m.lines = append(m.lines, botStyle.Render("bot> "+text))
		}
		return m, waitForActivity(m.activities)
	case statusMsg:
		m.status = chatadapter.ConnectionStatus(msg)
		if m.status == chatadapter.FailedToConnect || m.status == chatadapter.Ended {
			m.done = true
		}
		return m, waitForStatus(m.statuses)
	case postResultMsg:
		if msg.Err != nil {
			m.lastErr = msg.Err
			m.lines = append(m.lines, errStyle.Render("error: "+msg.Err.Error()))
		}
		return m, nil
	case streamClosedMsg:
		m.done = true
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	fmt.Fprintln(&b, statusStyle.Render(fmt.Sprintf("[%s]", m.status)))
	for _, l := range m.lines {
		fmt.Fprintln(&b, l)
	}
	if m.done {
		fmt.Fprintln(&b, errStyle.Render("(connection ended)"))
	} else {
		fmt.Fprintf(&b, "> %s\n", m.input)
	}
	return b.String()
}
