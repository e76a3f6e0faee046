// Package ui provides plain terminal output components for provet.
// This file implements the live progress display used by non-TUI
// analysis runs.
package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// AgentStatus represents the display status of one analysis agent.
type AgentStatus int

const (
	StatusActive   AgentStatus = iota // Currently reporting progress
	StatusComplete                    // Finished its steps
	StatusFailed                      // Analysis errored while this agent ran
)

// AgentState holds the display state of a single agent.
type AgentState struct {
	Name    string
	Message string // latest progress message
	Steps   int
	Status  AgentStatus
	Elapsed time.Duration
}

// ProgressDisplay manages a live-updating terminal progress view of the
// analysis agents. Agents appear as their first entry arrives.
type ProgressDisplay struct {
	mu          sync.Mutex
	documents   string
	agents      []*AgentState
	agentIndex  map[string]int // name -> index in agents slice
	isTTY       bool
	linesDrawn  int
	startTimes  map[string]time.Time
	lastPrinted map[string]string // last printed message per agent (non-TTY)
}

// NewProgressDisplay creates a ProgressDisplay for the given documents.
func NewProgressDisplay(documents []string) *ProgressDisplay {
	return &ProgressDisplay{
		documents:   strings.Join(documents, ", "),
		agentIndex:  make(map[string]int),
		startTimes:  make(map[string]time.Time),
		lastPrinted: make(map[string]string),
		isTTY:       term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Observe records one progress entry and re-renders the display. The
// previously active agent is marked complete when a new agent starts.
func (p *ProgressDisplay) Observe(agent, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.agentIndex[agent]
	if !ok {
		// New agent: close out the previous one.
		if n := len(p.agents); n > 0 && p.agents[n-1].Status == StatusActive {
			p.completeLocked(p.agents[n-1])
		}
		idx = len(p.agents)
		p.agentIndex[agent] = idx
		p.agents = append(p.agents, &AgentState{Name: agent, Status: StatusActive})
		p.startTimes[agent] = time.Now()
	}

	state := p.agents[idx]
	state.Message = message
	state.Steps++

	p.render()
}

// Fail marks the currently active agent as failed and re-renders.
func (p *ProgressDisplay) Fail() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.agents); n > 0 && p.agents[n-1].Status == StatusActive {
		p.agents[n-1].Status = StatusFailed
	}
	p.render()
}

// Finish completes the last agent, moves the cursor below the display,
// and prints a summary line.
func (p *ProgressDisplay) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.agents); n > 0 && p.agents[n-1].Status == StatusActive {
		p.completeLocked(p.agents[n-1])
	}
	p.render()

	steps := 0
	for _, a := range p.agents {
		steps += a.Steps
	}
	fmt.Printf("\nAnalysis finished: %d agents, %d steps\n", len(p.agents), steps)
}

func (p *ProgressDisplay) completeLocked(a *AgentState) {
	a.Status = StatusComplete
	if start, ok := p.startTimes[a.Name]; ok {
		a.Elapsed = time.Since(start)
	}
}

// render draws or redraws the progress display.
func (p *ProgressDisplay) render() {
	if !p.isTTY {
		p.renderPlain()
		return
	}
	p.renderTTY()
}

// renderTTY draws the display using ANSI escape codes for in-place updates.
func (p *ProgressDisplay) renderTTY() {
	if p.linesDrawn > 0 {
		fmt.Printf("\033[%dA", p.linesDrawn)
	}

	var buf strings.Builder

	buf.WriteString(fmt.Sprintf("\033[2K\033[1mAnalyzing %s\033[0m\n", p.documents))
	buf.WriteString("\033[2K\n")

	for _, agent := range p.agents {
		buf.WriteString("\033[2K")
		buf.WriteString(formatAgentLine(agent, p.startTimes))
		buf.WriteString("\n")
	}

	fmt.Print(buf.String())
	p.linesDrawn = len(p.agents) + 2 // header + blank + agents
}

// renderPlain writes non-TTY output (for CI/piping).
// Only prints when an agent's message changes to avoid duplicate lines.
func (p *ProgressDisplay) renderPlain() {
	for _, agent := range p.agents {
		if prev, seen := p.lastPrinted[agent.Name]; seen && prev == agent.Message {
			continue
		}
		fmt.Printf("[%s] %s\n", agent.Name, agent.Message)
		p.lastPrinted[agent.Name] = agent.Message
	}
}

// formatAgentLine formats a single agent line with ANSI colors and icons.
func formatAgentLine(agent *AgentState, startTimes map[string]time.Time) string {
	icon := statusIcon(agent.Status)
	detail := statusDetail(agent, startTimes)

	message := agent.Message
	if len(message) > 60 {
		message = message[:57] + "..."
	}

	return fmt.Sprintf("  %s %-10s %s  %s", icon, agent.Name, message, detail)
}

// statusIcon returns the status icon for an agent.
func statusIcon(status AgentStatus) string {
	switch status {
	case StatusComplete:
		return "\033[32m✓\033[0m" // green checkmark
	case StatusFailed:
		return "\033[31m✗\033[0m" // red X
	default:
		return "\033[33m▸\033[0m" // yellow arrow
	}
}

// statusDetail returns the right-side detail text for an agent.
func statusDetail(agent *AgentState, startTimes map[string]time.Time) string {
	switch agent.Status {
	case StatusComplete:
		return fmt.Sprintf("\033[90m[%s]\033[0m", formatDuration(agent.Elapsed))
	case StatusFailed:
		return "\033[31m[failed]\033[0m"
	default:
		elapsed := time.Since(startTimes[agent.Name])
		return fmt.Sprintf("\033[33m[step %d, %s]\033[0m", agent.Steps, formatDuration(elapsed))
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}
