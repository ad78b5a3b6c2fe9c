package chat

import (
	"fmt"
	"strings"

	"parley/internal/metrics"
)

// DirectiveKind classifies a slash command.
type DirectiveKind int

const (
	DirectiveModel DirectiveKind = iota
	DirectiveHelp
	DirectiveSave
	DirectiveStats
	DirectiveUnknown
)

// Directive is one parsed slash command.
type Directive struct {
	Kind DirectiveKind
	Name string
	Arg  string
}

// ParseDirective classifies an input line. It returns false when the line
// is not a directive and should be sent as a chat message.
func ParseDirective(input string) (Directive, bool) {
	if !strings.HasPrefix(input, "/") {
		return Directive{}, false
	}
	name, arg, _ := strings.Cut(input, " ")
	d := Directive{Name: name, Arg: strings.TrimSpace(arg)}
	switch name {
	case "/model":
		d.Kind = DirectiveModel
	case "/help":
		d.Kind = DirectiveHelp
	case "/save":
		d.Kind = DirectiveSave
	case "/stats":
		d.Kind = DirectiveStats
	default:
		d.Kind = DirectiveUnknown
	}
	return d, true
}

func (a *App) applyDirective(d Directive) {
	switch d.Kind {
	case DirectiveModel:
		if d.Arg == "" {
			if a.PendingModel != "" {
				a.StatusMsg = fmt.Sprintf("current model: %s (next: %s)", a.CurrentModel, a.PendingModel)
			} else {
				a.StatusMsg = fmt.Sprintf("current model: %s", a.CurrentModel)
			}
			return
		}
		a.PendingModel = d.Arg
		a.StatusMsg = fmt.Sprintf("model set to %s, takes effect on the next message", d.Arg)
	case DirectiveHelp:
		a.ShowHelp = true
	case DirectiveSave:
		a.SaveCurrent()
	case DirectiveStats:
		a.StatusMsg = formatStats(a.collector)
	default:
		a.ErrorMsg = fmt.Sprintf("unknown command: %s", d.Name)
	}
}

func formatStats(c *metrics.Collector) string {
	if c == nil {
		return "no stats available"
	}
	snap := c.Snapshot()
	s := snap.Stream
	if s == nil {
		return "no turns yet"
	}
	return fmt.Sprintf("turns: %d, avg %.1fs, first token %.2fs, output tokens ~%d",
		s.Count,
		s.AvgTimeMs/1000,
		s.AvgFirstTokenMs/1000,
		s.TotalOutputTokens)
}
