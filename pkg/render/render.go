// Package render turns WHOOP payloads into indented, human-readable text.
package render

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Sternrassler/whoop-cli/pkg/client"
	"github.com/Sternrassler/whoop-cli/pkg/whoop"
)

const divider = "----------------------------------------"

// Options configure a Renderer.
type Options struct {
	// Location for timestamps, time.Local when nil.
	Location *time.Location

	// Language for number formatting, English when undetermined.
	Language language.Tag
}

// Renderer formats payloads.
type Renderer struct {
	loc     *time.Location
	printer *message.Printer
}

// New creates a Renderer.
func New(opts Options) *Renderer {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Language == language.Und {
		opts.Language = language.English
	}
	return &Renderer{
		loc:     opts.Location,
		printer: message.NewPrinter(opts.Language),
	}
}

// Overview renders the profile once, then one block per cycle with its
// recovery and sleep.
func (r *Renderer) Overview(p *whoop.OverviewPayload) string {
	lines := []string{"WHOOP Overview", ""}
	lines = append(lines, r.section("Profile", "profile", p.Profile)...)

	if len(p.Cycles) == 0 {
		lines = append(lines, "", "Cycles:", "  No data available.")
		return strings.Join(lines, "\n")
	}

	for i, entry := range p.Cycles {
		lines = append(lines, "")
		if i > 0 {
			lines = append(lines, divider, "")
		}
		lines = append(lines, fmt.Sprintf("Cycle %d:", i+1))

		var group []string
		group = append(group, r.section("Cycle", "cycle", entry.Cycle)...)
		group = append(group, "")
		group = append(group, r.section("Recovery", "recovery", entry.Recovery)...)
		group = append(group, "")
		group = append(group, r.section("Sleep", "sleep", entry.Sleep)...)

		lines = append(lines, indent(trimTrailingBlanks(group), 2)...)
	}

	return strings.Join(lines, "\n")
}

// Recovery renders recovery records.
func (r *Renderer) Recovery(p *whoop.RecoveryPayload) string {
	return r.collection("WHOOP Recovery", "Recovery", "recovery", p.Recoveries)
}

// Sleep renders sleep records.
func (r *Renderer) Sleep(p *whoop.SleepPayload) string {
	return r.collection("WHOOP Sleep", "Sleep", "sleep", p.Sleeps)
}

// User renders the profile and body measurement.
func (r *Renderer) User(p *whoop.UserPayload) string {
	lines := []string{"WHOOP User", ""}
	lines = append(lines, r.section("Profile", "profile", p.Profile)...)
	lines = append(lines, "")
	lines = append(lines, r.section("Body Measurement", "bodyMeasurement", p.BodyMeasurement)...)
	return strings.Join(lines, "\n")
}

func (r *Renderer) collection(title, itemLabel, basePath string, records []client.Object) string {
	lines := []string{title, ""}

	if len(records) == 0 {
		lines = append(lines, itemLabel+":", "  No data available.")
		return strings.Join(lines, "\n")
	}

	for i, record := range records {
		if i > 0 {
			lines = append(lines, "", divider, "")
		}
		lines = append(lines, r.section(fmt.Sprintf("%s %d", itemLabel, i+1), basePath, record)...)
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) section(title, basePath string, record client.Object) []string {
	empty := []string{title + ":", "  No data available."}
	if record == nil {
		return empty
	}

	filtered, ok := filterMetadata(record).(map[string]any)
	if !ok {
		return empty
	}

	lines := []string{title + ":"}
	for _, key := range orderedKeys(filtered) {
		lines = append(lines, r.field([]string{basePath, key}, filtered[key], 2)...)
	}
	return lines
}

func (r *Renderer) field(path []string, value any, depth int) []string {
	prefix := strings.Repeat(" ", depth) + label(path) + ":"

	switch v := value.(type) {
	case map[string]any:
		return append([]string{prefix}, r.children(path, v, depth+2)...)
	case []any:
		return append([]string{prefix}, r.items(path, v, depth+2)...)
	default:
		return []string{prefix + " " + r.scalar(path, value)}
	}
}

func (r *Renderer) children(parent []string, obj map[string]any, depth int) []string {
	if len(obj) == 0 {
		return []string{strings.Repeat(" ", depth) + "{}"}
	}
	var lines []string
	for _, key := range orderedKeys(obj) {
		lines = append(lines, r.field(appendPath(parent, key), obj[key], depth)...)
	}
	return lines
}

func (r *Renderer) items(parent []string, arr []any, depth int) []string {
	if len(arr) == 0 {
		return []string{strings.Repeat(" ", depth) + "[]"}
	}
	var lines []string
	for i, item := range arr {
		lines = append(lines, r.field(appendPath(parent, fmt.Sprint(i)), item, depth)...)
	}
	return lines
}

func appendPath(parent []string, key string) []string {
	path := make([]string, len(parent), len(parent)+1)
	copy(path, parent)
	return append(path, key)
}

func indent(lines []string, spaces int) []string {
	prefix := strings.Repeat(" ", spaces)
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = prefix + line
	}
	return out
}

func trimTrailingBlanks(lines []string) []string {
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
