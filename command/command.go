// Package command classifies raw chat text into tracker commands. Matching is
// pure string work: no I/O, no side effects.
package command

import "strings"

// Kind enumerates the recognized command classes.
type Kind int

const (
	None Kind = iota
	Start
	End
	LevelToggle
	CategoryUpdate
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case End:
		return "end"
	case LevelToggle:
		return "level"
	case CategoryUpdate:
		return "category"
	default:
		return "none"
	}
}

// Command is the classified result. Category is set only for CategoryUpdate.
type Command struct {
	Kind     Kind
	Category string
}

// Classifier holds the configured keyword sets. Keywords are matched exactly
// (case-insensitive, whitespace-trimmed); category words match on "contains",
// first configured word wins.
type Classifier struct {
	start      map[string]struct{}
	end        map[string]struct{}
	level      map[string]struct{}
	categories []string
}

func NewClassifier(start, end, level, categories []string) *Classifier {
	c := &Classifier{
		start: make(map[string]struct{}, len(start)),
		end:   make(map[string]struct{}, len(end)),
		level: make(map[string]struct{}, len(level)),
	}
	for _, k := range start {
		c.start[normalize(k)] = struct{}{}
	}
	for _, k := range end {
		c.end[normalize(k)] = struct{}{}
	}
	for _, k := range level {
		c.level[normalize(k)] = struct{}{}
	}
	for _, w := range categories {
		c.categories = append(c.categories, normalize(w))
	}
	return c
}

// Parse maps text to a Command. Exact keyword matches take precedence over
// category words; a message is never both a Start/End and a CategoryUpdate.
func (c *Classifier) Parse(text string) Command {
	t := normalize(text)
	if t == "" {
		return Command{Kind: None}
	}
	if _, ok := c.start[t]; ok {
		return Command{Kind: Start}
	}
	if _, ok := c.end[t]; ok {
		return Command{Kind: End}
	}
	if _, ok := c.level[t]; ok {
		return Command{Kind: LevelToggle}
	}
	for _, w := range c.categories {
		if strings.Contains(t, w) {
			return Command{Kind: CategoryUpdate, Category: w}
		}
	}
	return Command{Kind: None}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
