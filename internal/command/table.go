package command

import (
	"fmt"
	"sort"
)

// Name identifies a robot command, e.g. "GoForward".
type Name string

// Command names understood by the robot.
const (
	GoForward Name = "GoForward"
	GoBack    Name = "GoBack"
	TurnLeft  Name = "TurnLeft"
	TurnRight Name = "TurnRight"
	Dance     Name = "Dance"
	Catch     Name = "Catch"
	Release   Name = "Release"
)

// Command maps an externally invoked name to the fixed payload published
// on the robot topic.
type Command struct {
	Name        Name   `json:"name"`
	Description string `json:"description"`
	Payload     string `json:"payload"`
}

// Table is an immutable name to command mapping. The zero value is empty.
type Table struct {
	byName map[Name]Command
}

// NewTable builds a table, rejecting empty fields and duplicate names or payloads.
func NewTable(cmds ...Command) (*Table, error) {
	byName := make(map[Name]Command, len(cmds))
	payloads := make(map[string]Name, len(cmds))

	for _, c := range cmds {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: empty name", ErrInvalidCommand)
		}
		if c.Payload == "" {
			return nil, fmt.Errorf("%w: %s has an empty payload", ErrInvalidCommand, c.Name)
		}
		if _, exists := byName[c.Name]; exists {
			return nil, fmt.Errorf("%w: name %s", ErrDuplicateCommand, c.Name)
		}
		if other, exists := payloads[c.Payload]; exists {
			return nil, fmt.Errorf("%w: payload %q used by %s and %s", ErrDuplicateCommand, c.Payload, other, c.Name)
		}
		byName[c.Name] = c
		payloads[c.Payload] = c.Name
	}

	return &Table{byName: byName}, nil
}

// DefaultTable returns the robot's built-in command set.
func DefaultTable() *Table {
	t, err := NewTable(
		Command{Name: GoForward, Payload: "forward", Description: "Drive the tracks forward"},
		Command{Name: GoBack, Payload: "backward", Description: "Drive the tracks backward"},
		Command{Name: TurnLeft, Payload: "left", Description: "Turn the base left"},
		Command{Name: TurnRight, Payload: "right", Description: "Turn the base right"},
		Command{Name: Dance, Payload: "dance", Description: "Perform the dance routine"},
		Command{Name: Catch, Payload: "grab", Description: "Close the claw"},
		Command{Name: Release, Payload: "release", Description: "Open the claw"},
	)
	if err != nil {
		panic(err) // static table
	}
	return t
}

// Lookup returns the command registered under name.
func (t *Table) Lookup(name Name) (Command, bool) {
	c, ok := t.byName[name]
	return c, ok
}

// Commands returns all commands sorted by name.
func (t *Table) Commands() []Command {
	out := make([]Command, 0, len(t.byName))
	for _, c := range t.byName {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of commands.
func (t *Table) Len() int {
	return len(t.byName)
}
