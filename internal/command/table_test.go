package command

import (
	"errors"
	"testing"
)

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()
	if table.Len() != 7 {
		t.Fatalf("Len() = %d, want 7", table.Len())
	}

	cmd, ok := table.Lookup(Catch)
	if !ok || cmd.Payload != "grab" || cmd.Description == "" {
		t.Errorf("Lookup(Catch) = %+v, %v", cmd, ok)
	}
	if _, ok := table.Lookup("Jump"); ok {
		t.Error("Lookup(Jump) should fail")
	}

	cmds := table.Commands()
	for i := 1; i < len(cmds); i++ {
		if cmds[i-1].Name >= cmds[i].Name {
			t.Errorf("Commands() not sorted at %d: %s >= %s", i, cmds[i-1].Name, cmds[i].Name)
		}
	}

	// Mutating the returned slice must not affect the table.
	cmds[0].Payload = "mutated"
	if c, _ := table.Lookup(cmds[0].Name); c.Payload == "mutated" {
		t.Error("Commands() exposed table storage")
	}
}

func TestNewTable_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cmds    []Command
		wantErr error
	}{
		{
			name: "valid",
			cmds: []Command{{Name: "A", Payload: "a"}, {Name: "B", Payload: "b"}},
		},
		{
			name:    "empty name",
			cmds:    []Command{{Payload: "a"}},
			wantErr: ErrInvalidCommand,
		},
		{
			name:    "empty payload",
			cmds:    []Command{{Name: "A"}},
			wantErr: ErrInvalidCommand,
		},
		{
			name:    "duplicate name",
			cmds:    []Command{{Name: "A", Payload: "a"}, {Name: "A", Payload: "b"}},
			wantErr: ErrDuplicateCommand,
		},
		{
			name:    "duplicate payload",
			cmds:    []Command{{Name: "A", Payload: "a"}, {Name: "B", Payload: "a"}},
			wantErr: ErrDuplicateCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.cmds...)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("NewTable() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewTable() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
