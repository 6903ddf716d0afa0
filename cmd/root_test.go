package cmd

import (
	"log/slog"
	"testing"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"text info", "info", "text", false},
		{"json debug", "debug", "json", false},
		{"形式省略", "warn", "", false},
		{"不正なレベル", "loud", "text", true},
		{"不正な形式", "info", "xml", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := setupLogger(tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("setupLogger(%q, %q) error = %v, wantErr %v", tt.level, tt.format, err, tt.wantErr)
			}
		})
	}
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()
	for _, path := range [][]string{
		{"serve"},
		{"generate"},
		{"followup"},
		{"designs", "list"},
		{"usage", "export"},
	} {
		c, _, err := root.Find(path)
		if err != nil || c == root {
			t.Errorf("サブコマンド %v が見つからないのだ: %v", path, err)
		}
	}
}
