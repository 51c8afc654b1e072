package db

import (
	"fmt"
	"strings"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ConversationMode
		wantErr bool
	}{
		{"", ModeOpen, false},
		{"open", ModeOpen, false},
		{"RAG", ModeRAG, false},
		{" rag ", ModeRAG, false},
		{"hybrid", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleUser, RoleAssistant, RoleSystem} {
		if !ValidRole(role) {
			t.Errorf("ValidRole(%q) = false", role)
		}
	}
	if ValidRole("tool") {
		t.Error("ValidRole(tool) = true")
	}
}

func TestSummaryText(t *testing.T) {
	var nilConv *Conversation
	if got := nilConv.SummaryText(); got != "" {
		t.Errorf("nil SummaryText() = %q", got)
	}
	s := "earlier turns"
	c := &Conversation{Summary: &s}
	if got := c.SummaryText(); got != s {
		t.Errorf("SummaryText() = %q, want %q", got, s)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("oracle", "whatever", false)
	if err == nil || !strings.Contains(err.Error(), "unsupported driver") {
		t.Fatalf("Open(oracle) error = %v, want unsupported driver", err)
	}
}

func TestOpen_InvalidMySQLDSN(t *testing.T) {
	if _, err := dialectorFor("mysql", "not a dsn"); err == nil {
		t.Fatal("dialectorFor(mysql) expected DSN parse error")
	}
}

func TestOpen_SQLiteMigrate(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, err := Open("sqlite", dsn, false)
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	defer Close(database)

	if err := Migrate(database); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, m := range Models() {
		if !database.Migrator().HasTable(m) {
			t.Errorf("expected table for %T", m)
		}
	}
}
