package main

import "testing"

func TestFlagsAcceptUnderscoreSpellings(t *testing.T) {
	cmd := newRootCommand()
	args := []string{"--local_rank", "3", "--batch_size", "32", "--enable_amp", "--opt_level", "O1"}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := cmd.Flags().Lookup("local-rank").Value.String(); got != "3" {
		t.Errorf("local-rank = %q, want 3", got)
	}
	if got := cmd.Flags().Lookup("batch-size").Value.String(); got != "32" {
		t.Errorf("batch-size = %q, want 32", got)
	}
	if got := cmd.Flags().Lookup("enable-amp").Value.String(); got != "true" {
		t.Errorf("enable-amp = %q, want true", got)
	}
	if got := cmd.Flags().Lookup("opt-level").Value.String(); got != "O1" {
		t.Errorf("opt-level = %q, want O1", got)
	}
}

func TestFlagDefaultsMatchConfig(t *testing.T) {
	cmd := newRootCommand()
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := cmd.Flags().Lookup("epochs").Value.String(); got != "4" {
		t.Errorf("epochs default = %q, want 4", got)
	}
	if got := cmd.Flags().Lookup("test-batch-size").Value.String(); got != "1000" {
		t.Errorf("test-batch-size default = %q, want 1000", got)
	}
}
