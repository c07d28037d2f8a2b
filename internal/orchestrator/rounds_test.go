package orchestrator

import "testing"

func TestRoundsForModeDefaultsToNormal(t *testing.T) {
	rounds, err := RoundsForMode("")
	if err != nil {
		t.Fatal(err)
	}
	if len(rounds) == 0 {
		t.Fatal("expected a non-empty default round table")
	}
}

func TestRoundsForModeUnknown(t *testing.T) {
	if _, err := RoundsForMode("ludicrous"); err == nil {
		t.Error("expected an error for an unknown mode")
	}
}

func TestRoundsForModeCaseInsensitive(t *testing.T) {
	lower, err := RoundsForMode("quick")
	if err != nil {
		t.Fatal(err)
	}
	upper, err := RoundsForMode("QUICK")
	if err != nil {
		t.Fatal(err)
	}
	if len(lower) != len(upper) {
		t.Error("expected case-insensitive mode matching")
	}
}

func TestParseRoundsOverride(t *testing.T) {
	rounds, err := ParseRoundsOverride("1m:0,5m:50,20m:20")
	if err != nil {
		t.Fatal(err)
	}
	if len(rounds) != 3 {
		t.Fatalf("expected 3 rounds, got %d", len(rounds))
	}
	if rounds[0].Size != 1<<20 || rounds[0].Cap != 0 {
		t.Errorf("unexpected first round: %+v", rounds[0])
	}
	if rounds[1].Size != 5<<20 || rounds[1].Cap != 50 {
		t.Errorf("unexpected second round: %+v", rounds[1])
	}
}

func TestParseRoundsOverrideEmpty(t *testing.T) {
	rounds, err := ParseRoundsOverride("")
	if err != nil {
		t.Fatal(err)
	}
	if rounds != nil {
		t.Error("expected nil rounds for an empty override")
	}
}

func TestParseRoundsOverrideMalformed(t *testing.T) {
	if _, err := ParseRoundsOverride("5m"); err == nil {
		t.Error("expected an error for a round missing its cap")
	}
	if _, err := ParseRoundsOverride("5x:10"); err == nil {
		t.Error("expected an error for an unparseable byte size")
	}
}
