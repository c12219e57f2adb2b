package wireversion_test

import (
	"testing"

	"github.com/corewire/mongodrv/wireversion"
)

func TestCoerceKnownLevels(t *testing.T) {
	cases := map[int]wireversion.WireVersion{
		3:  wireversion.V3_0,
		4:  wireversion.V3_2,
		17: wireversion.V6_0,
		25: wireversion.V8_0,
	}
	for level, want := range cases {
		if got := wireversion.Coerce(level); got != want {
			t.Errorf("Coerce(%d) = %v, want %v", level, got, want)
		}
	}
}

func TestCoerceBelowMinimum(t *testing.T) {
	if got := wireversion.Coerce(0); got != wireversion.V3_0 {
		t.Errorf("Coerce(0) = %v, want V3_0", got)
	}
	if got := wireversion.Coerce(3); got != wireversion.V3_0 {
		t.Errorf("Coerce(3) = %v, want V3_0", got)
	}
}

func TestCoerceRoundsDownBetweenKnownLevels(t *testing.T) {
	// 9-12 sit strictly between V4_2 (8) and V5_0 (13).
	if got := wireversion.Coerce(12); got != wireversion.V4_2 {
		t.Errorf("Coerce(12) = %v, want V4_2", got)
	}
}

func TestCoerceAboveMaximum(t *testing.T) {
	if got := wireversion.Coerce(99); got != wireversion.V8_0 {
		t.Errorf("Coerce(99) = %v, want V8_0", got)
	}
}

func TestAtLeastAndSupports(t *testing.T) {
	if !wireversion.V4_0.AtLeast(wireversion.V3_6) {
		t.Errorf("expected V4_0 >= V3_6")
	}
	if wireversion.V3_0.AtLeast(wireversion.V3_6) {
		t.Errorf("expected V3_0 < V3_6")
	}
	if !wireversion.V4_2.Supports(wireversion.CapabilityTransactions) {
		t.Errorf("expected V4_2 to support transactions")
	}
	if wireversion.V3_0.Supports(wireversion.CapabilityOpMsg) {
		t.Errorf("expected V3_0 to not support OP_MSG")
	}
}

func TestStringKnownAndUnknown(t *testing.T) {
	if wireversion.V6_0.String() != "6.0" {
		t.Errorf("expected 6.0, got %s", wireversion.V6_0.String())
	}
	if wireversion.WireVersion(999).String() != "unknown(999)" {
		t.Errorf("unexpected string for unknown level: %s", wireversion.WireVersion(999).String())
	}
}
