package identity

import (
	"testing"

	"canvasboard/broker/internal/auth"
)

func TestDeriveColorIsDeterministic(t *testing.T) {
	//1.- The same ID must always derive the same color.
	first := DeriveColor("alice")
	second := DeriveColor("alice")
	if first != second {
		t.Fatalf("expected deterministic color, got %q then %q", first, second)
	}
}

func TestDeriveColorDiffersAcrossIdentities(t *testing.T) {
	//1.- Distinct IDs should usually land on distinct ring entries.
	if DeriveColor("alice") == DeriveColor("bob") {
		t.Fatalf("expected alice and bob to derive different colors")
	}
}

func TestFromClaimsFallsBackDisplayNameToSubject(t *testing.T) {
	//1.- No display name supplied: DisplayName falls back to Subject.
	claims := &auth.TokenClaims{Subject: "pilot-7"}
	id := FromClaims(claims, "")

	if id.ID != "pilot-7" || id.DisplayName != "pilot-7" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if id.Color == "" {
		t.Fatalf("expected a non-empty derived color")
	}
}

func TestFromClaimsPrefersSuppliedDisplayName(t *testing.T) {
	//1.- A supplied display name takes priority over the subject.
	claims := &auth.TokenClaims{Subject: "pilot-7"}
	id := FromClaims(claims, "Ada")

	if id.DisplayName != "Ada" {
		t.Fatalf("expected display name Ada, got %q", id.DisplayName)
	}
}
