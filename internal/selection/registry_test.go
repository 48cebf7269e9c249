package selection

import "testing"

func TestAcquireGrantsLockToFirstRequester(t *testing.T) {
	//1.- Alice acquires shape r1 on an empty registry.
	r := New()
	ok, heldBy := r.Acquire("r1", "alice")
	if !ok || heldBy != "alice" {
		t.Fatalf("expected alice to acquire r1, got ok=%v heldBy=%q", ok, heldBy)
	}
}

func TestAcquireIsIdempotentForCurrentOwner(t *testing.T) {
	//1.- Alice acquires r1 twice.
	r := New()
	r.Acquire("r1", "alice")
	ok, heldBy := r.Acquire("r1", "alice")

	//2.- The second acquire succeeds without changing the owner.
	if !ok || heldBy != "alice" {
		t.Fatalf("expected idempotent re-acquire, got ok=%v heldBy=%q", ok, heldBy)
	}
}

func TestAcquireRejectsWhenHeldByAnotherIdentity(t *testing.T) {
	//1.- Bob holds r1; alice attempts to acquire it.
	r := New()
	r.Acquire("r1", "bob")
	ok, heldBy := r.Acquire("r1", "alice")

	//2.- Alice is rejected and told bob holds it.
	if ok || heldBy != "bob" {
		t.Fatalf("expected rejection naming bob, got ok=%v heldBy=%q", ok, heldBy)
	}
}

func TestReleaseDropsOnlyTheOwnersLock(t *testing.T) {
	//1.- Bob holds r1; alice attempts to release it.
	r := New()
	r.Acquire("r1", "bob")
	if r.Release("r1", "alice") {
		t.Fatalf("expected alice to be unable to release bob's lock")
	}

	//2.- Bob releases his own lock successfully.
	if !r.Release("r1", "bob") {
		t.Fatalf("expected bob to release his own lock")
	}
	if _, held := r.Lookup("r1"); held {
		t.Fatalf("expected r1 to be unheld after release")
	}
}

func TestReleaseAllOwnedByReturnsEveryHeldShape(t *testing.T) {
	//1.- Alice holds two shapes and Bob holds one.
	r := New()
	r.Acquire("r1", "alice")
	r.Acquire("r2", "alice")
	r.Acquire("r3", "bob")

	//2.- Disconnecting alice releases exactly her two shapes.
	released := r.ReleaseAllOwnedBy("alice")
	if len(released) != 2 {
		t.Fatalf("expected 2 released shapes, got %v", released)
	}
	if _, held := r.Lookup("r3"); !held {
		t.Fatalf("expected bob's lock on r3 to survive alice's disconnect")
	}
}

func TestReleaseAllOnShapeClearsRegardlessOfOwner(t *testing.T) {
	//1.- Bob holds r1.
	r := New()
	r.Acquire("r1", "bob")

	//2.- Removing the shape clears bob's lock and reports him as prior owner.
	owner, released := r.ReleaseAllOnShape("r1")
	if !released || owner != "bob" {
		t.Fatalf("expected release reporting bob, got owner=%q released=%v", owner, released)
	}
	if _, held := r.Lookup("r1"); held {
		t.Fatalf("expected r1 unheld after ReleaseAllOnShape")
	}
}

func TestSnapshotReturnsDefensiveCopy(t *testing.T) {
	//1.- Populate two locks and take a snapshot.
	r := New()
	r.Acquire("r1", "alice")
	r.Acquire("r2", "bob")
	snap := r.Snapshot()

	//2.- Mutating the snapshot must not affect the registry.
	delete(snap, "r1")
	if _, held := r.Lookup("r1"); !held {
		t.Fatalf("expected registry state unaffected by snapshot mutation")
	}
}
