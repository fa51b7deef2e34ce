package artifact

import (
	"testing"
	"time"
)

// TestStoreExposeAssignsHandle verifies the published artifact is retrievable
// by its handle.
func TestStoreExposeAssignsHandle(t *testing.T) {
	store := NewStore(time.Minute)

	art := store.Expose("talk", "1\n00:00:00,000 --> 00:00:01,000\nhi\n\n", "hi")
	if art.ID == "" {
		t.Fatal("expose should assign a handle")
	}

	got, ok := store.Get(art.ID)
	if !ok {
		t.Fatal("artifact should be live right after expose")
	}
	if got.BaseName != "talk" || got.Plain != "hi" {
		t.Fatalf("artifact = %+v", got)
	}
}

// TestStoreSupersedeRevokesPrevious verifies at most one artifact is live.
func TestStoreSupersedeRevokesPrevious(t *testing.T) {
	store := NewStore(time.Minute)

	first := store.Expose("a", "srt-a", "plain-a")
	second := store.Expose("b", "srt-b", "plain-b")

	if _, ok := store.Get(first.ID); ok {
		t.Fatal("superseded artifact should be revoked")
	}
	if _, ok := store.Get(second.ID); !ok {
		t.Fatal("new artifact should be live")
	}
}

// TestStoreRevokeIsIdempotent verifies releasing a handle twice is harmless.
func TestStoreRevokeIsIdempotent(t *testing.T) {
	store := NewStore(time.Minute)
	art := store.Expose("a", "srt", "plain")

	if !store.Revoke(art.ID) {
		t.Fatal("first revoke should report release")
	}
	if store.Revoke(art.ID) {
		t.Fatal("second revoke should be a no-op")
	}
	if _, ok := store.Current(); ok {
		t.Fatal("no artifact should be live after revoke")
	}
}

// TestStoreRevokeUnknownHandle verifies stale handles cannot release the
// current artifact.
func TestStoreRevokeUnknownHandle(t *testing.T) {
	store := NewStore(time.Minute)
	art := store.Expose("a", "srt", "plain")

	if store.Revoke("not-a-handle") {
		t.Fatal("unknown handle should not revoke anything")
	}
	if _, ok := store.Get(art.ID); !ok {
		t.Fatal("current artifact should survive a stale revoke")
	}
}

// TestStoreGraceTimerRevokes verifies an unsuperseded artifact is released
// after the grace period.
func TestStoreGraceTimerRevokes(t *testing.T) {
	store := NewStore(20 * time.Millisecond)
	art := store.Expose("a", "srt", "plain")

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := store.Get(art.ID); !ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("grace timer did not revoke the artifact")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// TestStoreExposeCancelsOldTimer verifies a superseding artifact is not
// revoked by the predecessor's timer.
func TestStoreExposeCancelsOldTimer(t *testing.T) {
	store := NewStore(30 * time.Millisecond)
	store.Expose("a", "srt-a", "plain-a")
	second := store.Expose("b", "srt-b", "plain-b")

	time.Sleep(15 * time.Millisecond)
	if _, ok := store.Get(second.ID); !ok {
		t.Fatal("second artifact revoked too early")
	}
}

// TestStoreZeroGraceUsesDefault verifies the default grace period fallback.
func TestStoreZeroGraceUsesDefault(t *testing.T) {
	store := NewStore(0)
	if store.grace != DefaultGracePeriod {
		t.Fatalf("grace = %v, want %v", store.grace, DefaultGracePeriod)
	}
}
