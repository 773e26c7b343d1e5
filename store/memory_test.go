package store

import (
	"context"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	if _, err := st.Load(ctx, DocChatLog); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing document, got %v", err)
	}

	if err := st.Save(ctx, DocChatLog, []byte(`[{"text":"hi"}]`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	body, err := st.Load(ctx, DocChatLog)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(body) != `[{"text":"hi"}]` {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestMemoryStoreLoadCopies(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	if err := st.Save(ctx, DocPresence, []byte(`{}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	body, _ := st.Load(ctx, DocPresence)
	body[0] = 'X'

	again, _ := st.Load(ctx, DocPresence)
	if string(again) != `{}` {
		t.Fatalf("stored document mutated through loaded copy: %q", again)
	}
}

func TestMemoryLockerNonBlocking(t *testing.T) {
	locker := NewMemoryStore().NewLocker()
	ctx := context.Background()

	acquired, err := locker.TryAcquire(ctx)
	if err != nil || !acquired {
		t.Fatalf("first acquire: acquired=%v err=%v", acquired, err)
	}

	// Contended acquire fails fast instead of blocking
	acquired, err = locker.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("contended acquire: %v", err)
	}
	if acquired {
		t.Fatal("contended acquire should fail")
	}

	if err := locker.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	acquired, _ = locker.TryAcquire(ctx)
	if !acquired {
		t.Fatal("acquire after release should succeed")
	}
	_ = locker.Release(ctx)
}
