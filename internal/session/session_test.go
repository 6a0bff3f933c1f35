package session

import (
	"sync"
	"testing"
)

func TestStoreGetCreatesSession(t *testing.T) {
	store := NewStore()

	sess1 := store.Get("telegram:123")
	if sess1 == nil {
		t.Fatal("Get should create new session")
	}
	if sess1.ID() != "telegram:123" {
		t.Errorf("wrong id: %s", sess1.ID())
	}

	// same ID should return same session
	sess2 := store.Get("telegram:123")
	if sess1 != sess2 {
		t.Error("Get should return same session for same ID")
	}
}

func TestStoreGetDifferentSessions(t *testing.T) {
	store := NewStore()

	sess1 := store.Get("telegram:111")
	sess2 := store.Get("discord:222")

	if sess1 == sess2 {
		t.Error("different IDs should get different sessions")
	}
}

func TestStoreConcurrentGet(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup
	sessions := make(chan *Session, 100)

	// concurrent first-accesses must resolve to one session
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sessions <- store.Get("shared:session")
		}()
	}

	wg.Wait()
	close(sessions)

	var first *Session
	for sess := range sessions {
		if first == nil {
			first = sess
		} else if sess != first {
			t.Error("concurrent Get returned different sessions for same ID")
		}
	}
}

func TestSessionsIndependent(t *testing.T) {
	store := NewStore()

	a := store.Get("a")
	b := store.Get("b")

	// holding one conversation's lock must not block another's
	a.Lock()
	defer a.Unlock()

	done := make(chan struct{})
	go func() {
		b.Lock()
		b.Unlock()
		close(done)
	}()

	<-done
}

func TestSessionSerializesTurns(t *testing.T) {
	store := NewStore()
	sess := store.Get("one")

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.Lock()
			counter++
			sess.Unlock()
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("lost updates under lock: %d", counter)
	}
}
