package telegram

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestSessionLifecycle(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewSessions(5*time.Minute, clock.Now)

	if _, ok := s.Get("alice"); ok {
		t.Fatal("unexpected session")
	}
	s.Begin("alice")
	sess, ok := s.Get("alice")
	if !ok || sess.Stage != StageAwaitingRecipient {
		t.Fatalf("sess=%+v ok=%v", sess, ok)
	}

	s.SetRecipient("alice", "bob")
	sess, _ = s.Get("alice")
	if sess.Stage != StageAwaitingAmount || sess.Recipient != "bob" {
		t.Fatalf("sess=%+v", sess)
	}

	if !s.End("alice") {
		t.Fatal("End should report an active session")
	}
	if s.End("alice") {
		t.Fatal("second End should report no session")
	}
}

func TestSessionExpires(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewSessions(time.Minute, clock.Now)

	s.Begin("alice")
	s.Begin("bob")
	clock.Advance(30 * time.Second)
	s.SetRecipient("bob", "carol")
	clock.Advance(45 * time.Second)

	if _, ok := s.Get("alice"); ok {
		t.Fatal("alice's session should have expired")
	}
	if n := s.Sweep(); n != 0 {
		t.Fatalf("sweep=%d want=0", n)
	}
	if _, ok := s.Get("bob"); !ok {
		t.Fatal("bob's session was refreshed and should still be active")
	}
	clock.Advance(time.Minute)
	if n := s.Sweep(); n != 1 {
		t.Fatalf("sweep=%d want=1", n)
	}
}

func TestSetRecipientWithoutSession(t *testing.T) {
	s := NewSessions(0, nil)
	s.SetRecipient("alice", "bob")
	if _, ok := s.Get("alice"); ok {
		t.Fatal("SetRecipient must not create a session")
	}
}
