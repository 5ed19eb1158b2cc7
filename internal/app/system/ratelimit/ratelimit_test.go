package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowPerKey(t *testing.T) {
	l := New(2, time.Minute)
	defer l.Stop()

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two events should pass")
	}
	if l.Allow("a") {
		t.Error("third event within window should be rejected")
	}
	if !l.Allow("b") {
		t.Error("other key should be unaffected")
	}
}

func TestLimiter_WindowExpires(t *testing.T) {
	l := New(1, 10*time.Millisecond)
	defer l.Stop()

	if !l.Allow("k") {
		t.Fatal("first event should pass")
	}
	if l.Allow("k") {
		t.Fatal("second event should be rejected")
	}
	time.Sleep(20 * time.Millisecond)
	if !l.Allow("k") {
		t.Error("event after window should pass")
	}
}

func TestBucket_BurstThenRefill(t *testing.T) {
	b := NewBucket(3, 30*time.Millisecond)
	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("burst event %d rejected", i)
		}
	}
	if b.Allow() {
		t.Fatal("event beyond burst should be rejected")
	}
	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Error("bucket should have refilled at least one token")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if got := ClientIP(r); got != "10.0.0.1" {
		t.Errorf("RemoteAddr: got %q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIP(r); got != "203.0.113.7" {
		t.Errorf("X-Forwarded-For: got %q", got)
	}
}
