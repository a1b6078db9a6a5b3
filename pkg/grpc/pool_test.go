package grpc

import (
	"testing"
)

func TestGetConnectionReusesConn(t *testing.T) {
	p := NewPool()
	defer p.Close()

	c1, err := p.GetConnection("passthrough:///localhost:50051")
	if err != nil {
		t.Fatal(err)
	}
	c2, err := p.GetConnection("passthrough:///localhost:50051")
	if err != nil {
		t.Fatal(err)
	}
	if c1 != c2 {
		t.Fatal("expected the same connection for the same target")
	}

	c3, err := p.GetConnection("passthrough:///localhost:50052")
	if err != nil {
		t.Fatal(err)
	}
	if c3 == c1 {
		t.Fatal("expected a different connection for a different target")
	}
}

func TestGetConnectionReplacesClosedConn(t *testing.T) {
	p := NewPool()
	defer p.Close()

	c1, err := p.GetConnection("passthrough:///localhost:50051")
	if err != nil {
		t.Fatal(err)
	}
	if err := c1.Close(); err != nil {
		t.Fatal(err)
	}
	c2, err := p.GetConnection("passthrough:///localhost:50051")
	if err != nil {
		t.Fatal(err)
	}
	if c1 == c2 {
		t.Fatal("closed connection should be replaced")
	}
}

func TestClose(t *testing.T) {
	p := NewPool()
	if _, err := p.GetConnection("passthrough:///localhost:50051"); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	count := 0
	p.conns.Range(func(any, any) bool {
		count++
		return true
	})
	if count != 0 {
		t.Fatalf("conns=%d want=0", count)
	}
}
