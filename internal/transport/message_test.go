package transport

import (
	"errors"
	"testing"
)

func TestMessage_AckOnce(t *testing.T) {
	calls := 0
	m := NewMessage("t", []byte("green"), func() error {
		calls++
		return errors.New("broker gone")
	})

	first := m.Ack()
	second := m.Ack()
	if calls != 1 {
		t.Fatalf("ack func called %d times, want 1", calls)
	}
	if first == nil || first != second {
		t.Errorf("Ack() = %v then %v, want same non-nil error", first, second)
	}
}

func TestMessage_NilAck(t *testing.T) {
	if err := NewMessage("t", nil, nil).Ack(); err != nil {
		t.Fatalf("Ack() = %v, want nil", err)
	}
}
