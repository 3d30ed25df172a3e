package relay

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestChannelSendRecv(t *testing.T) {
	ch := NewChannel(2)
	ctx := context.Background()

	if err := ch.Send(ctx, []byte("a")); err != nil {
		t.Fatalf("Send = %v", err)
	}
	got, err := ch.Recv(ctx, time.Second)
	if err != nil {
		t.Fatalf("Recv = %v", err)
	}
	if string(got) != "a" {
		t.Fatalf("Recv() = %q, want %q", got, "a")
	}
}

func TestChannelFull(t *testing.T) {
	ch := NewChannel(1)
	ctx := context.Background()

	if ch.Full() {
		t.Fatalf("Full() true before any Send")
	}
	if err := ch.Send(ctx, []byte("x")); err != nil {
		t.Fatalf("Send = %v", err)
	}
	if !ch.Full() {
		t.Fatalf("Full() false at capacity")
	}
}

func TestChannelRecvTimeout(t *testing.T) {
	ch := NewChannel(1)
	_, err := ch.Recv(context.Background(), 10*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Recv() err = %v, want ErrTimeout", err)
	}
}

func TestChannelSendBlocksUntilContextDone(t *testing.T) {
	ch := NewChannel(1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := ch.Send(ctx, []byte("fill")); err != nil {
		t.Fatalf("Send = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- ch.Send(ctx, []byte("blocked"))
	}()

	select {
	case <-done:
		t.Fatalf("Send returned before the channel had room or ctx was cancelled")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("Send() = nil, want context error")
		}
	case <-time.After(time.Second):
		t.Fatalf("Send did not unblock after context cancellation")
	}
}

func TestChannelRecvContextDone(t *testing.T) {
	ch := NewChannel(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ch.Recv(ctx, time.Second)
	if err == nil {
		t.Fatalf("Recv() = nil, want an error for a cancelled context")
	}
}

func TestNewChannelNonPositiveCapacity(t *testing.T) {
	ch := NewChannel(0)
	if cap(ch.ch) != 1 {
		t.Fatalf("NewChannel(0) capacity = %d, want 1", cap(ch.ch))
	}
}
