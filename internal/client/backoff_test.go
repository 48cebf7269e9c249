package client

import (
	"testing"
	"time"
)

func TestReconnectDelayDoublesToCap(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{7, 30 * time.Second},
		{100, 30 * time.Second},
	}
	for _, c := range cases {
		if got := reconnectDelay(c.attempt); got != c.want {
			t.Errorf("reconnectDelay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestReconnectDelayClampsNonPositiveAttempt(t *testing.T) {
	if got := reconnectDelay(0); got != time.Second {
		t.Fatalf("reconnectDelay(0) = %v, want %v", got, time.Second)
	}
	if got := reconnectDelay(-5); got != time.Second {
		t.Fatalf("reconnectDelay(-5) = %v, want %v", got, time.Second)
	}
}
