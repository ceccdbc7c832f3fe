package gateway

import (
	"strings"
	"testing"
)

func fill(rb *ReplayBuffer, from, to int64) {
	for i := from; i <= to; i++ {
		ch := "event:quote:AAPL"
		if i%2 == 0 {
			ch = "event:trade:AAPL"
		}
		rb.Push(i, ch, []byte("msg"))
	}
}

func TestReplayBuffer_Since(t *testing.T) {
	rb := NewReplayBuffer(100)
	fill(rb, 1, 10)

	got := rb.Since(7, nil)
	if len(got) != 3 {
		t.Fatalf("Since(7): got %d entries, want 3", len(got))
	}
	for i, e := range got {
		if want := int64(i) + 8; e.Seq != want {
			t.Errorf("entry[%d].Seq = %d, want %d", i, e.Seq, want)
		}
	}
}

func TestReplayBuffer_Filter(t *testing.T) {
	rb := NewReplayBuffer(100)
	fill(rb, 1, 10)

	trades := rb.Since(0, func(ch string) bool { return strings.HasPrefix(ch, "event:trade:") })
	if len(trades) != 5 {
		t.Fatalf("trades = %d, want 5", len(trades))
	}
	if trades[0].Seq != 2 || trades[4].Seq != 10 {
		t.Errorf("trade seqs = %d..%d", trades[0].Seq, trades[4].Seq)
	}
}

func TestReplayBuffer_Eviction(t *testing.T) {
	rb := NewReplayBuffer(5)
	fill(rb, 1, 8) // 1..3 evicted

	if rb.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", rb.Len())
	}
	got := rb.Since(0, nil)
	if got[0].Seq != 4 || got[4].Seq != 8 {
		t.Errorf("window = %d..%d, want 4..8", got[0].Seq, got[4].Seq)
	}
	if got := rb.Since(8, nil); len(got) != 0 {
		t.Errorf("Since(newest) = %d entries", len(got))
	}
}

func TestReplayBuffer_Empty(t *testing.T) {
	if got := NewReplayBuffer(10).Since(0, nil); len(got) != 0 {
		t.Fatalf("empty buffer returned %d entries", len(got))
	}
}
