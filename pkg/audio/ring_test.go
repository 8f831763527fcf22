package audio_test

import (
	"sync"
	"testing"

	"github.com/MrWong99/realtalk/pkg/audio"
)

func TestRingBuffer_LoopWraps(t *testing.T) {
	r := audio.NewRingBuffer(4, true)

	if n := r.Write([]float32{1, 2, 3}); n != 3 {
		t.Fatalf("Write = %d, want 3", n)
	}
	if r.Position() != 3 {
		t.Errorf("Position = %d, want 3", r.Position())
	}

	r.Write([]float32{4, 5})
	if r.Position() != 1 {
		t.Errorf("Position after wrap = %d, want 1", r.Position())
	}
	got := r.Read(0, 4)
	want := []float32{5, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("data[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	r.Write([]float32{6, 7, 8})
	if r.Position() != 0 {
		t.Errorf("head landing on the end = %d, want 0", r.Position())
	}
	if n := r.Write([]float32{9}); n != 1 {
		t.Errorf("loop buffer Write after wrap = %d, want 1", n)
	}
}

func TestRingBuffer_OneShotStops(t *testing.T) {
	r := audio.NewRingBuffer(4, false)
	if n := r.Write([]float32{1, 2, 3, 4, 5, 6}); n != 4 {
		t.Errorf("Write = %d, want 4", n)
	}
	if r.Position() != 4 {
		t.Errorf("Position = %d, want 4", r.Position())
	}
	if n := r.Write([]float32{7}); n != 0 {
		t.Errorf("Write after full = %d, want 0", n)
	}
}

func TestRingBuffer_ReadClamps(t *testing.T) {
	r := audio.NewRingBuffer(4, true)
	r.Write([]float32{1, 2, 3, 4})

	tests := []struct {
		from, to int
		want     int
	}{
		{-5, 2, 2},
		{2, 99, 2},
		{3, 1, 0},
		{0, 0, 0},
	}
	for _, tc := range tests {
		if got := len(r.Read(tc.from, tc.to)); got != tc.want {
			t.Errorf("Read(%d, %d) len = %d, want %d", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestRingBuffer_ReadCopies(t *testing.T) {
	r := audio.NewRingBuffer(2, true)
	r.Write([]float32{1, 2})
	got := r.Read(0, 2)
	got[0] = 99
	if r.Read(0, 1)[0] != 1 {
		t.Error("Read returned an alias of the internal buffer")
	}
}

func TestRingBuffer_ZeroLength(t *testing.T) {
	r := audio.NewRingBuffer(-1, true)
	if r.Len() != 0 || r.Write([]float32{1}) != 0 {
		t.Error("zero-length buffer accepted samples")
	}
}

func TestRingBuffer_ConcurrentWriterReader(t *testing.T) {
	r := audio.NewRingBuffer(480, true)
	c := audio.NewCursor(r.Len())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		frame := make([]float32, 48)
		for range 500 {
			r.Write(frame)
		}
	}()

	for range 500 {
		c.Poll(r, r.Position())
		if c.Position() > c.Len() {
			t.Fatalf("cursor %d beyond length %d", c.Position(), c.Len())
		}
	}
	wg.Wait()
}
