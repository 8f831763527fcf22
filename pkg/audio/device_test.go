package audio_test

import (
	"testing"
	"time"

	"github.com/MrWong99/realtalk/pkg/audio"
)

func TestDefaultDevice(t *testing.T) {
	devs := []audio.DeviceInfo{
		{ID: "a", Name: "USB Mic"},
		{ID: "b", Name: "Built-in", IsDefault: true},
		{ID: "c", Name: "Headset"},
	}

	tests := []struct {
		name   string
		devs   []audio.DeviceInfo
		id     string
		wantID string
		wantOK bool
	}{
		{name: "flagged default", devs: devs, wantID: "b", wantOK: true},
		{name: "by id", devs: devs, id: "c", wantID: "c", wantOK: true},
		{name: "by name", devs: devs, id: "USB Mic", wantID: "a", wantOK: true},
		{name: "unknown id", devs: devs, id: "zzz", wantOK: false},
		{name: "first when none flagged", devs: devs[:1], wantID: "a", wantOK: true},
		{name: "empty list", devs: nil, wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := audio.DefaultDevice(tc.devs, tc.id)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && got.ID != tc.wantID {
				t.Errorf("ID = %q, want %q", got.ID, tc.wantID)
			}
		})
	}
}

func TestRecordingConfig_BufferLen(t *testing.T) {
	cfg := audio.RecordingConfig{Duration: 10 * time.Second, SampleRate: audio.SampleRate}
	if got := cfg.BufferLen(); got != 240000 {
		t.Errorf("BufferLen = %d, want 240000", got)
	}
}
