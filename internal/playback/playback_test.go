package playback_test

import (
	"errors"
	"testing"
	"time"

	"github.com/yxz1025/ai-helper/internal/playback"
	"github.com/yxz1025/ai-helper/pkg/types"
)

func clip() *types.AudioClip {
	return &types.AudioClip{Data: []byte("audio"), Format: "mp3"}
}

func TestNewControllerRequiresDevice(t *testing.T) {
	if _, err := playback.NewController(nil); err == nil {
		t.Error("NewController(nil) succeeded")
	}
}

func TestPlayCompletes(t *testing.T) {
	device := &playback.MockDevice{}
	c, err := playback.NewController(device)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	if err := c.Play(t.Context(), clip()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if len(device.PlayCalls) != 1 {
		t.Errorf("device called %d times, want 1", len(device.PlayCalls))
	}
}

func TestPlayRejectsEmptyClip(t *testing.T) {
	device := &playback.MockDevice{}
	c, _ := playback.NewController(device)

	if err := c.Play(t.Context(), nil); !errors.Is(err, playback.ErrEmptyClip) {
		t.Errorf("Play(nil) = %v, want ErrEmptyClip", err)
	}
	if err := c.Play(t.Context(), &types.AudioClip{Format: "mp3"}); !errors.Is(err, playback.ErrEmptyClip) {
		t.Errorf("Play(empty) = %v, want ErrEmptyClip", err)
	}
	if len(device.PlayCalls) != 0 {
		t.Errorf("device touched for empty clip: %d calls", len(device.PlayCalls))
	}
}

func TestPlayPropagatesDeviceError(t *testing.T) {
	deviceErr := errors.New("speaker broken")
	c, _ := playback.NewController(&playback.MockDevice{Err: deviceErr})

	if err := c.Play(t.Context(), clip()); !errors.Is(err, deviceErr) {
		t.Errorf("Play = %v, want device error", err)
	}
}

func TestStopInterruptsPlayback(t *testing.T) {
	device := &playback.MockDevice{Block: make(chan struct{})}
	c, _ := playback.NewController(device)

	done := make(chan error, 1)
	go func() { done <- c.Play(t.Context(), clip()) }()

	waitForCalls(t, device, 1)
	c.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, playback.ErrStopped) {
			t.Errorf("Play = %v, want ErrStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after Stop")
	}
}

func TestNewPlayStopsPrevious(t *testing.T) {
	device := &playback.MockDevice{Block: make(chan struct{})}
	c, _ := playback.NewController(device)

	firstDone := make(chan error, 1)
	go func() { firstDone <- c.Play(t.Context(), clip()) }()
	waitForCalls(t, device, 1)

	// The second clip must cancel the first. Release the block so the second
	// playback can complete naturally.
	secondDone := make(chan error, 1)
	go func() { secondDone <- c.Play(t.Context(), clip()) }()

	select {
	case err := <-firstDone:
		if !errors.Is(err, playback.ErrStopped) {
			t.Errorf("first Play = %v, want ErrStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first Play did not return")
	}

	waitForCalls(t, device, 2)
	close(device.Block)

	select {
	case err := <-secondDone:
		if err != nil {
			t.Errorf("second Play = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second Play did not return")
	}
}

func TestStopWithNothingPlaying(t *testing.T) {
	c, _ := playback.NewController(&playback.MockDevice{})
	c.Stop() // must not panic
}

func waitForCalls(t *testing.T, device *playback.MockDevice, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if device.CallCount() >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("device reached %d calls, want %d", device.CallCount(), n)
		}
		time.Sleep(time.Millisecond)
	}
}
