package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/gaia/pkg/provider/stt"
	"github.com/MrWong99/gaia/pkg/types"
)

func TestDeliver_NoSession(t *testing.T) {
	t.Parallel()
	p := New()
	if err := p.Deliver(types.Transcript{Text: "hi", IsFinal: true}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Deliver without session = %v, want ErrNoSession", err)
	}
	if p.Active() {
		t.Error("Active() = true before any session")
	}
}

func TestDeliver_RoutesFinalsAndPartials(t *testing.T) {
	t.Parallel()
	p := New()
	sess, err := p.StartStream(context.Background(), stt.StreamConfig{Interim: true})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer sess.Close()

	if err := p.Deliver(types.Transcript{Text: "I won", IsFinal: false}); err != nil {
		t.Fatalf("Deliver partial: %v", err)
	}
	if err := p.Deliver(types.Transcript{Text: "I wonder if", IsFinal: true}); err != nil {
		t.Fatalf("Deliver final: %v", err)
	}

	if got := <-sess.Partials(); got.Text != "I won" {
		t.Errorf("partial = %q", got.Text)
	}
	if got := <-sess.Finals(); got.Text != "I wonder if" {
		t.Errorf("final = %q", got.Text)
	}
}

func TestDeliver_InterimDroppedWhenNotRequested(t *testing.T) {
	t.Parallel()
	p := New()
	sess, _ := p.StartStream(context.Background(), stt.StreamConfig{})
	defer sess.Close()

	if err := p.Deliver(types.Transcript{Text: "partial"}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	select {
	case got := <-sess.Partials():
		t.Fatalf("unexpected partial %q", got.Text)
	default:
	}
}

func TestEnd_ClosesFinals(t *testing.T) {
	t.Parallel()
	p := New()
	sess, _ := p.StartStream(context.Background(), stt.StreamConfig{})

	p.End()

	if _, ok := <-sess.Finals(); ok {
		t.Fatal("expected finals to be closed after End")
	}
	if p.Active() {
		t.Error("Active() = true after End")
	}
	if err := p.Deliver(types.Transcript{Text: "late", IsFinal: true}); !errors.Is(err, stt.ErrSessionClosed) {
		t.Errorf("Deliver after End = %v, want ErrSessionClosed", err)
	}
}

func TestFail_ReportsErrorBeforeClosing(t *testing.T) {
	t.Parallel()
	p := New()
	sess, _ := p.StartStream(context.Background(), stt.StreamConfig{})

	p.Fail(stt.ErrPermissionRevoked)

	errs := sess.(stt.ErrorReporter).Errors()
	err, ok := <-errs
	if !ok || !errors.Is(err, stt.ErrPermissionRevoked) {
		t.Fatalf("Errors() = %v (ok=%v), want ErrPermissionRevoked", err, ok)
	}
	if _, ok := <-sess.Finals(); ok {
		t.Fatal("expected finals to be closed after Fail")
	}
}

func TestStartStream_ReplacesPreviousSession(t *testing.T) {
	t.Parallel()
	p := New()
	first, _ := p.StartStream(context.Background(), stt.StreamConfig{})
	second, _ := p.StartStream(context.Background(), stt.StreamConfig{})
	defer second.Close()

	if _, ok := <-first.Finals(); ok {
		t.Fatal("first session should be closed once replaced")
	}
	if err := p.Deliver(types.Transcript{Text: "to second", IsFinal: true}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := <-second.Finals(); got.Text != "to second" {
		t.Errorf("second session got %q", got.Text)
	}
}

func TestStartStream_ContextCancelEndsSession(t *testing.T) {
	t.Parallel()
	p := New()
	ctx, cancel := context.WithCancel(context.Background())
	sess, _ := p.StartStream(ctx, stt.StreamConfig{})

	cancel()

	select {
	case _, ok := <-sess.Finals():
		if ok {
			t.Fatal("unexpected final")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after context cancellation")
	}
}

func TestSendAudio_NotAccepted(t *testing.T) {
	t.Parallel()
	sess, _ := New().StartStream(context.Background(), stt.StreamConfig{})
	defer sess.Close()
	if err := sess.SendAudio([]byte{1, 2}); !errors.Is(err, stt.ErrAudioNotAccepted) {
		t.Errorf("SendAudio = %v, want ErrAudioNotAccepted", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()
	sess, _ := New().StartStream(context.Background(), stt.StreamConfig{})
	if err := sess.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sess.Close(); err != nil {
		t.Fatal(err)
	}
}
