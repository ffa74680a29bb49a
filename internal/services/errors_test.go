package services_test

import (
	"errors"
	"testing"

	"github.com/nickh0112/insta-captions/internal/services"
)

func TestWrapPreservesMarker(t *testing.T) {
	cause := errors.New("exit status 1")
	err := services.Wrap(services.ErrExternalTool, "scrape", "yt-dlp", "batch aborted", cause)

	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("marker lost: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause lost: %v", err)
	}
	want := "external tool error: scrape: yt-dlp: batch aborted: exit status 1"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "submit", "", "no URLs provided", nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("marker lost: %v", err)
	}
	if err.Error() != "validation error: submit: no URLs provided" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient fallback: %v", err)
	}
	if err.Error() != "transient failure: service failure" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
