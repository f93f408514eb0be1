package files

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"collegemgmt/internal/shared"
)

// pngHeader is the PNG magic number plus a minimal IHDR chunk, enough for
// content-type sniffing.
var pngHeader = []byte{
	0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n',
	0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R',
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x02, 0x00, 0x00, 0x00,
}

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewDiskStore(t.TempDir(), 1)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestDiskStore(t *testing.T) {
	t.Run("Save And Open Round Trip", func(t *testing.T) {
		store := newTestStore(t)

		ref, err := store.Save("timetable.png", bytes.NewReader(pngHeader))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasSuffix(ref, ".png") {
			t.Errorf("reference should keep the extension, got %q", ref)
		}
		if strings.Contains(ref, "timetable") {
			t.Errorf("reference must not reuse the uploaded name, got %q", ref)
		}

		reader, err := store.Open(ref)
		if err != nil {
			t.Fatal(err)
		}
		defer reader.Close()
		data, err := io.ReadAll(reader)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(data, pngHeader) {
			t.Error("stored content differs from upload")
		}
	})

	t.Run("Distinct Uploads Get Distinct References", func(t *testing.T) {
		store := newTestStore(t)

		first, err := store.Save("a.png", bytes.NewReader(pngHeader))
		if err != nil {
			t.Fatal(err)
		}
		second, err := store.Save("a.png", bytes.NewReader(pngHeader))
		if err != nil {
			t.Fatal(err)
		}
		if first == second {
			t.Error("same original name must not collide")
		}
	})

	t.Run("Unsupported Type Is Rejected", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.Save("script.sh", strings.NewReader("#!/bin/sh\nrm -rf /\n"))
		var ve *shared.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("Oversized Upload Is Rejected", func(t *testing.T) {
		store := newTestStore(t)

		big := append(append([]byte{}, pngHeader...), make([]byte, 2*1024*1024)...)
		_, err := store.Save("big.png", bytes.NewReader(big))
		var ve *shared.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError for oversized file, got %v", err)
		}
	})

	t.Run("Traversal References Are Rejected", func(t *testing.T) {
		store := newTestStore(t)

		for _, ref := range []string{"../etc/passwd", "a/b.png", ""} {
			if _, err := store.Open(ref); err == nil {
				t.Errorf("reference %q should be rejected", ref)
			}
		}
	})

	t.Run("Remove Is Idempotent", func(t *testing.T) {
		store := newTestStore(t)

		ref, err := store.Save("x.png", bytes.NewReader(pngHeader))
		if err != nil {
			t.Fatal(err)
		}
		if err := store.Remove(ref); err != nil {
			t.Fatal(err)
		}
		if err := store.Remove(ref); err != nil {
			t.Errorf("removing a missing file should not error: %v", err)
		}
		if _, err := store.Open(ref); err == nil {
			t.Error("removed file should not open")
		}
	})
}
