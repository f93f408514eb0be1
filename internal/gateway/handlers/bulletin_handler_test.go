package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"collegemgmt/internal/shared"
)

// mediaStore is an in-memory files.Store for handler tests.
type mediaStore struct {
	blobs map[string][]byte
}

func (m *mediaStore) Save(originalName string, r io.Reader) (string, error) {
	return "", nil
}

func (m *mediaStore) Open(ref string) (io.ReadCloser, error) {
	data, ok := m.blobs[ref]
	if !ok {
		return nil, shared.NewNotFoundError("file", ref)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mediaStore) Remove(ref string) error {
	delete(m.blobs, ref)
	return nil
}

func mediaRequest(ref string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/media/"+ref, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("ref", ref)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestServeMedia(t *testing.T) {
	store := &mediaStore{blobs: map[string][]byte{
		"a1b2.png":  {0x89, 0x50, 0x4E, 0x47},
		"c3d4.pdf":  []byte("%PDF-1.7"),
		"e5f6.blob": []byte("opaque"),
	}}
	handler := &BulletinHandler{Files: store}

	t.Run("Content Type Follows Stored Extension", func(t *testing.T) {
		cases := map[string]string{
			"a1b2.png": "image/png",
			"c3d4.pdf": "application/pdf",
		}
		for ref, want := range cases {
			rec := httptest.NewRecorder()
			handler.ServeMedia(rec, mediaRequest(ref))

			if rec.Code != http.StatusOK {
				t.Fatalf("%s: status = %d", ref, rec.Code)
			}
			if got := rec.Header().Get("Content-Type"); got != want {
				t.Errorf("%s: Content-Type = %q, want %q", ref, got, want)
			}
			if !bytes.Equal(rec.Body.Bytes(), store.blobs[ref]) {
				t.Errorf("%s: body does not match stored bytes", ref)
			}
		}
	})

	t.Run("Unknown Extension Falls Back To Octet Stream", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeMedia(rec, mediaRequest("e5f6.blob"))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := rec.Header().Get("Content-Type"); got != "application/octet-stream" {
			t.Errorf("Content-Type = %q, want application/octet-stream", got)
		}
	})

	t.Run("Missing File Is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeMedia(rec, mediaRequest("nope.png"))

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}
