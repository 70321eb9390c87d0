package mesh

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"conceptforge/internal/domain"
)

func TestGeneratePrototype(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prototype" {
			t.Errorf("path = %q, want /prototype", r.URL.Path)
		}
		var req prototypeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if req.ImageURL != "http://cdn/concept.png" {
			t.Errorf("image_url = %q", req.ImageURL)
		}
		_, _ = w.Write([]byte(`{"obj_url":"http://cdn/proto.obj","gif_url":"http://cdn/proto.gif"}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	result, err := c.GeneratePrototype(context.Background(), "http://cdn/concept.png")
	if err != nil {
		t.Fatalf("GeneratePrototype: %v", err)
	}
	if result.ObjURL != "http://cdn/proto.obj" || result.GifURL != "http://cdn/proto.gif" {
		t.Fatalf("result = %+v", result)
	}
}

func TestGeneratePrototypePartialGeometry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"gif_url":"http://cdn/proto.gif"}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	result, err := c.GeneratePrototype(context.Background(), "http://cdn/concept.png")
	if err != nil {
		t.Fatalf("GeneratePrototype: %v", err)
	}
	if result.ObjURL != "" {
		t.Fatalf("obj_url = %q, want empty while geometry is pending", result.ObjURL)
	}
}

func TestGeneratePrototypeEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	if _, err := c.GeneratePrototype(context.Background(), "http://cdn/concept.png"); !errors.Is(err, domain.ErrExternalService) {
		t.Fatalf("err = %v, want ErrExternalService", err)
	}
}

func TestGeneratePrototypeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	if _, err := c.GeneratePrototype(context.Background(), "http://cdn/concept.png"); !errors.Is(err, domain.ErrExternalService) {
		t.Fatalf("err = %v, want ErrExternalService", err)
	}
}
