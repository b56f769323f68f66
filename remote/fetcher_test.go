// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// pngHeader carries the PNG magic bytes so content sniffing has
// something to recognize.
var pngHeader = []byte("\x89PNG\r\n\x1a\nrest of image")

func TestHTTPImageFetcher(t *testing.T) {
	t.Run("fetches bytes and MIME type", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path != "/profile/u123/avatar.png" {
				t.Errorf("unexpected path: %s", request.URL.Path)
				writer.WriteHeader(http.StatusNotFound)
				return
			}
			writer.Header().Set("Content-Type", "image/png")
			writer.Write(pngHeader)
		}))
		defer server.Close()

		fetcher := &HTTPImageFetcher{Client: server.Client()}
		image, err := fetcher.ReadImage(context.Background(), server.URL+"/profile/u123/avatar.png")
		if err != nil {
			t.Fatalf("ReadImage failed: %v", err)
		}
		if string(image.Bytes) != string(pngHeader) {
			t.Errorf("unexpected bytes: got %d bytes", len(image.Bytes))
		}
		if image.MIME != "image/png" {
			t.Errorf("unexpected MIME type: %q", image.MIME)
		}
	})

	t.Run("sniffs the MIME type when the header is missing", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			// Suppress the automatic Content-Type header so the
			// fetcher has to sniff.
			writer.Header()["Content-Type"] = nil
			writer.Write(pngHeader)
		}))
		defer server.Close()

		fetcher := &HTTPImageFetcher{}
		image, err := fetcher.ReadImage(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("ReadImage failed: %v", err)
		}
		if image.MIME != "image/png" {
			t.Errorf("sniffing: got %q, want %q", image.MIME, "image/png")
		}
	})

	t.Run("non-200 responses are errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			http.Error(writer, "gone", http.StatusGone)
		}))
		defer server.Close()

		fetcher := &HTTPImageFetcher{}
		_, err := fetcher.ReadImage(context.Background(), server.URL)
		if err == nil {
			t.Fatal("expected error for 410 response")
		}
		if !strings.Contains(err.Error(), "410") {
			t.Errorf("error should carry the status code: %v", err)
		}
	})

	t.Run("empty body is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		fetcher := &HTTPImageFetcher{}
		_, err := fetcher.ReadImage(context.Background(), server.URL)
		if err == nil {
			t.Fatal("expected error for empty body")
		}
	})

	t.Run("invalid URL is an error", func(t *testing.T) {
		fetcher := &HTTPImageFetcher{}
		_, err := fetcher.ReadImage(context.Background(), "://not-a-url")
		if err == nil {
			t.Fatal("expected error for invalid URL")
		}
	})
}
