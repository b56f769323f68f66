// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gantry-foundation/gantry/lib/netutil"
)

// HTTPImageFetcher fetches images over plain HTTP(S). Remote networks
// serve profile images from ordinary CDN URLs, so this is the
// production ImageFetcher.
type HTTPImageFetcher struct {
	// Client is used for all requests. If nil, http.DefaultClient is used.
	Client *http.Client
}

var _ ImageFetcher = (*HTTPImageFetcher)(nil)

// ReadImage fetches the image at the given URL. The response body is
// bounded by netutil.MaxResponseSize; the MIME type comes from the
// Content-Type header, falling back to content sniffing when the
// server sent none.
func (f *HTTPImageFetcher) ReadImage(ctx context.Context, imageURL string) (*ImageData, error) {
	httpClient := f.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("remote: failed to create image request: %w", err)
	}

	response, err := httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("remote: image fetch %s failed: %w", imageURL, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote: image fetch %s returned %d: %s",
			imageURL, response.StatusCode, netutil.ErrorBody(response.Body))
	}

	data, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: reading image %s: %w", imageURL, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("remote: image fetch %s returned an empty body", imageURL)
	}

	mime := response.Header.Get("Content-Type")
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return &ImageData{Bytes: data, MIME: mime}, nil
}
