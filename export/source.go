package export

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// A source wraps a streamable local file or remote http(s) resource.
type source struct {
	io.ReadCloser
	url *url.URL
}

// Returns the location of this source.
func (s *source) Path() string {
	return s.url.String()
}

// Open a source. Windows style separators are normalized before the location
// is parsed as a URL; a location without a scheme is a local file.
//
// The caller must close the returned source.
func openSource(ctx context.Context, client *http.Client, location string) (*source, error) {
	u, err := url.Parse(strings.Replace(location, `\`, `/`, -1))
	if err != nil {
		return nil, err
	}

	// Single letter schemes are windows drive letters.
	if len(u.Scheme) == 1 {
		u = &url.URL{Path: location}
	}

	var reader io.ReadCloser
	switch u.Scheme {
	case "":
		reader, err = os.Open(filepath.Clean(u.Path))
		if err != nil {
			return nil, err
		}
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("export: could not fetch '%s': %s", u.String(), err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("export: could not fetch '%s': status %d", u.String(), resp.StatusCode)
		}
		reader = resp.Body
	default:
		return nil, fmt.Errorf("export: unsupported scheme '%s'", u.Scheme)
	}

	return &source{
		ReadCloser: reader,
		url:        u,
	}, nil
}
