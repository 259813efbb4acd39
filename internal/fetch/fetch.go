// Package fetch resolves a document reference to a local file path. Plain
// paths and file:// URLs are used in place; http(s):// and s3:// references
// are downloaded to a temp file.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/docextract/internal/storage"
)

// Resolver turns document references into local paths.
type Resolver struct {
	http *http.Client
	s3   *storage.S3Client // nil when no bucket is configured
}

func NewResolver(s3 *storage.S3Client) *Resolver {
	return &Resolver{http: &http.Client{}, s3: s3}
}

// Resolve returns a local path for ref plus a cleanup func that removes any
// temp file it created. password is used for encrypted S3 objects.
func (r *Resolver) Resolve(ctx context.Context, ref, password string) (string, func(), error) {
	noop := func() {}

	switch {
	case strings.HasPrefix(ref, "s3://"):
		if r.s3 == nil {
			return "", noop, fmt.Errorf("s3 reference %q but no bucket configured", ref)
		}
		key := strings.TrimPrefix(ref, "s3://")
		if i := strings.Index(key, "/"); i >= 0 {
			// bucket name in the ref is ignored, the client is bound to one
			key = key[i+1:]
		}
		path, _, err := r.s3.DownloadToFile(ctx, key, password)
		if err != nil {
			return "", noop, err
		}
		return path, func() { os.Remove(path) }, nil

	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return r.fetchHTTP(ctx, ref)

	case strings.HasPrefix(ref, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return "", noop, fmt.Errorf("invalid file URL %q: %w", ref, err)
		}
		return u.Path, noop, nil

	default:
		if _, err := os.Stat(ref); err != nil {
			return "", noop, fmt.Errorf("cannot read %q: %w", ref, err)
		}
		return ref, noop, nil
	}
}

func (r *Resolver) fetchHTTP(ctx context.Context, ref string) (string, func(), error) {
	noop := func() {}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", noop, err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return "", noop, fmt.Errorf("fetch %q: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", noop, fmt.Errorf("fetch %q: status %d", ref, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "docextract-fetch-*")
	if err != nil {
		return "", noop, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", noop, fmt.Errorf("save %q: %w", ref, err)
	}

	log.Debug().Str("ref", ref).Int64("bytes", n).Str("path", tmp.Name()).Msg("fetched document")
	name := tmp.Name()
	return name, func() { os.Remove(name) }, nil
}
