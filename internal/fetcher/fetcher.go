// Package fetcher downloads remote files (HTTP, FTP, local paths) and reads
// tabular data (CSV, XLSX, Census-style JSON arrays) into Tables.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Router dispatches to the HTTP or FTP fetcher by URL scheme. Plain paths
// and file:// URLs are opened from disk.
type Router struct {
	HTTP Fetcher
	FTP  Fetcher
}

// NewRouter builds a Router with default HTTP and FTP fetchers.
func NewRouter(httpOpts HTTPOptions, ftpOpts FTPOptions) *Router {
	return &Router{
		HTTP: NewHTTPFetcher(httpOpts),
		FTP:  NewFTPFetcher(ftpOpts),
	}
}

func (r *Router) pick(rawURL string) (Fetcher, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 { // "C:\..." parses as scheme "c"
		return nil, rawURL, nil
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if r.HTTP == nil {
			return nil, "", eris.New("fetcher: no http fetcher configured")
		}
		return r.HTTP, rawURL, nil
	case "ftp":
		if r.FTP == nil {
			return nil, "", eris.New("fetcher: no ftp fetcher configured")
		}
		return r.FTP, rawURL, nil
	case "file":
		return nil, u.Path, nil
	default:
		return nil, "", eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}

// Download implements Fetcher.
func (r *Router) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f, path, err := r.pick(rawURL)
	if err != nil {
		return nil, err
	}
	if f == nil {
		file, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", path)
		}
		return file, nil
	}
	return f.Download(ctx, path)
}

// DownloadToFile implements Fetcher.
func (r *Router) DownloadToFile(ctx context.Context, rawURL string, dest string) (int64, error) {
	f, path, err := r.pick(rawURL)
	if err != nil {
		return 0, err
	}
	if f != nil {
		return f.DownloadToFile(ctx, path, dest)
	}
	body, err := r.Download(ctx, path)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck
	return writeFile(dest, body)
}

// IsRemote reports whether the location needs a network fetch.
func IsRemote(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
		return true
	}
	return false
}

func writeFile(path string, r io.Reader) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, r)
	if err != nil {
		return n, eris.Wrap(err, "write file")
	}
	return n, nil
}
