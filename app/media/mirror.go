package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultURLPrefix   = "/media"
	DefaultConcurrency = 4
	DefaultMaxSize     = 50 << 20

	downloadTimeout = 2 * time.Minute

	defaultExt    = ".jpg"
	partialSuffix = ".part"
)

var extPattern = regexp.MustCompile(`^\.[A-Za-z0-9]{1,5}$`)

// Entry describes one file in the media directory.
type Entry struct {
	Name    string
	Ref     string
	ModTime time.Time
	Partial bool
}

// Mirror stores remote images under content-addressed names and hands back
// local references. Failures are never fatal: the remote URL is returned.
type Mirror struct {
	dir         string
	urlPrefix   string
	httpClient  *http.Client
	userAgent   string
	concurrency int
	maxSize     int64
	group       singleflight.Group
}

func NewMirror(dir, urlPrefix string, httpClient *http.Client, userAgent string, concurrency int) (*Mirror, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	if urlPrefix == "" {
		urlPrefix = DefaultURLPrefix
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Mirror{
		dir:         dir,
		urlPrefix:   strings.TrimSuffix(urlPrefix, "/"),
		httpClient:  httpClient,
		userAgent:   userAgent,
		concurrency: concurrency,
		maxSize:     DefaultMaxSize,
	}, nil
}

func (m *Mirror) Dir() string {
	return m.dir
}

func (m *Mirror) URLPrefix() string {
	return m.urlPrefix
}

// Name returns the deterministic file name for a remote URL.
func Name(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:]) + extension(rawURL)
}

func extension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return defaultExt
	}

	ext := path.Ext(u.Path)
	if !extPattern.MatchString(ext) {
		return defaultExt
	}
	return strings.ToLower(ext)
}

func (m *Mirror) ref(name string) string {
	return m.urlPrefix + "/" + name
}

func (m *Mirror) IsLocal(ref string) bool {
	return strings.HasPrefix(ref, m.urlPrefix+"/")
}

// Path maps a local reference to its file on disk. Directory components in
// the reference are ignored.
func (m *Mirror) Path(ref string) (string, bool) {
	if !m.IsLocal(ref) {
		return "", false
	}

	name := filepath.Base(strings.TrimPrefix(ref, m.urlPrefix+"/"))
	if name == "." || name == ".." || name == string(filepath.Separator) || name == "" {
		return "", false
	}

	return filepath.Join(m.dir, name), true
}

// Run mirrors one URL and returns its local reference, or the URL itself
// when the download fails.
func (m *Mirror) Run(ctx context.Context, rawURL string) string {
	if rawURL == "" || m.IsLocal(rawURL) {
		return rawURL
	}

	name := Name(rawURL)
	target := filepath.Join(m.dir, name)

	if fileExists(target) {
		return m.ref(name)
	}

	// Shared by every waiting caller, detached from the one that started it.
	_, err, shared := m.group.Do(name, func() (interface{}, error) {
		if fileExists(target) {
			return nil, nil
		}

		downloadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), downloadTimeout)
		defer cancel()

		return nil, m.download(downloadCtx, rawURL, name, target)
	})
	if err != nil {
		slog.Warn("Failed to mirror media, keeping remote URL", "url", rawURL, "error", err)
		return rawURL
	}

	slog.Debug("Media mirrored", "url", rawURL, "name", name, "shared", shared)
	return m.ref(name)
}

// RunAll mirrors urls with bounded parallelism. The result has the same
// length and order as the input.
func (m *Mirror) RunAll(ctx context.Context, urls []string) []string {
	refs := make([]string, len(urls))

	var g errgroup.Group
	g.SetLimit(m.concurrency)

	for i, u := range urls {
		g.Go(func() error {
			refs[i] = m.Run(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	return refs
}

func (m *Mirror) download(ctx context.Context, rawURL, name, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if m.userAgent != "" {
		req.Header.Set("User-Agent", m.userAgent)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	tmp, err := os.CreateTemp(m.dir, name+".*"+partialSuffix)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, io.LimitReader(resp.Body, m.maxSize+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write media: %w", err)
	}
	if written > m.maxSize {
		os.Remove(tmpName)
		return fmt.Errorf("media exceeds %d bytes", m.maxSize)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to store media: %w", err)
	}

	slog.Debug("Media downloaded", "url", rawURL, "name", name, "bytes", written)
	return nil
}

// Remove deletes the file behind a local reference. Remote references and
// files that are already gone are not errors.
func (m *Mirror) Remove(ref string) error {
	target, ok := m.Path(ref)
	if !ok {
		return nil
	}

	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove media %s: %w", filepath.Base(target), err)
	}

	return nil
}

// List returns the files currently in the media directory, sorted by name.
func (m *Mirror) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read media directory: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}

		info, err := de.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to stat media file: %w", err)
		}

		entries = append(entries, Entry{
			Name:    de.Name(),
			Ref:     m.ref(de.Name()),
			ModTime: info.ModTime(),
			Partial: strings.HasSuffix(de.Name(), partialSuffix),
		})
	}

	return entries, nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
