package browser

import (
	"bufio"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Cookie is one entry from a Netscape cookies.txt file.
type Cookie struct {
	Domain            string
	IncludeSubdomains bool
	Path              string
	Secure            bool
	Expiration        int64
	Name              string
	Value             string
}

// CookieStore caches parsed cookies and reloads them only when the
// backing file's modification time changes, since cookies.txt is
// read-mostly and reparsing on every capture would be wasted work.
type CookieStore struct {
	mu      sync.RWMutex
	path    string
	modTime time.Time
	cookies []Cookie
}

func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path}
}

// Load returns the current cookie set, reparsing the file if its mtime
// has advanced since the last load. A missing or unreadable file yields
// an empty cookie set, not an error — cookies are an optional input.
func (s *CookieStore) Load() []Cookie {
	if s.path == "" {
		return nil
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return nil
	}

	s.mu.RLock()
	fresh := s.modTime.Equal(info.ModTime())
	cached := s.cookies
	s.mu.RUnlock()
	if fresh {
		return cached
	}

	cookies, err := parseNetscapeCookies(s.path)
	if err != nil {
		slog.Warn("failed to parse cookies file, using empty cookie set", "path", s.path, "error", err)
		return nil
	}

	s.mu.Lock()
	s.modTime = info.ModTime()
	s.cookies = cookies
	s.mu.Unlock()
	return cookies
}

// parseNetscapeCookies parses the tab-separated Netscape cookies.txt
// format: domain, include_subdomains, path, secure, expiration, name,
// value. Lines starting with '#' are comments; lines with fewer than 7
// fields are skipped. A leading dot on the domain is preserved verbatim.
func parseNetscapeCookies(path string) ([]Cookie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cookies []Cookie
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		exp, _ := strconv.ParseInt(fields[4], 10, 64)
		cookies = append(cookies, Cookie{
			Domain:            fields[0],
			IncludeSubdomains: strings.EqualFold(fields[1], "TRUE"),
			Path:              fields[2],
			Secure:            strings.EqualFold(fields[3], "TRUE"),
			Expiration:        exp,
			Name:              fields[5],
			Value:             fields[6],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cookies, nil
}

// ValidateUpload checks the invariant uploadCookies enforces: at least
// one non-comment line with at least 7 tab-separated fields.
func ValidateUpload(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if len(strings.Split(line, "\t")) >= 7 {
			return true
		}
	}
	return false
}
