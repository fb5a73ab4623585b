package validation

import (
	"errors"
	"net/url"
	"strings"
)

var (
	ErrNameRequired = errors.New("name is required")
	ErrNameTooLong  = errors.New("name must be at most 120 characters")
	ErrURLRequired  = errors.New("url is required")
	ErrURLInvalid   = errors.New("url must be an absolute http(s) URL")
)

const MaxProjectNameLength = 120

// ValidateProject checks a new audit project and returns the trimmed name and
// the normalized site URL.
func ValidateProject(name, rawURL string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", ErrNameRequired
	}
	if len([]rune(name)) > MaxProjectNameLength {
		return "", "", ErrNameTooLong
	}

	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", "", ErrURLRequired
	}
	site, err := url.Parse(rawURL)
	if err != nil || site.Host == "" {
		return "", "", ErrURLInvalid
	}
	site.Scheme = strings.ToLower(site.Scheme)
	if site.Scheme != "http" && site.Scheme != "https" {
		return "", "", ErrURLInvalid
	}
	site.Host = strings.ToLower(site.Host)
	site.Fragment = ""

	return name, site.String(), nil
}
