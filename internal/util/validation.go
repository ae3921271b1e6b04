package util

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// ValidateURL validates a URL string.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme == "" {
		return fmt.Errorf("URL must have a scheme (http or https)")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}

// ValidateListenAddress validates a host:port listen address. The host may
// be empty; port 0 is allowed for auto-assign.
func ValidateListenAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if port == "" {
		return fmt.Errorf("address %q has no port", addr)
	}
	return nil
}

// ValidateDuration validates a duration is not negative.
func ValidateDuration(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("duration cannot be negative: %v", d)
	}
	return nil
}

// ValidateRedirectStatus validates a redirect status code. Zero means the
// default and is accepted.
func ValidateRedirectStatus(code int) error {
	if code == 0 {
		return nil
	}
	if code < 300 || code > 399 {
		return fmt.Errorf("redirect status must be between 300 and 399, got: %d", code)
	}
	return nil
}

// ValidateRoutePattern validates the syntax of a route path pattern:
// optional groups must be balanced and every ":" must name a parameter.
func ValidateRoutePattern(pattern string) error {
	depth := 0
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("unbalanced ')' at offset %d in %q", i, pattern)
			}
		case ':':
			if i+1 >= len(pattern) || !isParamNameChar(pattern[i+1]) {
				return fmt.Errorf("empty parameter name at offset %d in %q", i, pattern)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced '(' in %q", pattern)
	}
	if strings.Contains(pattern, "***") {
		return fmt.Errorf("invalid splat in %q", pattern)
	}
	return nil
}

func isParamNameChar(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// ValidateNonEmpty validates that a string is not empty.
func ValidateNonEmpty(value, name string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	return nil
}
