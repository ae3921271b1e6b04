package router

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
)

// tokenPattern splits a route pattern into parameters, splats, optional
// group delimiters and escaped parentheses.
var tokenPattern = regexp.MustCompile(`:([a-zA-Z_$][a-zA-Z0-9_$]*)|\*\*|\*|\(|\)|\\\(|\\\)`)

// splatParam is the parameter name under which splats are captured.
const splatParam = "splat"

// patternCacheMaxSize bounds the compiled pattern cache.
const patternCacheMaxSize = 1000

// compiledPattern is a route pattern turned into a regular expression.
type compiledPattern struct {
	pattern string
	tokens  []string
	names   []string
	regex   *regexp.Regexp
}

// capture is one parameter capture. Optional groups that did not take
// part in the match leave matched false.
type capture struct {
	name    string
	value   string
	matched bool
}

var (
	patternCache   = make(map[string]*compiledPattern)
	patternCacheMu sync.RWMutex
)

// compilePattern compiles pattern, normalized to start with "/".
func compilePattern(pattern string) (*compiledPattern, error) {
	if !strings.HasPrefix(pattern, "/") {
		pattern = "/" + pattern
	}

	patternCacheMu.RLock()
	cp, ok := patternCache[pattern]
	patternCacheMu.RUnlock()
	if ok {
		return cp, nil
	}

	cp, err := buildPattern(pattern)
	if err != nil {
		return nil, err
	}

	patternCacheMu.Lock()
	if len(patternCache) >= patternCacheMaxSize {
		patternCache = make(map[string]*compiledPattern)
	}
	patternCache[pattern] = cp
	patternCacheMu.Unlock()

	return cp, nil
}

func tokenize(pattern string) []string {
	var tokens []string
	last := 0
	for _, loc := range tokenPattern.FindAllStringIndex(pattern, -1) {
		if loc[0] != last {
			tokens = append(tokens, pattern[last:loc[0]])
		}
		tokens = append(tokens, pattern[loc[0]:loc[1]])
		last = loc[1]
	}
	if last != len(pattern) {
		tokens = append(tokens, pattern[last:])
	}
	return tokens
}

func buildPattern(pattern string) (*compiledPattern, error) {
	tokens := tokenize(pattern)

	var src strings.Builder
	src.WriteString("(?i)^")
	names := make([]string, 0, 4)
	depth := 0

	for _, tok := range tokens {
		switch {
		case isParamToken(tok):
			src.WriteString("([^/]+)")
			names = append(names, tok[1:])
		case tok == "**":
			src.WriteString("(.*)")
			names = append(names, splatParam)
		case tok == "*":
			src.WriteString("(.*?)")
			names = append(names, splatParam)
		case tok == "(":
			src.WriteString("(?:")
			depth++
		case tok == ")":
			src.WriteString(")?")
			depth--
		case tok == `\(` || tok == `\)`:
			src.WriteString(tok)
		default:
			src.WriteString(regexp.QuoteMeta(tok))
		}
		if depth < 0 {
			return nil, fmt.Errorf("pattern %q has an unmatched ')'", pattern)
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("pattern %q is missing end paren", pattern)
	}

	if !strings.HasSuffix(pattern, "/") {
		src.WriteString("/?")
	}
	if len(tokens) > 0 && tokens[len(tokens)-1] == "*" {
		src.WriteString("$")
	}

	regex, err := regexp.Compile(src.String())
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}

	return &compiledPattern{
		pattern: pattern,
		tokens:  tokens,
		names:   names,
		regex:   regex,
	}, nil
}

func isParamToken(tok string) bool {
	return len(tok) > 1 && tok[0] == ':'
}

// match matches the pattern against the start of pathname. The match must
// end at a path separator unless it consumed the whole pathname; the
// unconsumed part is returned with a leading "/".
func (p *compiledPattern) match(pathname string) (remaining string, captures []capture, ok bool) {
	m := p.regex.FindStringSubmatchIndex(pathname)
	if m == nil {
		return "", nil, false
	}

	matched := pathname[:m[1]]
	remaining = pathname[m[1]:]
	if remaining != "" {
		if !strings.HasSuffix(matched, "/") {
			return "", nil, false
		}
		remaining = "/" + remaining
	}

	captures = make([]capture, len(p.names))
	for i, name := range p.names {
		start, end := m[2+2*i], m[3+2*i]
		captures[i].name = name
		if start < 0 {
			continue
		}
		value := pathname[start:end]
		if decoded, err := url.PathUnescape(value); err == nil {
			value = decoded
		}
		captures[i].value = value
		captures[i].matched = true
	}

	return remaining, captures, true
}

// createParams folds captures into ordered params. Captures from optional
// groups that did not match are skipped.
func createParams(captures []capture) Params {
	params := make(Params, 0, len(captures))
	for _, c := range captures {
		if !c.matched {
			continue
		}
		params = params.add(c.name, c.value)
	}
	return params
}

// formatPattern fills pattern with params. Optional groups whose
// parameters are missing are dropped; a missing required parameter is an
// error. Repeated slashes are collapsed.
func formatPattern(pattern string, params Params) (string, error) {
	cp, err := compilePattern(pattern)
	if err != nil {
		return "", err
	}

	// buffers[0] is the output; each open group pushes a buffer.
	buffers := []string{""}
	dropped := []bool{false}
	splats := params.Values(splatParam)
	splatIndex := 0

	write := func(s string) {
		buffers[len(buffers)-1] += s
	}

	for _, tok := range cp.tokens {
		inGroup := len(buffers) > 1
		switch {
		case tok == "*" || tok == "**":
			if splatIndex >= len(splats) {
				if !inGroup {
					return "", fmt.Errorf("missing splat #%d for path %q", splatIndex+1, pattern)
				}
				dropped[len(dropped)-1] = true
				continue
			}
			write(escapeSplat(splats[splatIndex]))
			splatIndex++
		case tok == "(":
			buffers = append(buffers, "")
			dropped = append(dropped, false)
		case tok == ")":
			top := len(buffers) - 1
			text, skip := buffers[top], dropped[top]
			buffers, dropped = buffers[:top], dropped[:top]
			if !skip {
				write(text)
			}
		case tok == `\(`:
			write("(")
		case tok == `\)`:
			write(")")
		case isParamToken(tok):
			name := tok[1:]
			if !params.Has(name) {
				if !inGroup {
					return "", fmt.Errorf("missing %q parameter for path %q", name, pattern)
				}
				dropped[len(dropped)-1] = true
				continue
			}
			write(url.PathEscape(params.Get(name)))
		default:
			write(tok)
		}
	}

	return collapseSlashes(buffers[0]), nil
}

func escapeSplat(value string) string {
	segments := strings.Split(value, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func collapseSlashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '/' && i > 0 && s[i-1] == '/' {
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
