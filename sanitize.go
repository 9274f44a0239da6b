package usage

import (
	"fmt"
	"regexp"
	"strings"
)

// Sanitizer scrubs local filesystem paths out of stacktrace text before it
// is attached to an exception hit. Absolute file:// URIs leak usernames and
// directory layouts; the bare source filename is kept because it is still
// useful for debugging.
//
// The zero value is not usable; call NewSanitizer.
type Sanitizer struct {
	// SourceExtensions are the file extensions (without dot) recognized as
	// source files at the end of a file:// URI.
	SourceExtensions []string

	// PrefixTokens are URI-scheme prefixes stripped when they follow an
	// opening parenthesis during shortening, e.g. "package:" and "dart:".
	// The collection endpoint truncates exception payloads at 100
	// characters, so density in the first 100 characters matters.
	PrefixTokens []string

	pathRe *regexp.Regexp
	wsRe   *regexp.Regexp
}

// defaultSourceExtensions covers the runtimes whose stacktraces this client
// is asked to scrub in practice.
var defaultSourceExtensions = []string{"dart", "js", "go"}

var defaultPrefixTokens = []string{"package:", "dart:"}

// NewSanitizer returns a Sanitizer with the default source extensions and
// prefix tokens.
func NewSanitizer() *Sanitizer {
	z, err := NewSanitizerFor(defaultSourceExtensions, defaultPrefixTokens)
	if err != nil {
		// Defaults are static and known-good.
		panic(err)
	}
	return z
}

// NewSanitizerFor returns a Sanitizer recognizing the given source file
// extensions and stripping the given prefix tokens when shortening.
func NewSanitizerFor(sourceExtensions, prefixTokens []string) (*Sanitizer, error) {
	if len(sourceExtensions) == 0 {
		return nil, missingField("sourceExtensions")
	}
	quoted := make([]string, len(sourceExtensions))
	for i, ext := range sourceExtensions {
		quoted[i] = regexp.QuoteMeta(ext)
	}
	pathRe, err := regexp.Compile(`file://\S+/([^\s/]+\.(?:` + strings.Join(quoted, "|") + `))`)
	if err != nil {
		return nil, fmt.Errorf("usage: bad sanitizer pattern: %w", err)
	}
	return &Sanitizer{
		SourceExtensions: sourceExtensions,
		PrefixTokens:     prefixTokens,
		pathRe:           pathRe,
		wsRe:             regexp.MustCompile(`\s+`),
	}, nil
}

// Sanitize replaces every absolute file:// URI ending in a recognized
// source file with the bare filename. When shorten is true it additionally
// strips the configured prefix tokens after an opening parenthesis and
// collapses every whitespace run into a single space.
//
// The transform is deterministic and side-effect-free. Input without any
// file URIs is returned unchanged, modulo whitespace collapsing.
func (z *Sanitizer) Sanitize(stacktrace string, shorten bool) string {
	out := stacktrace

	// Replace matches in reverse order of appearance so earlier
	// replacements cannot invalidate the offsets of later matches.
	matches := z.pathRe.FindAllStringSubmatchIndex(out, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		filename := out[m[2]:m[3]]
		out = out[:m[0]] + filename + out[m[1]:]
	}

	if shorten {
		for _, token := range z.PrefixTokens {
			out = strings.ReplaceAll(out, "("+token, "(")
		}
		out = z.wsRe.ReplaceAllString(out, " ")
	}

	return out
}

var defaultSanitizer = NewSanitizer()

// SanitizeStacktrace applies the default Sanitizer. Use it on exception
// text before passing it to Session.SendException.
func SanitizeStacktrace(stacktrace string, shorten bool) string {
	return defaultSanitizer.Sanitize(stacktrace, shorten)
}
