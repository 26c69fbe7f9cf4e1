package epub

import (
	"net/url"
	"strings"
)

const (
	// PathBytes caps a resolved archive path.
	PathBytes = 192
	// maxPathSegments caps how deep a resolved path may be.
	maxPathSegments = 24
)

// ResolveHref resolves a manifest or TOC href against the archive path of
// the document that contains it. Fragment and query are dropped, "." and
// ".." segments are folded, and non-ASCII bytes become '?'. It reports
// false when nothing is left or the result does not fit PathBytes.
func ResolveHref(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if i := strings.IndexByte(href, '?'); i >= 0 {
		href = href[:i]
	}
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}

	joined := asciiLossy([]byte(href))
	if !strings.HasPrefix(href, "/") {
		if i := strings.LastIndexByte(base, '/'); i > 0 {
			joined = base[:i] + "/" + joined
		}
	}
	if len(joined) > PathBytes {
		return "", false
	}

	segments := make([]string, 0, maxPathSegments)
	for _, seg := range strings.Split(joined, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
			continue
		}
		if len(segments) == maxPathSegments {
			return "", false
		}
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return "", false
	}
	return strings.Join(segments, "/"), true
}

// splitHref separates an href into its path and fragment parts.
func splitHref(href string) (path, fragment string) {
	href = strings.TrimSpace(href)
	path, fragment, _ = strings.Cut(href, "#")
	return path, fragment
}

// normalizeFragment percent-decodes a fragment, turns '+' into a space and
// lowercases it. Non-ASCII bytes become '?'.
func normalizeFragment(fragment string) string {
	fragment = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(fragment), "#"))
	if fragment == "" {
		return ""
	}
	if decoded, err := url.QueryUnescape(fragment); err == nil {
		fragment = decoded
	} else {
		fragment = strings.ReplaceAll(fragment, "+", " ")
	}
	return strings.ToLower(asciiLossy([]byte(fragment)))
}

// IsTextMediaType reports whether a manifest media type names readable
// text.
func IsTextMediaType(media string) bool {
	return containsFoldString(media, "xhtml") ||
		containsFoldString(media, "html") ||
		containsFoldString(media, "text/plain")
}

// IsTextResourceName reports whether an archive member looks like a text
// document by name alone.
func IsTextResourceName(name string) bool {
	if name == "" || strings.HasSuffix(name, "/") {
		return false
	}
	if containsFoldString(name, "META-INF/") {
		return false
	}
	for _, ext := range []string{".xhtml", ".html", ".htm", ".txt"} {
		if hasSuffixFold(name, ext) {
			return true
		}
	}
	return false
}

// frontMatterKeywords mark resources that precede the body of a book, in
// English and Spanish. A match anywhere in an id, href or path counts.
var frontMatterKeywords = []string{
	"cover", "portada", "cubierta", "info", "about", "acerca", "title",
	"frontmatter", "toc", "indice", "index", "nav", "contents", "credit",
	"license", "licencia", "imprint", "preface", "foreword", "prologue",
	"prologo", "dedicat", "introduc", "nota", "note", "warning", "advert",
	"copyright", "colophon", "legal", "acknowledg",
}

// IsFrontMatter reports whether s names a cover, title page, notice or
// similar resource.
func IsFrontMatter(s string) bool {
	for _, kw := range frontMatterKeywords {
		if containsFoldString(s, kw) {
			return true
		}
	}
	return false
}
