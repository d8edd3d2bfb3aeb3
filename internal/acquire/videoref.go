package acquire

import (
	"net/url"
	"strings"
)

// VideoID normalizes an opaque video reference (bare ID, watch URL,
// youtu.be short link, shorts or embed URL) to the 11-character video
// ID. Unrecognized references are returned as-is: the sources will fail
// them with their own diagnostics.
func VideoID(ref string) string {
	ref = strings.TrimSpace(ref)
	if !strings.Contains(ref, "/") {
		return ref
	}

	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}

	if v := u.Query().Get("v"); v != "" {
		return v
	}

	path := strings.Trim(u.Path, "/")
	switch {
	case strings.HasSuffix(u.Host, "youtu.be"):
		return firstPathSegment(path)
	case strings.HasPrefix(path, "shorts/"):
		return strings.TrimPrefix(path, "shorts/")
	case strings.HasPrefix(path, "embed/"):
		return strings.TrimPrefix(path, "embed/")
	case strings.HasPrefix(path, "live/"):
		return strings.TrimPrefix(path, "live/")
	}
	return ref
}

func firstPathSegment(path string) string {
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}
