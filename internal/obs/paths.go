package obs

import "strings"

// CanonicalPath collapses identifier segments so metric labels stay bounded.
// Only the admin user resource embeds an id in its path.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	const usersPrefix = "/api/admin/users/"
	if strings.HasPrefix(path, usersPrefix) {
		rest := strings.TrimPrefix(path, usersPrefix)
		if rest != "" && !strings.Contains(rest, "/") {
			return usersPrefix + ":id"
		}
	}
	return path
}
