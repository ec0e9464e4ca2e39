// Package dirlisting renders the directory-listing HTML page the file
// responder falls back to when a directory has no default file.
package dirlisting

import (
	"fmt"
	"html"
	"os"
	"sort"
	"strings"
)

// Render builds a minimal directory listing page for requestPath (the
// URL path the client requested) given its directory entries.
func Render(requestPath string, entries []os.DirEntry) []byte {
	sorted := make([]os.DirEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><title>Index of ")
	b.WriteString(html.EscapeString(requestPath))
	b.WriteString("</title></head><body>\n<h1>Index of ")
	b.WriteString(html.EscapeString(requestPath))
	b.WriteString("</h1>\n<ul>\n")

	if requestPath != "/" {
		b.WriteString(`<li><a href="../">../</a></li>` + "\n")
	}

	for _, entry := range sorted {
		name := entry.Name()
		href := html.EscapeString(name)
		label := html.EscapeString(name)
		if entry.IsDir() {
			href += "/"
			label += "/"
		}

		size := ""
		if info, err := entry.Info(); err == nil && !entry.IsDir() {
			size = fmt.Sprintf(" (%d bytes)", info.Size())
		}

		fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a>%s</li>\n", href, label, size)
	}

	b.WriteString("</ul>\n</body></html>\n")
	return []byte(b.String())
}
