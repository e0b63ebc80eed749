package net

import (
	"net/url"
	"strings"
)

// FallbackRoom is used by documents whose URL has no path. Every such document
// shares it.
const FallbackRoom = "lobby"

// RoomFromURL derives a room id from the last non-empty path segment of a
// document URL, e.g. "http://host/board/abc123" -> "abc123".
func RoomFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return FallbackRoom
	}
	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(segments[i]); s != "" {
			if unescaped, err := url.PathUnescape(s); err == nil {
				return unescaped
			}
			return s
		}
	}
	return FallbackRoom
}
