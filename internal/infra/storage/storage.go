package storage

import (
	"errors"
	"strings"
)

// ErrNotFound is returned by Open when the object does not exist.
var ErrNotFound = errors.New("audio object not found")

const (
	servedPrefix = "cached_"
	storedPrefix = "audio_"
)

// ObjectName maps a served audio filename to the name it is stored under.
// "cached_<hash>.mp3" is kept as "audio_<hash>.mp3"; other names map to themselves.
func ObjectName(filename string) string {
	if strings.HasPrefix(filename, servedPrefix) {
		return storedPrefix + strings.TrimPrefix(filename, servedPrefix)
	}
	return filename
}

// AudioKey is the stored object name for a text hash.
func AudioKey(hash string) string { return storedPrefix + hash + ".mp3" }

// AudioURL is the public path for a text hash.
func AudioURL(hash string) string { return "/audio/" + servedPrefix + hash + ".mp3" }
