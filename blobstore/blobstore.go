// CLAUDE:SUMMARY Blob store contract for editor uploads: object keys, usage folders, size limit, storage-unavailable error.
// Package blobstore stores uploaded editor assets. Worker talks to the
// Cloudflare worker fronting R2; FS keeps files on local disk for development.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/yeoju/horosafe"
)

// MaxFileBytes is the default per-file upload limit (10 MiB).
const MaxFileBytes int64 = 10 << 20

// Folders partition objects by usage.
const (
	FolderAds           = "ads"
	FolderAdVideos      = "ads-videos"
	FolderNotices       = "notices"
	FolderPosts         = "posts"
	FolderPartnerLogo   = "partners/logo"
	FolderPartnerBanner = "partners/banner"
	FolderMenuIcons     = "menu-icons"
	FolderVideos        = "videos"
	FolderThumbnails    = "thumbnails"
)

var folders = map[string]bool{
	FolderAds: true, FolderAdVideos: true, FolderNotices: true, FolderPosts: true,
	FolderPartnerLogo: true, FolderPartnerBanner: true, FolderMenuIcons: true,
	FolderVideos: true, FolderThumbnails: true,
}

// ErrUnavailable is returned when the backing store rejects a request or
// cannot be reached.
var ErrUnavailable = errors.New("blobstore: storage unavailable")

// ErrInvalidKey is returned for keys that would escape the store.
var ErrInvalidKey = errors.New("blobstore: invalid key")

// Object describes a stored blob.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Store is implemented by every backend.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// ValidFolder reports whether folder is one of the known usage folders.
func ValidFolder(folder string) bool {
	return folders[folder]
}

// Key builds "{folder}/{unixMillis}_{nonce}_{filename}" with filename reduced
// to a safe identifier. The nonce keeps same-named uploads within one
// millisecond apart; an empty nonce is left out.
func Key(folder, filename string, now time.Time, nonce string) string {
	folder = strings.Trim(folder, "/")
	name := horosafe.CleanFilename(filename)
	if nonce == "" {
		return fmt.Sprintf("%s/%d_%s", folder, now.UnixMilli(), name)
	}
	return fmt.Sprintf("%s/%d_%s_%s", folder, now.UnixMilli(), nonce, name)
}

// checkKey rejects keys with traversal segments or absolute paths.
func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
