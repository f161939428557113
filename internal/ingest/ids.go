package ingest

import (
	"crypto/md5"
	"encoding/hex"
)

// ArticleID derives a stable article identifier from its URL, so the same
// story fetched twice maps to the same article.
func ArticleID(url string) string {
	sum := md5.Sum([]byte(url))
	return "art-" + hex.EncodeToString(sum[:])[:12]
}
