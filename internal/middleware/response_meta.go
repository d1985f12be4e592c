package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Keys written into the envelope meta of board responses.
const (
	MetaCacheHit       = "cache_hit"
	MetaSnapshotAge    = "snapshot_age_seconds"
	MetaCatalogVersion = "catalog_version"
	MetaProcessingTime = "processing_time_ms"
)

const (
	responseMetaKey = "response_meta"
	requestStartKey = "request_started_at"
)

// ResponseMeta is the free-form meta block of a response envelope.
type ResponseMeta map[string]interface{}

// WithResponseMeta stamps the request start so Meta can report processing time.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, ResponseMeta{})
		c.Next()
	}
}

// RecordSnapshot describes the board snapshot behind the response. A cached snapshot can be
// up to the cache TTL old, so its age is reported alongside the catalog version it was built from.
func RecordSnapshot(c *gin.Context, hit bool, generatedAt time.Time, catalogVersion string) {
	meta := metaFor(c)
	meta[MetaCacheHit] = hit
	if !generatedAt.IsZero() {
		age := time.Since(generatedAt)
		if age < 0 {
			age = 0
		}
		meta[MetaSnapshotAge] = int64(age / time.Second)
	}
	if catalogVersion != "" {
		meta[MetaCatalogVersion] = catalogVersion
	}
}

// Meta returns the meta block for the current response, or nil when nothing was recorded.
func Meta(c *gin.Context) ResponseMeta {
	if c == nil {
		return nil
	}
	raw, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, ok := raw.(ResponseMeta)
	if !ok || len(meta) == 0 {
		return nil
	}
	if started, ok := c.Get(requestStartKey); ok {
		if ts, ok := started.(time.Time); ok {
			meta[MetaProcessingTime] = time.Since(ts).Milliseconds()
		}
	}
	return meta
}

func metaFor(c *gin.Context) ResponseMeta {
	if raw, ok := c.Get(responseMetaKey); ok {
		if meta, ok := raw.(ResponseMeta); ok {
			return meta
		}
	}
	meta := ResponseMeta{}
	c.Set(responseMetaKey, meta)
	return meta
}
