// Package apistatus implements the in-process observability dispatcher:
// GET /api/status and GET /api/info report worker-pool, connection, and
// cache counters as JSON.
package apistatus

import (
	"encoding/json"
	"runtime"
	"time"

	"github.com/hyperreactor/reactord/internal/cache"
	"github.com/hyperreactor/reactord/internal/conntable"
	"github.com/hyperreactor/reactord/internal/httpmsg"
	"github.com/hyperreactor/reactord/internal/workerpool"
)

// Dependencies are the live counters the dispatcher reads on every call.
// It never owns or mutates any of them.
type Dependencies struct {
	Pool         *workerpool.Pool
	Table        *conntable.Table
	Cache        *cache.Cache
	DocumentRoot string
}

// Dispatcher answers the fixed /api/status and /api/info routes.
type Dispatcher struct {
	deps Dependencies
}

// New returns a Dispatcher reading from deps.
func New(deps Dependencies) *Dispatcher {
	return &Dispatcher{deps: deps}
}

type cacheJSON struct {
	Hits             uint64  `json:"hits"`
	Misses           uint64  `json:"misses"`
	Entries          int     `json:"entries"`
	MemoryUsageBytes int64   `json:"memory_usage_bytes"`
	HitRatioPercent  float64 `json:"hit_ratio_percent"`
}

type statusJSON struct {
	Server            string    `json:"server"`
	Timestamp         string    `json:"timestamp"`
	ThreadPoolSize    int       `json:"thread_pool_size"`
	QueueSize         int       `json:"queue_size"`
	ActiveConnections int       `json:"active_connections"`
	DocumentRoot      string    `json:"document_root"`
	Architecture      string    `json:"architecture"`
	HTTPVersion       string    `json:"http_version"`
	Cache             cacheJSON `json:"cache"`
}

// Handle serves requestPath, which must begin with "/api/". Any path
// other than the two recognized routes returns 404.
func (d *Dispatcher) Handle(requestPath string) (status int, contentType string, body []byte) {
	switch requestPath {
	case "/api/status", "/api/info":
		return 200, "application/json; charset=utf-8", d.buildStatus()
	default:
		return 404, "application/json; charset=utf-8", []byte(`{"error":"not found"}`)
	}
}

func (d *Dispatcher) buildStatus() []byte {
	poolStats := d.deps.Pool.Stats()
	cacheStats := d.deps.Cache.Stats()

	doc := statusJSON{
		Server:            httpmsg.ServerName,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		ThreadPoolSize:    poolStats.NumWorkers,
		QueueSize:         poolStats.QueueDepth,
		ActiveConnections: d.deps.Table.Len(),
		DocumentRoot:      d.deps.DocumentRoot,
		Architecture:      runtime.GOARCH,
		HTTPVersion:       "HTTP/1.1",
		Cache: cacheJSON{
			Hits:             cacheStats.Hits,
			Misses:           cacheStats.Misses,
			Entries:          cacheStats.Entries,
			MemoryUsageBytes: cacheStats.MemoryUsage,
			HitRatioPercent:  cacheStats.HitRatioPct,
		},
	}

	out, err := json.Marshal(doc)
	if err != nil {
		// statusJSON has no cyclic or unsupported fields; this cannot fail.
		return []byte(`{}`)
	}
	return out
}
