/*
Package reactord is a high-concurrency HTTP/1.1 static-content server
built around a single-threaded readiness reactor and a bounded worker
pool.

One reactor goroutine owns every client socket: it accepts, reads into
per-connection buffers, detects complete requests, and resumes partial
writes under WRITABLE readiness. Complete requests are handed to a
fixed-size worker pool that parses, consults an in-memory LRU+TTL
content cache in front of the filesystem, applies per-client
token-bucket rate limiting, and stages serialized responses back onto
the connection for the reactor to drain.

Layout:

  - cmd/reactord: process entry point, CLI, signal handling
  - internal/reactor: the readiness loop and connection state machine
  - internal/poller: epoll/kqueue multiplexer abstraction
  - internal/conntable: fd -> connection table with a hard cap
  - internal/workerpool: bounded pool with graceful drain
  - internal/cache: size-bounded, TTL-bounded content cache
  - internal/ratelimit: per-client token buckets
  - internal/fileserver: safe path resolution and content serving
  - internal/httpmsg: request parsing, framing detection, response build
  - internal/apistatus: /api/status and /api/info observability routes

Run it with:

	reactord [port] [thread_count]

Port defaults to 8080; a thread count of 0 auto-detects from the host's
hardware parallelism. SIGINT or SIGTERM triggers a cooperative shutdown
that drains queued work before closing connections.
*/
package reactord
