// Package admin exposes a running mock StatsD server over HTTP so that
// systems under test written in other languages can inspect and verify
// the metrics they emit.
//
// Routes:
//
//	GET    /health        server state, address and uptime
//	GET    /stats         packet and line counters
//	GET    /records       received records, filtered by ?name=<glob>&type=<t>
//	DELETE /records       discard records, calls and aggregates
//	GET    /calls         raw datagrams not yet consumed
//	POST   /calls/verify  consume one raw datagram
//	GET    /values        aggregated value of ?name= with optional ?tag=
//	POST   /verify        blocking verification (await, absent or count)
//	GET    /stream        websocket feed, one JSON record per message
//	GET    /metrics       Prometheus metrics, when a gatherer is configured
//
// Error responses carry an ErrorResponse body. A failed verification is
// not an error: POST /verify answers 200 with Result.Passed false.
package admin
