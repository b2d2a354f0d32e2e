// Package longpollhttp is the HTTP surface of the broker: the consumer
// subscribe endpoint (long poll), the producer ingest endpoint, and the stat
// endpoint.
//
// Subscribe holds the connection open until a matching event is published or
// the poll timeout elapses. The response envelope is identical for immediate
// and parked-then-resolved answers:
//
//	{"meta":{"status":200},"data":{"events":[{"event":...,"timestamp":...,"data":...}],"timestamp":<cursor>}}
//
// Clients pass the returned timestamp back as the ?timestamp cursor on their
// next call, which makes delivery idempotent across reconnects. Every
// consumer response carries Access-Control-Allow-Origin: *.
//
// Error statuses: 400 for malformed requests, 403 for invalid/inactive
// tokens or disallowed topics, 502 when the validation upstream is
// unavailable. Error paths always complete the response; a connection is
// never left hanging.
package longpollhttp
