// Package client implements the connecting side of the realtime protocol: a
// websocket transport, a session manager that owns the subscription set, and
// mirrors that keep a local copy of one event (and, for admin sessions, the
// event catalogue) consistent with the server's broadcasts.
package client
