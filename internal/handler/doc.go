// Package handler implements the REST surface of the sync server: event
// lifecycle endpoints, the long-poll update feed, client bootstrap, and
// health. Everything realtime goes through the websocket transport
// instead.
package handler
