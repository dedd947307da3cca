// Package model defines the domain entities shared by the server, the
// persistence layer, and the client-side mirror: events identified by
// invitation codes, their participants and expenses, the involved-records
// tying participants to expense shares, and the StatusEntity reply envelope
// used on the realtime wire.
package model
