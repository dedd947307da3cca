// Package repository is the persistence gateway: one repository per entity,
// each exposing exists/get/save/delete against SurrealDB. The repositories
// are the sole owners of durable state; everything above them (validation
// service, hub, client mirrors) treats their answers as authoritative.
//
// Entity identifiers are application-generated (UUIDs, and 6-character
// invitation codes for events) and stored as plain fields, so queries filter
// on those fields rather than on SurrealDB record ids.
package repository
