// Package service implements the validation and mutation core of the sync
// server.
//
// Every realtime command is handled by one function registered in the
// dispatch table under its "<entity>:<op>" name. A handler validates its
// payload, applies the mutation through the repositories, decides what to
// broadcast, and returns a StatusEntity reply for the sender's private
// queue. Validation failures never escape a handler as errors.
//
// Mutations inside an event additionally bump the event's last-activity
// timestamp asynchronously and broadcast the updated event on the admin
// update topic.
package service
