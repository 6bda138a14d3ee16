/*
Package session implements session management and persistence orchestration.

The Manager serializes every read-modify-write of a session record: a
reference-counted in-process mutex per session ID, optionally backed by a
distributed lock so that several replicas can share one SessionStore.
*/
package session
