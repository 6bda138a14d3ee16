// Package capability implements the capability contracts of pkg/ports on top
// of a chat completion Reasoner and the delivery adapters.
//
// Every adapter failure is returned as a *domain.CapabilityError so the
// executor can record a user-facing message into the session state.
package capability
