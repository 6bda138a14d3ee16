/*
Package domain contains the core models shared by the insurai flow engine.

It defines the session State, the Node and Edge declarations a flow is made of,
the SessionRecord persisted between calls, and the typed errors the engine
reports. The package is free of I/O; adapters live under pkg/adapters.

# Key Entities

  - State: versioned field map owned by a single session.
  - Node: named unit of work (pure, needs-input or needs-capability).
  - Edge: unconditional or selector-driven transition over a closed target set.
  - SessionRecord: what a SessionStore keeps between suspend and resume.
*/
package domain
