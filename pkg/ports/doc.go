/*
Package ports defines the driven ports (interfaces) of the insurai engine.

These interfaces decouple the flows and the executor from concrete storage,
reasoning and delivery implementations, so every collaborator can be swapped
for an in-memory fake in tests.

# Key Interfaces

  - SessionStore: persists SessionRecords between suspend and resume.
  - DistributedLocker: serializes access to a session across replicas.
  - Classifier, Generator, DocumentValidator, PlanAdvisor: reasoning capabilities.
  - OneTimeCodes, CodeStore, SMSSender, Mailer: delivery capabilities.
  - InsuranceRepository, PolicyRepository: the relational store boundary.
*/
package ports
