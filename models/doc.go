// Package models provides shared data structures for the Operator control plane.
//
// This package contains the data models used by the server, the client SDK,
// and the operator CLI. Keeping them separate lets every component import
// them without creating circular dependencies.
//
// The models in this package represent:
//   - Policies: security rules, violations, exemptions, and access decisions
//   - Routing: organizations, registered domains, route decisions, and
//     rate-limit mitigation strategies
//   - Tasks: scaffold task records and per-step results
//   - Ledger: witnessing ledger entries and chain verification reports
//
// All structs include JSON tags for API serialization.
package models
