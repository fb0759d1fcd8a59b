// Package domain defines the shared entities of the tutoring platform:
// users, project contexts, knowledge entries, conflicts, and token usage,
// along with the typed error taxonomy and the Result envelope every
// capability agent returns.
//
// The package has no dependencies on storage, transport, or other
// tutord packages. Everything that flows between the orchestrator,
// the agents, and the stores is declared here.
package domain
