// Package app provides the application composition layer of the reward
// engine.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── question/       # Questions, lifecycle status, fee constants
//	│   ├── answer/         # Answers
//	│   └── reputation/     # Reputation records, tallies, vote records
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces
//	│   ├── memory/         # In-memory implementation for tests/dev
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic
//	│   ├── questions/      # Question registry + pool distribution engine
//	│   ├── answers/        # Answer registry
//	│   ├── reputation/     # Reputation ledger and vote gating
//	│   └── treasury/       # Platform fee treasury
//	├── httpapi/            # HTTP read/write surface
//	├── system/             # Lifecycle management
//	└── metrics/            # Prometheus collectors
//
// The app package composes services with their stores and the external
// custody ledger; business rules live in internal/app/services/, value
// movement in internal/custody/.
package app
