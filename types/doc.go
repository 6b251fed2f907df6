// Package types defines the shared vocabulary of the modelgate core:
// task descriptors, requester tiers, content modalities, and the unified
// error model used across catalog, router, ledger, and alerting.
//
// The package is intentionally dependency-free so every other package can
// import it without cycles.
package types
