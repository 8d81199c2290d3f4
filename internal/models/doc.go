// Package models defines the data shared between the token lifecycle, the API client and the CLI.
//
// Two categories of types live here:
//
// 1. Persisted state
//   - [AuthRecord] : the single credential record written to the auth file
//
// 2. Process output
//   - [Result] : the JSON object every invocation prints on stdout
//
// [AuthRecord] is always read whole, mutated in memory and written back whole; nothing in this package touches disk.
package models
