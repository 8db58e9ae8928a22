// Package verification records reviewer decisions on extracted violations.
//
// State is one JSON object, document id to violation key to resolved flag,
// kept in a kvstore.Store (verified_issues.json by default). Keys come from
// the configured Identity strategy. Nothing is ever deleted automatically.
package verification
