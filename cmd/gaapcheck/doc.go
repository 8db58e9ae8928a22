// Package main hosts the gaapcheck CLI entrypoint and command graph.
//
// The Cobra command tree covers the whole audit flow from a terminal:
// normalize and extract for inspecting single stages, audit for batch runs
// with report export, verify and ledger for reviewer decisions, vendors for
// the vendor account memory, serve for the HTTP API, and status, logs and
// config for operations. commandContext resolves configuration, logging and
// storage once per invocation so subcommands only wire services together.
package main
