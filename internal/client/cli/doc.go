// Package cli provides the progres-gateway command-line client.
//
// It wires configuration, the persisted session and the HTTP API client, and
// runs either a single command given on the command line or an interactive
// REPL when no command is given.
//
// Key features:
//   - login / refresh / logout (the password is read without echo)
//   - data, info, photo, exams, cc-grades, exam-grades, subjects
//   - suggest: specialty recommendations for the logged-in student
//
// Every command that changes the tokens persists them to the session file, so
// a refresh performed transparently on a 401 survives the process.
// See App, Run and runREPL for details.
package cli
