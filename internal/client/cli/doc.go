// Package cli provides the interactive SpaceTask command-line client.
//
// It wires configuration, the local session store, the API client and a
// REPL. A remembered login is restored at start-up, and a background
// watcher pings the server to show whether it is reachable.
//
// Key features:
//   - Register / Login / Logout, with the session kept between runs
//   - Browse tasks: list, nearby, created, completed, show
//   - Manage own tasks: create, update, cancel, delete
//   - Proofs: upload an image, submit, review (accept / reject)
//   - Leaderboard and coin history
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
