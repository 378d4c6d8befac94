// Package manager owns the per-domain language model sessions and the
// cached model availability. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: session state types (State, Instance).
//   - errors.go: error types and helpers (IsTooBusy, IsModelUnavailable).
//   - sessions.go: GetOrCreateSession and session replacement.
//   - admission.go: per-session queueing, one prompt at a time.
//   - unload.go: DestroySession and draining.
//   - availability.go: throttled probing and the subscriber-driven poll loop.
//   - status_report.go: Status reporting helpers.
//   - sanity.go: model file checks for readiness.
//
// Build tags and runtimes:
//
//   - In-process llama: uses the go-llama.cpp adapter. Enabled with `-tags=llama`.
//     File: adapter_llama.go (carries the linker rpath hints).
//     A no-CGO stub reporting the model as unavailable is compiled otherwise:
//     adapter_llama_stub.go.
//
// External packages should use the exported methods only.
package manager
