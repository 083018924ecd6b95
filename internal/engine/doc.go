// Package engine provides the container engine contract used by habitat.
//
// Supported engines:
//   - docker: the Docker CLI
//   - podman: the Podman CLI (same command surface)
//
// Engine selection is automatic unless settings pin a type; see New.
//
// # Engine Interface
//
// The image half of the contract backs snapshot storage:
//   - Commit: snapshot a container into a labeled image
//   - InspectLabels: read an image's labels
//   - RemoveImage: delete an image
//   - ListImages: enumerate a repository
//
// The container half backs build execution:
//   - RunContainer, Exec, CopyTo, RemoveContainer
//
// # Missing Images
//
// InspectLabels and RemoveImage return ErrNoSuchImage when a tag does not
// exist. The CLI adapter is the only place engine error text is matched;
// callers use errors.Is.
//
// # Mock Engine
//
// For testing, use NewMock() for an in-memory engine that records calls
// and supports error injection per method.
package engine
