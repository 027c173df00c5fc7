// Package history provides the location stacks a navigation engine drives.
//
// Three backends implement History:
//
//   - Memory keeps a bounded stack in process. It is the backend for
//     servers, CLIs and tests.
//   - Browser mirrors locations into a Platform's path, query and fragment
//     through its history API.
//   - Hash stores the location in the URL fragment and falls back to plain
//     fragment assignment when the platform has no history API.
//
// Platform abstracts the host window. SimPlatform is an in-process
// implementation; package bridge drives a real browser over a WebSocket.
//
// Every backend passes state through Sanitize before storing it, so only a
// plain JSON-safe subset ever reaches the platform or a persistent store.
package history
