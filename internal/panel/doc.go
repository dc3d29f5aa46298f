// Package panel serves the built-in relay dashboard.
//
// The dashboard is a single page embedded with go:embed. It reads /status
// and the preset list, toggles relays through /relay/{name}/TOGGLE, and
// re-renders on WebSocket state events. The API mounts it under /ui/.
package panel
