// Package device models the controllable relays of the gateway and the
// in-memory Registry that holds them.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────┐
//	│                        Registry                          │
//	│  devices (name → Relay)   presets (name → Preset)        │
//	│  currentPreset                                           │
//	└───────────────┬──────────────────────────────────────────┘
//	                │
//	      ┌─────────┴─────────┐
//	      ▼                   ▼
//	┌──────────────┐   ┌───────────────┐
//	│ SingleOutlet │   │ ManagedOutlet │  one child of a power strip
//	└──────┬───────┘   └───────┬───────┘
//	       └─────────┬─────────┘
//	                 ▼
//	         kasa.Transport (TCP 9999)
//
// # Key Types
//
//   - Relay: capability interface shared by both variants
//   - Snapshot: the JSON view of a relay used in status reports
//   - Preset: a closed-world on/off assignment over all relays
//   - Registry: the snapshot of relays and presets owned by the dispatch worker
//
// # Thread Safety
//
// Relays and the Registry are not safe for concurrent use. The dispatch
// worker is their only owner; other goroutines reach them through commands.
//
// # Status Cache
//
// Each relay caches the last state it observed. The cache is updated only
// after the relay acknowledges a command or answers a status query, and is
// left untouched when an exchange fails.
package device
