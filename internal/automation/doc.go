// Package automation applies presets and group actions to the relays of a
// device.Registry.
//
// Architecture:
//
//	┌───────────────────────────────────────────────────────┐
//	│                  Engine (engine.go)                    │
//	│                                                        │
//	│  ApplyPreset   every relay: mapped value, else off     │
//	│  ApplyToTag    relays carrying the tag                 │
//	│  ApplyToRelay  one relay                               │
//	│                                                        │
//	│  Relays are driven one at a time, in name order.       │
//	│  Failures are collected into an *ApplyError; relays    │
//	│  that already switched keep their new state.           │
//	└───────────────────────────────────────────────────────┘
//
// # Preset Marker
//
// A fully successful preset sets the registry's current preset. Any other
// mutation, including a partially failed preset, resets it to Custom.
//
// # Thread Safety
//
// The Engine holds no state of its own, but the registry it is given must
// not be used concurrently. The dispatch worker is the only caller.
package automation
