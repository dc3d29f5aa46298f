// Package provider loads the relay registry from a configuration source.
//
// Three sources produce the same Document:
//
//   - LocalProvider reads a JSON or YAML file.
//   - SQLiteProvider reads relay and preset documents from the gateway store.
//   - RedisProvider reads them from Redis hashes, the remote document store.
//
// Builder turns a Document into a device.Registry. It probes every relay
// once and leaves out those that do not answer, so the registry only holds
// reachable relays at load time. The reserved presets Custom and FullOff
// are added when the source does not define them.
package provider
