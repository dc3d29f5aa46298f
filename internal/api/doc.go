// Package api provides the relay gateway's HTTP API, WebSocket event stream,
// Prometheus metrics and MQTT bridge.
//
// Every request becomes a dispatch.Command submitted to the single worker
// that owns the relay registry; handlers never touch relays directly.
//
//	GET /                        {"HealthCheck": true}
//	GET /health                  worker state, source and uptime
//	GET /status                  relays, rooms and current preset
//	GET /refresh                 reload the relay configuration
//	GET /preset/set/{name}       apply a preset
//	GET /preset/getPresetNames   list presets
//	GET /relay/{name}/{cmd}      ON, OFF, TOGGLE or STATUS one relay
//	GET /relays/{tag}/{cmd}      the same for every relay with a tag
//	GET /history                 recorded commands and state changes, when enabled
//	GET /ui/                     built-in dashboard, when enabled
//	GET /ws                      event stream
//	GET /metrics                 Prometheus exposition
//
// The Hub, Metrics and MQTTBridge types implement dispatch.Observer and are
// registered with the worker before it starts.
//
// Lifecycle:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
