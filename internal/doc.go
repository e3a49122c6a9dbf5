// Package sumpctl implements an adaptive duty-cycle controller for a
// sump pump driven through a ROWI smart plug.
//
// # Architecture
//
// The controller is structured into several key packages:
//   - device: HTTP client for the plug's relay and power meter
//   - weather: OpenWeatherMap client with a short-lived cache
//   - controller: sampler, performance aggregation, off-time policy,
//     and the cycle state machine
//   - store: durable controller state and the operator override slot
//   - cyclelog: per-cycle CSV log
//   - history: optional Postgres cycle history
//   - export: optional MQTT and InfluxDB cycle publishers
//
// Key behavior
//
//   - Fixed ON, adaptive OFF:
//     Each cycle runs the pump for a fixed window while sampling power
//     draw, then waits a variable interval derived from how long the
//     pump actually moved water.
//
//   - Sweet spot:
//     The policy steers working time per cycle into the 8-15 second
//     band, doubling the wait when the pump ran dry and shortening it
//     when inflow is heavy or rain is expected.
//
//   - Degraded operation:
//     Missing weather, failed power polls, and export failures never
//     abort a cycle; only an unconfirmed relay command does, and even
//     that retries the cycle after a cool-down rather than exiting.
//
// For more information about specific packages, see their respective
// documentation.
package sumpctl
