// Package nats mirrors camera notifications onto NATS subjects so processes
// outside the daemon (the game board, a kiosk dashboard) can follow the
// capture engine without polling the HTTP API, and accepts remote restart
// commands.
//
// # Architecture
//
//   - Server: optional embedded NATS server running in the daemon
//   - Publisher: subscribes to the event bus and publishes each camera
//     notification; listens for control commands
//   - ControlPublisher: sends control commands (kioskcam restart)
//
// # Subject Hierarchy
//
//	kioskcam.camera.{name}.frame          # frame decoded (daemon → peers)
//	kioskcam.camera.{name}.disconnected   # device lost (daemon → peers)
//	kioskcam.camera.{name}.state          # capture state change (daemon → peers)
//	kioskcam.camera.{name}.warning        # non-fatal problem (daemon → peers)
//	kioskcam.control.{name}.restart       # restart command (peers → daemon)
//
// Messages are JSON, fire-and-forget (core NATS, no JetStream). The
// publisher keeps running without a server and publishes nothing until one
// is reachable.
//
// # Debugging with nats CLI
//
//	nats sub 'kioskcam.camera.>'
//	nats pub kioskcam.control.kiosk.restart '{"action":"restart","reason":"manual"}'
package nats
