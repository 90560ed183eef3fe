// Package app wires configuration, storage, background workers and the
// HTTP server together and owns their lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, config.yaml and the environment
//	2. Initialize logging and OpenTelemetry
//	3. Open the store and the per-instrument locker
//	4. Start the job queue and the event hub
//	5. Build the services, the scheduler and the router
//	6. Serve until SIGINT or SIGTERM
//
// # Graceful Shutdown
//
// On shutdown the HTTP server drains first, then the scheduler, the job
// queue and the event hub stop, and finally the store and the telemetry
// providers are closed. Initialization errors are returned to the caller;
// the package never calls os.Exit.
//
// The Container is shared with the borsactl command, which uses the
// services without the HTTP server.
package app
