// Package orchestrator starts the configured services in dependency order.
//
// Services are grouped into waves. The first wave holds every service
// without dependencies; each later wave holds the services whose
// dependencies have all been handled by earlier waves. Services within a
// wave start concurrently and the scheduler waits for the whole wave before
// moving on, so a service never starts before the services it depends on
// have returned from their own start.
//
// As soon as a service is up, its exposed values that need the service
// running are composed and added to the shared environment, making them
// visible to the services of later waves.
//
// # Failure Handling
//
// A fatal error lets the current wave finish and prevents any further wave
// from starting; the first fatal error is returned. Non-fatal failures are
// recorded in the Report. By default dependents of a failed service are
// still started; set Options.BlockOnFailedDependency to skip them instead.
package orchestrator
