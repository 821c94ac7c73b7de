// Package tasks runs checksum audits over a repository with a bounded pool of workers.
//
// # Pipeline
//
// A [Pipeline] has three kinds of goroutine connected by two buffered channels:
//
//  1. The coordinator (the caller of [Pipeline.Run]) walks a [Source] of object ids, confirms each object exists,
//     registers it in the [PendingTable] and queues one [models.Task] per datastream (or per datastream version)
//     on the todo channel.
//  2. Workers receive tasks, call into their own [services.Repository] session and send exactly one
//     [models.Result] per task on the done channel. When the last task of an object completes the object is
//     counted as processed.
//  3. A single reporter receives results, tallies [Stats], prints messages, writes records and refreshes
//     the [Display].
//
// After enumeration ends the coordinator waits for every queued task to be acknowledged by the reporter,
// then closes todo and done in turn so workers and reporter return.
//
// # Strategies
//
// The mode-specific steps live behind [Strategy]:
//   - [ValidateStrategy] : asks the repository to verify stored checksums, optionally for every version
//   - [RepairStrategy] : sets a checksum type on datastreams without a checksum, or on forced ids
//
// # Interruption
//
// [Pipeline.Interrupt] sets a flag the coordinator checks after each object. Workers and the reporter are never
// interrupted; whatever was queued drains and is included in the summary.
package tasks
