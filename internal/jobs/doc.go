// Package jobs defines the contract with the external audio worker: the job
// envelope mixcraft submits, the result envelope the worker returns, one
// payload shape per pipeline stage, and the queues that carry them.
//
// Jobs are fire-and-forget. Every job names the entity kind and ID it acts
// on so results route without probing tables. Results are consumed
// at-least-once: a delivery stays on the processing list until acknowledged,
// and leftovers from a crashed consumer are re-queued on start.
package jobs
