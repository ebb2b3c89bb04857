// Package workflow drives jobs through the fixed pipeline stage order.
//
// The Manager polls the queue for work and executes the registered stage
// handlers one job at a time, persisting a checkpoint after every completed
// stage so a crashed daemon resumes exactly where it stopped. While a stage
// runs, a heartbeat goroutine renews the job's lease; the RecoveryScanner
// requeues jobs whose lease lapsed without the job finishing.
package workflow
