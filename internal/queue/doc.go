// Package queue persists jobs and their checkpoints in SQLite.
//
// A Job moves through a fixed stage order; its status is the stage currently
// executing, or one of queued/completed/failed/cancelled. Per-stage progress
// lives in a StageInfo map serialized to a JSON column. Checkpoints record
// which stages completed so a crashed job can resume at the right point;
// they carry a TTL independent of the job's so recovery can outlive
// transient job unavailability.
//
// In-flight jobs hold a lease (lease_expires_at) refreshed by the worker's
// heartbeat loop. The orphan recovery scanner only considers jobs whose
// lease has expired, so a slow but alive worker is never double-dispatched.
package queue
