// Package task provides the background processing machinery: durable task
// rows, an in-memory work queue, a worker pool with crash recovery, and
// the concrete pipeline tasks the workers execute.
package task
