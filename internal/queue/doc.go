// Package queue carries scheduler jobs to workers.
//
// Two brokers implement the same interface: RabbitBroker publishes JSON jobs
// to a durable RabbitMQ queue for multi-process deployments, and
// MemoryBroker keeps them in a buffered channel for a single process. A
// Worker consumes from either with a fixed number of goroutines.
package queue
