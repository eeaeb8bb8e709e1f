// Package server exposes the HTTP surfaces of the notetaker process.
//
// NewAPIRouter builds the chi router for the trigger API: a manual calendar
// sync per user, creating or removing the recording agent of one event,
// toggling recording on an event, submitting a sweep to the job queue, and
// read access to upcoming events and harvested meetings. The same router
// serves the Kubernetes probes of HealthChecker.
//
// MetricsServer serves Prometheus metrics on a dedicated port so operational
// metrics stay off the API listener.
package server
