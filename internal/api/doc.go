// Package api implements the HTTP trigger surface of the pipeline. The
// write endpoints are fire-and-forget: they validate the request, emit a
// job-request event, and answer 202; the actual work happens on the task
// runner. The read endpoints serve the stored processing results.
package api
