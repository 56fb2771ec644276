// Package task runs image generation jobs claimed from the broker. A
// Runner hosts a fixed number of workers plus a monitor that returns
// jobs abandoned by crashed workers to the queue. It can be embedded in
// the gateway process or run on its own by cmd/worker.
package task
