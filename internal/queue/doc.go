// Package queue defines the contract between the gateway and the job
// broker, and provides an in-process broker for single-node deployments
// and tests.
//
// The gateway only needs Client: it submits work and polls broker-native
// state. Workers use Consumer to claim jobs and report outcomes. Native
// states are translated into the service vocabulary by package jobstatus.
package queue
