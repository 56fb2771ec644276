// Package gemini provides an implementation of the generation.Generator
// interface backed by Google's Imagen models through the Gemini API.
//
// This package is an infrastructure adapter: it translates a prompt into a
// GenerateImages call and the response back into PNG bytes, and maps
// failures onto the generation package's sentinel errors. It performs a
// single attempt per call; redelivery of failed work is left to the broker.
package gemini
