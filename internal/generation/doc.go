// Package generation defines the boundary between workers and image
// generation engines. A Generator turns a prompt into encoded image bytes;
// engines live in their own packages so workers never depend on a specific
// model API. The Synthetic engine renders a deterministic PNG locally and
// is used when no model credential is configured.
package generation
