package generation

import "errors"

// Common errors returned by generation engines
var (
	// ErrGenerationFailed is returned when generation fails for any general reason
	ErrGenerationFailed = errors.New("image generation failed")

	// ErrContentBlocked is returned when the model refuses the prompt due to safety filters
	ErrContentBlocked = errors.New("content blocked by model safety filters")

	// ErrInvalidResponse is returned when the model response carries no usable image
	ErrInvalidResponse = errors.New("invalid response from image model")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrEmptyPrompt is returned when asked to render a blank prompt
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
)
