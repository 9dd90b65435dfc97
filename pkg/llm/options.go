// Package llm provides options pattern for LLM generation parameters.
package llm

// GenerateOptions holds parameters for a single Generate call.
// Defaults come from config.yaml and can be overridden per call.
type GenerateOptions struct {
	// Model is the model identifier sent to the endpoint.
	Model string

	// Temperature controls randomness in responses.
	Temperature float64

	// MaxTokens limits the response length.
	MaxTokens int

	// ToolChoice is passed through when tools are present ("auto" by default).
	ToolChoice string
}

// GenerateOption is a functional option for configuring GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithModel sets the model for generation.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithTemperature sets the temperature for generation.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithMaxTokens sets the maximum tokens for generation.
func WithMaxTokens(tokens int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = tokens
	}
}

// WithToolChoice overrides the tool_choice field.
func WithToolChoice(choice string) GenerateOption {
	return func(o *GenerateOptions) {
		o.ToolChoice = choice
	}
}

// ApplyOptions applies opts on top of base and returns the result.
func ApplyOptions(base GenerateOptions, opts ...GenerateOption) GenerateOptions {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}
