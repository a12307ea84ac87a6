// Package llm provides language model clients used as the external security
// scoring oracle. It supports OpenAI and Anthropic behind a single Client
// interface that returns the raw completion text.
package llm
