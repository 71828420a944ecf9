// Package llm wraps an OpenAI-compatible chat completion endpoint with a
// structured-output retrier.
//
// ChatJSON enforces JSON-only model output: it prepends a mandating system
// instruction, extracts JSON from noisy responses (whole text, brace span,
// bracket span, in that order), and on failure appends a corrective reminder
// to the conversation before retrying with capped exponential backoff. All
// attempts share one cumulative wall-clock budget so a misbehaving model
// cannot stall the pipeline indefinitely.
//
// The convenience operations (TranslateTitle, GenerateMetadata,
// JudgeDuplicate) are thin prompt wrappers over ChatJSON with default-filled
// fields for anything the model omits.
package llm
