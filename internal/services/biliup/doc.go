// Package biliup shells out to the biliup CLI to publish finished videos,
// retrying failed uploads with capped exponential backoff.
package biliup
