// Package retry retries failed operations with exponential backoff and
// jitter.
package retry
