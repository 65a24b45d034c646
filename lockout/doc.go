// Package lockout throttles password guessing with rolling failed-attempt
// counters kept in Redis.
package lockout
