// Package redisexec reserves segments in redis. Every sequence is a hash "dseq:<name>" with
// the fields next and span, advanced atomically by a lua script.
package redisexec
