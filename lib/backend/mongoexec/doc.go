// Package mongoexec reserves segments in MongoDB using FindOneAndUpdate with an aggregation
// pipeline update (next = next + span) on the collection dseq_sequences.
package mongoexec
