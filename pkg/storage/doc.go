// Package storage persists attachment files referenced by email intents.
//
// A Store keeps whole files addressed by id. Local writes them under a
// directory on disk and suits single-host deployments; S3 keeps them in an
// S3-compatible bucket. Attachments adapts a Store to the loader interface
// the send pipeline consumes.
package storage
