// Package storage provides an abstraction layer for the seed archive's
// object storage.
//
// It wraps the MinIO Go client to provide a simplified interface for the
// operations the archive performs: bucket checks, uploads, downloads and
// listings. Both self-hosted MinIO and AWS S3 work as backends.
//
// # Client Interface
//
// The Client interface abstracts the underlying storage provider, making it
// easy to mock storage interactions for unit testing (see core/storage/mocks).
//
// # Usage
//
//	client, err := storage.NewClient(config)
//	exists, err := client.BucketExists(ctx, "archipelago")
package storage
