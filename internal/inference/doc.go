// Package inference is the domain boundary around the document extraction
// service.
//
// Client bounds concurrent service calls with a weighted semaphore, guards
// the service with a circuit breaker, validates each reply against the
// extraction JSON schema, normalizes the fields, applies the review policy
// and stores the result in the extract cache before returning it. Replies
// that cannot be decoded or violate the schema become the synthetic
// "Parse Error" result instead of failing the file. Transport failures are
// returned as errors and are never cached.
//
// ExtractFile adds the cache lookup in front of Extract so cached hashes never
// wait for a permit.
package inference
