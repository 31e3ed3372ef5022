package kalbio

import (
	"context"
	"net/url"
)

// RecordsService manages records.
type RecordsService struct {
	client *Client
}

// List retrieves records, optionally filtered by entity type or other query
// parameters.
func (s *RecordsService) List(ctx context.Context, query url.Values) (Result, error) {
	return s.client.Get(ctx, "/records", query)
}

// Get retrieves a single record by ID.
func (s *RecordsService) Get(ctx context.Context, recordID string) (Result, error) {
	return s.client.Get(ctx, "/records/"+recordID, nil)
}

// Create creates a record from the given payload.
func (s *RecordsService) Create(ctx context.Context, payload any) (Result, error) {
	return s.client.Post(ctx, "/records", payload)
}

// Update replaces a record with the given payload.
func (s *RecordsService) Update(ctx context.Context, recordID string, payload any) (Result, error) {
	return s.client.Put(ctx, "/records/"+recordID, payload)
}

// Delete removes a record.
func (s *RecordsService) Delete(ctx context.Context, recordID string) (Result, error) {
	return s.client.Delete(ctx, "/records/"+recordID, nil)
}
