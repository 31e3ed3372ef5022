package kalbio

import (
	"context"
)

// ImportsService imports data into Kaleidoscope. Imports are created by
// uploading a data file together with an optional JSON body describing how
// the file maps onto records.
type ImportsService struct {
	client *Client
}

// Create uploads a data file and starts an import. The optional body carries
// import settings such as the target entity type and column mappings.
func (s *ImportsService) Create(ctx context.Context, file File, body any) (Result, error) {
	return s.client.PostFile(ctx, "/imports", file, body)
}

// Get retrieves the status of an import by ID.
func (s *ImportsService) Get(ctx context.Context, importID string) (Result, error) {
	return s.client.Get(ctx, "/imports/"+importID, nil)
}
