package kalbio

import (
	"context"
	"net/url"
)

// ExportsService exports data from Kaleidoscope. Exports are created from a
// JSON payload describing the records and fields to include and downloaded
// as CSV, SD, or spreadsheet files once ready.
type ExportsService struct {
	client *Client
}

// Create starts an export from the given payload.
func (s *ExportsService) Create(ctx context.Context, payload any) (Result, error) {
	return s.client.Post(ctx, "/exports", payload)
}

// Get retrieves the status of an export by ID.
func (s *ExportsService) Get(ctx context.Context, exportID string) (Result, error) {
	return s.client.Get(ctx, "/exports/"+exportID, nil)
}

// Download saves a finished export to downloadPath and returns the path, or
// "" when the export could not be downloaded.
func (s *ExportsService) Download(ctx context.Context, exportID, downloadPath string, query url.Values) (string, error) {
	return s.client.GetFile(ctx, "/exports/"+exportID+"/download", downloadPath, query)
}
