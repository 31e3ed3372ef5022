package kalbio

import (
	"context"
	"net/url"
)

// ProgramsService manages programs.
type ProgramsService struct {
	client *Client
}

// List retrieves programs.
func (s *ProgramsService) List(ctx context.Context, query url.Values) (Result, error) {
	return s.client.Get(ctx, "/programs", query)
}

// Get retrieves a single program by ID.
func (s *ProgramsService) Get(ctx context.Context, programID string) (Result, error) {
	return s.client.Get(ctx, "/programs/"+programID, nil)
}

// Create creates a program from the given payload.
func (s *ProgramsService) Create(ctx context.Context, payload any) (Result, error) {
	return s.client.Post(ctx, "/programs", payload)
}

// Update replaces a program with the given payload.
func (s *ProgramsService) Update(ctx context.Context, programID string, payload any) (Result, error) {
	return s.client.Put(ctx, "/programs/"+programID, payload)
}

// Delete removes a program.
func (s *ProgramsService) Delete(ctx context.Context, programID string) (Result, error) {
	return s.client.Delete(ctx, "/programs/"+programID, nil)
}
