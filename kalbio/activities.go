package kalbio

import (
	"context"
	"net/url"
)

// ActivitiesService manages activities. It owns no transport logic; every
// operation is a path over the client's request primitives.
type ActivitiesService struct {
	client *Client
}

// List retrieves activities, optionally filtered by the given query.
func (s *ActivitiesService) List(ctx context.Context, query url.Values) (Result, error) {
	return s.client.Get(ctx, "/activities", query)
}

// Get retrieves a single activity by ID.
func (s *ActivitiesService) Get(ctx context.Context, activityID string) (Result, error) {
	return s.client.Get(ctx, "/activities/"+activityID, nil)
}

// Create creates an activity from the given payload.
func (s *ActivitiesService) Create(ctx context.Context, payload any) (Result, error) {
	return s.client.Post(ctx, "/activities", payload)
}
