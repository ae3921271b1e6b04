package main

import (
	"context"
	"errors"

	"github.com/vyrodovalexey/routebind/internal/location"
	"github.com/vyrodovalexey/routebind/internal/preload"
)

// BackendPreload is the name of the preload that fetches the matched
// location from the backend.
const BackendPreload = "backend"

var errNoBackend = errors.New("no backend client configured")

// builtinPreloads returns the registry of preloads a route tree loaded
// from a configuration file can name.
func builtinPreloads() *preload.Registry {
	reg := preload.NewRegistry()
	reg.MustRegister(BackendPreload, fetchFromBackend)
	return reg
}

// fetchFromBackend requests the matched location from the backend and
// stores the decoded JSON under the route name, or its path when unnamed.
func fetchFromBackend(ctx context.Context, pc *preload.Context) error {
	if pc.HTTP == nil {
		return errNoBackend
	}

	var body any
	if err := pc.HTTP.Get(ctx, location.ToURL(pc.Location), &body); err != nil {
		return err
	}

	key := pc.Route.Name
	if key == "" {
		key = pc.Route.Path
	}
	pc.Data.Set(key, body)
	return nil
}
