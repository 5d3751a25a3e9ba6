// Copyright 2024-2026 Aiku AI

package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Resolver turns loosely typed channel references into channel ids.
type Resolver struct {
	directory func() *Directory
	api       WebAPI
	log       zerolog.Logger
	opening   singleflight.Group
}

func NewResolver(directory func() *Directory, api WebAPI, log zerolog.Logger) *Resolver {
	return &Resolver{
		directory: directory,
		api:       api,
		log:       log,
	}
}

// Resolve accepts, in order of precedence: a channel id (returned unchanged),
// a channel name with or without a leading '#', a user id, or a user name with
// or without a leading '@'. User references resolve to the direct message
// channel with that user, opening one if necessary.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	dir := r.directory()
	if dir == nil {
		return "", &ResolutionError{Ref: ref, Reason: "directory not loaded"}
	}
	if _, ok := dir.Channel(ref); ok || dir.IsDirectMessage(ref) {
		return ref, nil
	}
	if id, ok := dir.FindChannelByName(strings.TrimPrefix(ref, "#")); ok {
		return id, nil
	}
	if _, ok := dir.User(ref); ok {
		return r.directMessage(ctx, dir, ref)
	}
	if id, ok := dir.FindUserByName(strings.TrimPrefix(ref, "@")); ok {
		return r.directMessage(ctx, dir, id)
	}
	return "", &ResolutionError{Ref: ref}
}

// DirectMessage returns the direct message channel with a user, opening one
// if none is cached.
func (r *Resolver) DirectMessage(ctx context.Context, userID string) (string, error) {
	dir := r.directory()
	if dir == nil {
		return "", &ResolutionError{Ref: userID, Reason: "directory not loaded"}
	}
	return r.directMessage(ctx, dir, userID)
}

func (r *Resolver) directMessage(ctx context.Context, dir *Directory, userID string) (string, error) {
	if _, ok := dir.User(userID); !ok {
		return "", &ResolutionError{Ref: userID, Reason: "no such user"}
	}
	if id, ok := dir.DirectMessage(userID); ok {
		return id, nil
	}
	// Concurrent opens for the same user share one request.
	v, err, _ := r.opening.Do(userID, func() (any, error) {
		if id, ok := dir.DirectMessage(userID); ok {
			return id, nil
		}
		id, err := r.api.OpenDirectMessage(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("failed to open direct message channel with %s: %w", userID, err)
		}
		if id == "" {
			return "", fmt.Errorf("failed to open direct message channel with %s: empty channel id", userID)
		}
		r.log.Debug().Str("user_id", userID).Str("channel_id", id).Msg("Opened direct message channel")
		return dir.storeDirectMessage(userID, id), nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
