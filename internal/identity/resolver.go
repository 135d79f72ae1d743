// Package identity maps Bugzilla profiles onto Redmine users.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/danielolaszy/bzmigrate/internal/logging"
	"github.com/danielolaszy/bzmigrate/pkg/models"
)

// SourceUsers loads Bugzilla profiles.
type SourceUsers interface {
	FindUser(ctx context.Context, id int64) (models.SourceUser, bool, error)
}

// DestinationUsers looks up Redmine users. Both lookups are case-insensitive.
type DestinationUsers interface {
	FindUserByEmail(ctx context.Context, email string) (models.DestinationUser, bool, error)
	FindUserByLogin(ctx context.Context, login string) (models.DestinationUser, bool, error)
}

// Resolution records which lookup produced a match.
type Resolution string

const (
	ResolvedByEmail    Resolution = "email"
	ResolvedByExternID Resolution = "extern_id"
	Unresolved         Resolution = "none"
)

type cached struct {
	user       models.DestinationUser
	resolution Resolution
}

// Resolver maps source user ids to destination users: first by e-mail, then
// by the profile's external authentication id as a login. It never invents a
// user; callers substitute their own fallback.
//
// A Resolver memoises results and is meant for a single sequential run.
type Resolver struct {
	source            SourceUsers
	dest              DestinationUsers
	placeholderDomain string
	cache             map[int64]cached
}

// NewResolver creates a Resolver. placeholderDomain completes logins that are
// not e-mail addresses.
func NewResolver(source SourceUsers, dest DestinationUsers, placeholderDomain string) *Resolver {
	return &Resolver{
		source:            source,
		dest:              dest,
		placeholderDomain: placeholderDomain,
		cache:             make(map[int64]cached),
	}
}

// Resolve returns the destination user for a source user id, if any.
func (r *Resolver) Resolve(ctx context.Context, sourceUserID int64) (models.DestinationUser, bool, error) {
	user, resolution, err := r.Lookup(ctx, sourceUserID)
	if err != nil {
		return models.DestinationUser{}, false, err
	}
	return user, resolution != Unresolved, nil
}

// Lookup is Resolve that also reports which path matched.
func (r *Resolver) Lookup(ctx context.Context, sourceUserID int64) (models.DestinationUser, Resolution, error) {
	if c, ok := r.cache[sourceUserID]; ok {
		return c.user, c.resolution, nil
	}

	user, resolution, err := r.lookup(ctx, sourceUserID)
	if err != nil {
		return models.DestinationUser{}, Unresolved, err
	}
	r.cache[sourceUserID] = cached{user: user, resolution: resolution}
	return user, resolution, nil
}

func (r *Resolver) lookup(ctx context.Context, sourceUserID int64) (models.DestinationUser, Resolution, error) {
	if sourceUserID == 0 {
		return models.DestinationUser{}, Unresolved, nil
	}

	profile, found, err := r.source.FindUser(ctx, sourceUserID)
	if err != nil {
		return models.DestinationUser{}, Unresolved, fmt.Errorf("failed to load bugzilla profile %d: %w", sourceUserID, err)
	}
	if !found {
		logging.Info("no bugzilla profile for user",
			"source_user_id", sourceUserID,
			"resolution", Unresolved)
		return models.DestinationUser{}, Unresolved, nil
	}

	email := strings.ToLower(profile.Email(r.placeholderDomain))
	user, found, err := r.dest.FindUserByEmail(ctx, email)
	if err != nil {
		return models.DestinationUser{}, Unresolved, fmt.Errorf("failed to look up redmine user by email %s: %w", email, err)
	}
	if found {
		logging.Debug("user mapped by email",
			"source_user", email,
			"redmine_login", user.Login,
			"resolution", ResolvedByEmail)
		return user, ResolvedByEmail, nil
	}

	if externID := strings.ToLower(strings.TrimSpace(profile.ExternID)); externID != "" {
		user, found, err = r.dest.FindUserByLogin(ctx, externID)
		if err != nil {
			return models.DestinationUser{}, Unresolved, fmt.Errorf("failed to look up redmine user by login %s: %w", externID, err)
		}
		if found {
			logging.Info("user mapped by extern id",
				"source_user", email,
				"redmine_login", user.Login,
				"redmine_email", user.Email,
				"resolution", ResolvedByExternID)
			return user, ResolvedByExternID, nil
		}
	}

	logging.Info("no appropriate redmine user",
		"source_user", email,
		"suggested_login", profile.Login(),
		"first_name", profile.FirstName(),
		"last_name", profile.LastName(),
		"resolution", Unresolved)
	return models.DestinationUser{}, Unresolved, nil
}
