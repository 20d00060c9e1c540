// Package auth decides who may run moderation commands and where.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aatumaykin/purgebot/internal/config"
	"github.com/aatumaykin/purgebot/internal/logger"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ErrNotAuthorized is returned when an actor fails the admin check.
var ErrNotAuthorized = errors.New("you are not authorized to use this command")

// Actor is the user issuing a command.
type Actor struct {
	UserID    string
	RoleNames []string // empty outside guilds
	GuildID   string
}

// AdminStore answers membership in the persisted admin allow-list.
type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Authorizer combines super admins, admin roles and the admin table.
type Authorizer struct {
	superAdmins map[string]struct{}
	adminRoles  map[string]struct{}
	allowed     map[string]struct{}
	store       AdminStore
	logger      *logger.Logger
}

// New creates an Authorizer. store may be nil to disable the admin table.
func New(authCfg config.AuthConfig, cmdCfg config.CommandsConfig, store AdminStore, log *logger.Logger) *Authorizer {
	a := &Authorizer{
		superAdmins: make(map[string]struct{}),
		adminRoles:  make(map[string]struct{}),
		allowed:     make(map[string]struct{}),
		store:       store,
		logger:      log.Component("auth"),
	}
	for _, id := range authCfg.SuperAdmins {
		if id = strings.TrimSpace(id); id != "" {
			a.superAdmins[id] = struct{}{}
		}
	}
	for _, role := range authCfg.AdminRoles {
		if role = strings.TrimSpace(role); role != "" {
			a.adminRoles[role] = struct{}{}
		}
	}
	for _, name := range cmdCfg.AllowedChannels {
		if n := NormalizeChannelName(name); n != "" {
			a.allowed[n] = struct{}{}
		}
	}
	return a
}

// IsSuperAdmin reports whether userID is configured as a super admin.
func (a *Authorizer) IsSuperAdmin(userID string) bool {
	_, ok := a.superAdmins[userID]
	return ok
}

// IsAdmin reports whether actor is a super admin, holds an admin role or
// is in the admin table. Role names match exactly.
func (a *Authorizer) IsAdmin(ctx context.Context, actor Actor) (bool, error) {
	if a.IsSuperAdmin(actor.UserID) {
		return true, nil
	}
	for _, role := range actor.RoleNames {
		if _, ok := a.adminRoles[role]; ok {
			return true, nil
		}
	}
	if a.store == nil {
		return false, nil
	}

	ok, err := a.store.IsAdmin(ctx, actor.UserID)
	if err != nil {
		return false, fmt.Errorf("check admin table: %w", err)
	}
	return ok, nil
}

// Require returns ErrNotAuthorized unless actor is an admin.
func (a *Authorizer) Require(ctx context.Context, actor Actor) error {
	ok, err := a.IsAdmin(ctx, actor)
	if err != nil {
		a.logger.Error("admin check failed", err, logger.Field{Key: "user_id", Value: actor.UserID})
		return ErrNotAuthorized
	}
	if !ok {
		a.logger.Debug("admin check denied", logger.Field{Key: "user_id", Value: actor.UserID})
		return ErrNotAuthorized
	}
	return nil
}

// CanManageAdmins reports whether actor may edit the admin table.
func (a *Authorizer) CanManageAdmins(actor Actor) bool {
	return a.IsSuperAdmin(actor.UserID)
}

// CommandChannelAllowed reports whether commands are accepted in a channel.
// An empty allow-list permits everything; otherwise only guild channels
// whose normalized name is listed are accepted.
func (a *Authorizer) CommandChannelAllowed(channelName string, inGuild bool) bool {
	if len(a.allowed) == 0 {
		return true
	}
	if !inGuild {
		return false
	}
	_, ok := a.allowed[NormalizeChannelName(channelName)]
	return ok
}

// NormalizeChannelName applies NFKC and case folding and drops a leading '#'.
func NormalizeChannelName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "#")
	return cases.Fold().String(norm.NFKC.String(name))
}
