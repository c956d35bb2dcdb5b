package app

import (
	"errors"
	"log/slog"

	"github.com/quidnu/subtubular/internal/domain"
)

// ScopeRequest is the user's scope selection: any mix of channels, playlists
// and explicit video ids, with a shared window.
type ScopeRequest struct {
	Channels  []string
	Playlists []string
	VideoIDs  []string

	// Skip and Take window each collection's known videos. They do not
	// apply to explicit video ids.
	Skip int
	Take int
}

// buildScopes expands the request into one Scope per channel and playlist
// plus one for the explicit video ids, if any.
func (a *App) buildScopes(req ScopeRequest) ([]*domain.Scope, error) {
	var scopes []*domain.Scope
	for _, id := range req.Channels {
		scopes = append(scopes, a.newScope(domain.ScopeChannel, id, req))
	}
	for _, id := range req.Playlists {
		scopes = append(scopes, a.newScope(domain.ScopePlaylist, id, req))
	}
	if len(req.VideoIDs) > 0 {
		s := a.newScope(domain.ScopeVideos, "", req)
		s.VideoIDs = req.VideoIDs
		scopes = append(scopes, s)
	}
	if len(scopes) == 0 {
		return nil, errors.New("no scope given: pass --channel, --playlist or --videos")
	}
	return scopes, nil
}

func (a *App) newScope(t domain.ScopeType, id string, req ScopeRequest) *domain.Scope {
	return &domain.Scope{
		Type:      t,
		ID:        id,
		Skip:      req.Skip,
		Take:      req.Take,
		Freshness: a.Settings.CacheFreshness,
		OnStatus: func(s *domain.Scope, status domain.ScopeStatus) {
			slog.Debug("Scope status", "scope", s.String(), "status", status)
		},
	}
}

// reportNotifications surfaces the diagnostics scopes collected during a run.
func reportNotifications(scopes []*domain.Scope) {
	for _, s := range scopes {
		for _, n := range s.Notifications() {
			args := []any{"scope", s.String()}
			for _, err := range n.Errors {
				args = append(args, "error", err)
			}
			slog.Warn(n.Message, args...)
		}
	}
}
