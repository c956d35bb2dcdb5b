package domain

import (
	"fmt"
	"sync"
	"time"
)

// ScopeType discriminates the unit of work a command runs against.
type ScopeType string

const (
	ScopeChannel  ScopeType = "channel"
	ScopePlaylist ScopeType = "playlist"
	ScopeVideos   ScopeType = "videos"
)

// ScopeStatus is the lifecycle status of a scope or of one of its videos.
type ScopeStatus string

const (
	StatusQueued    ScopeStatus = "queued"
	StatusSearching ScopeStatus = "searching"
	StatusSearched  ScopeStatus = "searched"
	StatusCanceled  ScopeStatus = "canceled"
	StatusFailed    ScopeStatus = "failed"
)

// Notification is a user-visible diagnostic attached to a scope.
type Notification struct {
	Message string
	Errors  []error
}

// Scope is one requested unit of work: a channel, a playlist or an explicit
// video list. It is created per run from user input, mutated via status
// callbacks while the run progresses and discarded after output.
type Scope struct {
	Type ScopeType

	// ID is the channel or playlist identifier. Empty for ScopeVideos.
	ID string

	// VideoIDs is the explicit id list for ScopeVideos.
	VideoIDs []string

	// Skip and Take select the window of the collection's known videos.
	Skip int
	Take int

	// Freshness is how old the cached video list may be before a
	// background refresh is started.
	Freshness time.Duration

	// OnStatus, if set, observes scope-level status transitions.
	OnStatus func(*Scope, ScopeStatus)

	// OnVideoStatus, if set, observes per-video status transitions.
	OnVideoStatus func(*Scope, string, ScopeStatus)

	mu            sync.Mutex
	status        ScopeStatus
	videoStatus   map[string]ScopeStatus
	queued        []string
	notifications []Notification
}

// StorageKey returns the collection key the scope's shards are filed under.
func (s *Scope) StorageKey() string {
	if s.Type == ScopeVideos {
		return "videos"
	}
	return fmt.Sprintf("%s %s", s.Type, s.ID)
}

func (s *Scope) String() string {
	if s.Type == ScopeVideos {
		return fmt.Sprintf("videos %v", s.VideoIDs)
	}
	return fmt.Sprintf("%s %s", s.Type, s.ID)
}

// Report records a scope-level status transition.
func (s *Scope) Report(status ScopeStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	if s.OnStatus != nil {
		s.OnStatus(s, status)
	}
}

// ReportVideo records a status transition for one queued video.
func (s *Scope) ReportVideo(videoID string, status ScopeStatus) {
	s.mu.Lock()
	if s.videoStatus == nil {
		s.videoStatus = make(map[string]ScopeStatus)
	}
	s.videoStatus[videoID] = status
	s.mu.Unlock()
	if s.OnVideoStatus != nil {
		s.OnVideoStatus(s, videoID, status)
	}
}

// QueueVideos registers the working set of video ids for progress reporting.
func (s *Scope) QueueVideos(ids []string) {
	s.mu.Lock()
	s.queued = append(s.queued, ids...)
	if s.videoStatus == nil {
		s.videoStatus = make(map[string]ScopeStatus)
	}
	for _, id := range ids {
		s.videoStatus[id] = StatusQueued
	}
	s.mu.Unlock()
	if s.OnVideoStatus != nil {
		for _, id := range ids {
			s.OnVideoStatus(s, id, StatusQueued)
		}
	}
}

// Notify attaches a user-visible diagnostic to the scope.
func (s *Scope) Notify(message string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, Notification{Message: message, Errors: errs})
}

// Status returns the current scope-level status.
func (s *Scope) Status() ScopeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// VideoStatus returns the current status of one queued video.
func (s *Scope) VideoStatus(videoID string) ScopeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoStatus[videoID]
}

// QueuedVideos returns the registered working set in queue order.
func (s *Scope) QueuedVideos() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queued))
	copy(out, s.queued)
	return out
}

// Notifications returns the diagnostics attached so far.
func (s *Scope) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}
