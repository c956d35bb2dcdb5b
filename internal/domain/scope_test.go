package domain

import (
	"errors"
	"testing"
)

func TestScopeStorageKey(t *testing.T) {
	tests := []struct {
		scope Scope
		want  string
	}{
		{Scope{Type: ScopeChannel, ID: "UC123"}, "channel UC123"},
		{Scope{Type: ScopePlaylist, ID: "PL456"}, "playlist PL456"},
		{Scope{Type: ScopeVideos, VideoIDs: []string{"a", "b"}}, "videos"},
	}
	for i := range tests {
		tt := &tests[i]
		if got := tt.scope.StorageKey(); got != tt.want {
			t.Errorf("StorageKey() = %q, want %q", got, tt.want)
		}
	}
}

func TestScopeStatusTransitions(t *testing.T) {
	var seen []ScopeStatus
	s := &Scope{
		Type: ScopeChannel,
		ID:   "UC123",
		OnStatus: func(_ *Scope, status ScopeStatus) {
			seen = append(seen, status)
		},
	}

	s.Report(StatusSearching)
	s.Report(StatusSearched)

	if s.Status() != StatusSearched {
		t.Errorf("Status() = %q, want %q", s.Status(), StatusSearched)
	}
	if len(seen) != 2 || seen[0] != StatusSearching || seen[1] != StatusSearched {
		t.Errorf("observed transitions = %v", seen)
	}
}

func TestScopeQueueVideos(t *testing.T) {
	s := &Scope{Type: ScopeVideos, VideoIDs: []string{"a", "b"}}
	s.QueueVideos([]string{"a", "b"})

	if got := s.QueuedVideos(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("QueuedVideos() = %v", got)
	}
	if s.VideoStatus("a") != StatusQueued {
		t.Errorf("VideoStatus(a) = %q, want queued", s.VideoStatus("a"))
	}

	s.ReportVideo("a", StatusSearched)
	if s.VideoStatus("a") != StatusSearched {
		t.Errorf("VideoStatus(a) = %q, want searched", s.VideoStatus("a"))
	}
	if s.VideoStatus("b") != StatusQueued {
		t.Errorf("VideoStatus(b) = %q, want queued", s.VideoStatus("b"))
	}
}

func TestScopeNotifications(t *testing.T) {
	s := &Scope{Type: ScopePlaylist, ID: "PL1"}
	cause := errors.New("boom")
	s.Notify("search failed", cause)

	ns := s.Notifications()
	if len(ns) != 1 {
		t.Fatalf("got %d notifications, want 1", len(ns))
	}
	if ns[0].Message != "search failed" {
		t.Errorf("Message = %q", ns[0].Message)
	}
	if len(ns[0].Errors) != 1 || !errors.Is(ns[0].Errors[0], cause) {
		t.Errorf("Errors = %v", ns[0].Errors)
	}
}
