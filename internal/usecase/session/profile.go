package session

import (
	"context"
	"strings"

	"github.com/gdugdh24/kindred-backend/internal/domain"
)

// SetActivePage switches the top-level page. Entering Explore clears the explore
// notification.
func (s *Session) SetActivePage(ctx context.Context, page Page) error {
	if _, err := ParsePage(string(page)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLoadedLocked(); err != nil {
		return err
	}
	s.activePage = page
	if page == PageExplore && s.record.ShowExploreTabNotification {
		off := false
		s.record.ShowExploreTabNotification = off
		s.commitLocked(domain.Patch{ShowExploreTabNotification: &off})
	}
	s.publishLocked()
	return nil
}

// SetPresence marks self online while visible and last seen now otherwise.
func (s *Session) SetPresence(ctx context.Context, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLoadedLocked(); err != nil {
		return err
	}
	presence := domain.PresenceOnline
	if !visible {
		presence = domain.LastSeen(s.deps.Now())
	}
	s.record.UserProfile.OnlineStatus = presence
	s.commitLocked(domain.Patch{Presence: &presence})
	s.publishLocked()
	return nil
}

func (s *Session) UpdateProfile(ctx context.Context, name, avatar string) error {
	name = strings.TrimSpace(name)
	avatar = strings.TrimSpace(avatar)
	if name == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLoadedLocked(); err != nil {
		return err
	}
	profile := s.record.UserProfile.Clone()
	profile.Name = name
	if avatar != "" {
		profile.Avatar = avatar
	}
	if profile.Name == s.record.UserProfile.Name && profile.Avatar == s.record.UserProfile.Avatar {
		return nil
	}
	s.record.UserProfile = profile
	s.commitLocked(domain.Patch{UserProfile: &profile})
	s.publishLocked()
	return nil
}
