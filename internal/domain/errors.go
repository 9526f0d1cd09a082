package domain

import "errors"

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrInvalidRelationshipType = errors.New("invalid relationship type")
	ErrInvalidToken            = errors.New("invalid token")
	ErrSessionNotFound         = errors.New("session not found")
	ErrSessionExpired          = errors.New("session expired")
	ErrNotSignedIn             = errors.New("not signed in")
	ErrOnboardingIncomplete    = errors.New("onboarding not completed")
	ErrOnboardingCompleted     = errors.New("onboarding already completed")
	ErrRecordNotFound          = errors.New("record not found")
	ErrUnknownOption           = errors.New("unknown option")
)
