package util

import "errors"

var (
	ErrNotFound            = errors.New("resource not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidEvent        = errors.New("invalid gamification event")
	ErrAlreadyEnrolled     = errors.New("already enrolled in course")
	ErrNotEnrolled         = errors.New("not enrolled in course")
	ErrCourseNotPublished  = errors.New("course not published")
	ErrMaxAttemptsReached  = errors.New("maximum test attempts reached")
	ErrAlreadyMember       = errors.New("user already belongs to a team")
	ErrNotMember           = errors.New("user is not a member")
	ErrTeamFull            = errors.New("team is full")
	ErrEventNotActive      = errors.New("event is not active")
	ErrEventEnded          = errors.New("event already ended")
	ErrNotRegistered       = errors.New("not registered for event")
	ErrChallengeNotActive  = errors.New("challenge is not active")
	ErrAlreadyJoined       = errors.New("already joined")
	ErrSelfConversation    = errors.New("cannot start a private chat with yourself")
	ErrInvalidLeaderboard  = errors.New("invalid leaderboard scope or period")
	ErrDuplicateDefinition = errors.New("definition code already exists")
	ErrNameTaken           = errors.New("name already taken")
	ErrAlreadyAttended     = errors.New("already attended")
)
