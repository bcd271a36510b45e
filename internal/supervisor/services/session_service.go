// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package services

import (
	"context"
	"errors"

	"github.com/thejerf/suture/v4"

	"github.com/hearthlog/hearthlog/internal/hub"
	"github.com/hearthlog/hearthlog/internal/logging"
)

// SessionService supervises the hub session. The session handles its own
// reconnect loop; the one error that must NOT trigger a supervisor restart
// is a rejected access token, since retrying a bad credential forever just
// hammers the hub. That error is translated to suture.ErrDoNotRestart here
// so the hub package stays free of supervisor imports.
type SessionService struct {
	session *hub.Session
}

// NewSessionService wraps a hub session as a supervised service.
func NewSessionService(session *hub.Session) *SessionService {
	return &SessionService{session: session}
}

// Serve implements suture.Service.
func (s *SessionService) Serve(ctx context.Context) error {
	err := s.session.Serve(ctx)
	if errors.Is(err, hub.ErrAuthInvalid) {
		logging.Error().Err(err).Msg("hub rejected access token, not restarting session")
		return suture.ErrDoNotRestart
	}
	return err
}

// String implements fmt.Stringer for supervisor logging.
func (s *SessionService) String() string {
	return s.session.String()
}
