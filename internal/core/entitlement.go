package core

import (
	"context"
	"strconv"
	"time"

	"github.com/driftchat/driftchat-client/internal/config"
	"github.com/driftchat/driftchat-client/internal/proto"
)

// ActivationCost is the points price of one preference window. The server is
// authoritative for the deduction and the window duration; the client only
// pre-checks affordability.
const ActivationCost = 1000

// Entitlement tracks the points balance and the preference window expiry.
// It outlives matches and connections, and is overwritten by server-reported
// values on every registration.
type Entitlement struct {
	Points                int
	PreferenceActiveUntil *time.Time
}

// Active reports whether a preference window is open at the given instant.
func (e Entitlement) Active(now time.Time) bool {
	return e.PreferenceActiveUntil != nil && e.PreferenceActiveUntil.After(now)
}

func (s *Session) handleSavePreferences(ctx context.Context, cmd command) {
	nonDefault := cmd.preferredGender != config.DefaultPreferredGender ||
		cmd.maxDistanceKm != config.DistanceUnlimited
	if nonDefault && !s.ent.Active(s.now()) {
		s.notice("Preference settings require an active preference window.")
		return
	}
	if s.conn != Connected {
		s.notice("Not connected; preferences were not saved.")
		return
	}

	args := proto.PreferencesArgs{
		PreferredGender: cmd.preferredGender,
		MaxDistance:     cmd.maxDistanceKm,
	}
	if err := s.invoke(ctx, proto.TargetUpdatePreferences, args); err != nil {
		s.notice("Saving preferences failed: " + err.Error())
		return
	}

	s.cfg.PreferredGender = cmd.preferredGender
	s.cfg.MaxDistanceKm = cmd.maxDistanceKm
	s.persist()
	s.systemMessage("Preference saved: partner " + cmd.preferredGender + ", " + distanceText(cmd.maxDistanceKm) + ".")
}

func (s *Session) handleActivatePreference(ctx context.Context, cmd command) {
	now := s.now()
	if s.ent.Active(now) {
		s.notice("A preference window is already active.")
		return
	}
	if s.ent.Points < ActivationCost {
		s.notice("Not enough points to activate preferences.")
		return
	}
	if s.conn != Connected {
		s.notice("Not connected; cannot activate preferences.")
		return
	}

	args := proto.PreferencesArgs{
		PreferredGender: cmd.preferredGender,
		MaxDistance:     cmd.maxDistanceKm,
	}
	if err := s.invoke(ctx, proto.TargetActivatePreference, args); err != nil {
		s.notice("Activating preferences failed: " + err.Error())
		return
	}

	// The server confirms the deduction and the new expiry in a PointsUpdated
	// push; the balance is never decremented speculatively.
	s.cfg.PreferredGender = cmd.preferredGender
	s.cfg.MaxDistanceKm = cmd.maxDistanceKm
	s.persist()
}

// tickEntitlement runs on the one-second session ticker. The server does not
// proactively notify window expiry, so the client self-detects the crossing,
// reverts to defaults, and pushes the reset upstream.
func (s *Session) tickEntitlement(ctx context.Context) {
	if s.ent.PreferenceActiveUntil == nil || s.ent.Active(s.now()) {
		return
	}

	s.ent.PreferenceActiveUntil = nil
	s.cfg.PreferredGender = config.DefaultPreferredGender
	s.cfg.MaxDistanceKm = config.DistanceUnlimited
	s.cfg.PreferenceActiveUntil = nil
	s.persist()

	if s.conn == Connected {
		args := proto.PreferencesArgs{
			PreferredGender: config.DefaultPreferredGender,
			MaxDistance:     config.DistanceUnlimited,
		}
		if err := s.invoke(ctx, proto.TargetUpdatePreferences, args); err != nil {
			s.log.Warn().Err(err).Msg("failed to push preference reset")
		}
	}

	s.systemMessage("Preference window expired; matching preferences reverted to defaults.")
	s.emitEntitlement()
}

func (s *Session) applyPointsUpdate(ev proto.PointsUpdated) {
	// Last write from the server wins; no local merge.
	s.ent.Points = ev.Points
	if ev.PreferenceActiveUntil != nil {
		s.ent.PreferenceActiveUntil = ev.PreferenceActiveUntil
	}
	s.cfg.Points = s.ent.Points
	s.cfg.PreferenceActiveUntil = s.ent.PreferenceActiveUntil
	s.persist()
	s.emitEntitlement()
}

func distanceText(km int) string {
	if km == config.DistanceUnlimited {
		return "unlimited distance"
	}
	return "within " + strconv.Itoa(km) + " km"
}
