package intake

import (
	"context"
	"fmt"

	"github.com/ghmbegerez/converge/pkg/eventlog"
	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
)

// Override is the manual mode pin for a tenant, read from the
// PolicyStore's intake-override row.
type Override struct {
	Mode   Mode
	SetBy  string
	SetAt  string
	Reason string
}

func getOverride(ctx context.Context, policy store.PolicyStore, tenantID string) (*Override, error) {
	mode, setBy, setAt, reason, found, err := policy.GetIntakeOverride(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !found || Mode(mode) == modeAuto {
		return nil, nil
	}
	return &Override{Mode: Mode(mode), SetBy: setBy, SetAt: setAt, Reason: reason}, nil
}

// SetMode pins tenantID's intake mode, or clears the pin and reverts to
// auto-computed mode when mode == "auto" (original_source/intake.py's
// set_intake_mode).
func SetMode(ctx context.Context, log *eventlog.Log, policy store.PolicyStore, mode Mode, tenantID, setBy, reason string) error {
	var tid *string
	if tenantID != "" {
		tid = &tenantID
	}

	if mode == modeAuto {
		if err := policy.PutIntakeOverride(ctx, tenantID, string(modeAuto), setBy, models.NowISO(), reason); err != nil {
			return err
		}
		ev := models.NewEvent(models.EventIntakeModeChanged, map[string]any{
			"mode":              "auto",
			"previous_override": true,
			"set_by":            setBy,
			"reason":            reasonOrDefault(reason, "manual override cleared"),
		})
		ev.TenantID = tid
		_, err := log.Append(ctx, ev)
		return err
	}

	if !isValidMode(mode) {
		return fmt.Errorf("intake: invalid mode %q, use open/throttle/pause/auto", mode)
	}

	if err := policy.PutIntakeOverride(ctx, tenantID, string(mode), setBy, models.NowISO(), reason); err != nil {
		return err
	}
	ev := models.NewEvent(models.EventIntakeModeChanged, map[string]any{
		"mode":   string(mode),
		"set_by": setBy,
		"reason": reasonOrDefault(reason, fmt.Sprintf("manual override to %s", mode)),
	})
	ev.TenantID = tid
	_, err := log.Append(ctx, ev)
	return err
}

func reasonOrDefault(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}
