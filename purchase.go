package rapport

import (
	"context"

	"github.com/xraph/rapport/entitlement"
)

// ──────────────────────────────────────────────────
// Purchases
// ──────────────────────────────────────────────────

// ApplyPurchase turns a completed purchase into the matching grant or
// balance change. Payment verification happens upstream.
func (e *Engine) ApplyPurchase(ctx context.Context, p *entitlement.Purchase) error {
	if err := ValidatePurchase(p); err != nil {
		return err
	}

	var err error
	switch p.Kind {
	case entitlement.KindSubscription:
		_, err = e.Subscribe(ctx, p.UserID, p.Plan)
	case entitlement.KindChatUnlock:
		_, err = e.UnlockChat(ctx, p.UserID, p.Target)
	case entitlement.KindTimedAccess:
		if p.Tonight {
			_, err = e.GrantTonightAccess(ctx, p.UserID, p.Feature)
		} else {
			_, err = e.GrantTimedAccess(ctx, p.UserID, p.Feature, p.Duration)
		}
	case entitlement.KindPowerUp:
		_, err = e.GrantPowerUp(ctx, p.UserID, p.PowerUp, p.Multiplier, p.Duration)
	case entitlement.KindConsumable:
		_, err = e.AddSuperLikes(ctx, p.UserID, p.Count)
	}
	if err != nil {
		e.logger.Warn("purchase not applied",
			"user", p.UserID,
			"kind", p.Kind,
			"reference", p.Reference,
			"error", err,
		)
		return err
	}

	e.logger.Info("purchase applied", "user", p.UserID, "kind", p.Kind, "reference", p.Reference)
	e.plugins.EmitPurchaseCompleted(ctx, p)
	return nil
}

// ValidatePurchase checks that p carries the fields its kind needs. All
// problems are reported together.
func ValidatePurchase(p *entitlement.Purchase) error {
	if p == nil {
		return ValidationError{Field: "purchase", Message: "is required"}
	}

	var errs MultiError
	if p.UserID == "" {
		errs.Add(ValidationError{Field: "user_id", Message: "must not be empty"})
	}

	switch p.Kind {
	case entitlement.KindSubscription:
		if p.Plan != entitlement.PlanMonthly && p.Plan != entitlement.PlanYearly {
			errs.Add(ErrUnknownPlan)
		}
	case entitlement.KindChatUnlock:
		if p.Target == "" {
			errs.Add(ValidationError{Field: "target", Message: "must not be empty"})
		}
		if p.Target == p.UserID && p.Target != "" {
			errs.Add(ValidationError{Field: "target", Message: "must differ from the buyer"})
		}
	case entitlement.KindTimedAccess:
		if !p.Tonight && p.Duration <= 0 {
			errs.Add(ValidationError{Field: "duration", Message: "must be positive unless tonight is set"})
		}
	case entitlement.KindPowerUp:
		if p.PowerUp == "" {
			errs.Add(ValidationError{Field: "power_up", Message: "must not be empty"})
		}
		if p.Multiplier < 0 {
			errs.Add(ValidationError{Field: "multiplier", Message: "must not be negative"})
		}
	case entitlement.KindConsumable:
		if p.Count <= 0 {
			errs.Add(ValidationError{Field: "count", Message: "must be positive"})
		}
	default:
		errs.Add(ErrUnknownKind)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
