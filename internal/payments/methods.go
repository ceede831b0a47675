package payments

import (
	"github.com/priyankdesai/storefront-backend/pkg/config"
	"github.com/priyankdesai/storefront-backend/pkg/enums"
)

// MethodsView describes which payment paths the storefront currently offers.
type MethodsView struct {
	CODEnabled    bool                    `json:"codEnabled"`
	OnlineEnabled bool                    `json:"onlineEnabled"`
	Providers     []enums.PaymentProvider `json:"providers"`
}

// Empty reports the nothing-available state where checkout cannot proceed.
func (v MethodsView) Empty() bool {
	return !v.CODEnabled && !v.OnlineEnabled
}

// SupportsProvider reports whether the provider is currently selectable.
func (v MethodsView) SupportsProvider(p enums.PaymentProvider) bool {
	for _, candidate := range v.Providers {
		if candidate == p {
			return true
		}
	}
	return false
}

// Methods resolves the offered payment paths from configuration. Online is
// only offered when at least one provider is both flagged on and has a
// configured gateway; a flag without credentials offers nothing.
func Methods(cfg config.PaymentsConfig, razorpayReady, cashfreeReady bool) MethodsView {
	view := MethodsView{
		CODEnabled: cfg.CODEnabled,
		Providers:  []enums.PaymentProvider{},
	}
	if !cfg.OnlineEnabled {
		return view
	}
	if cfg.RazorpayEnabled && razorpayReady {
		view.Providers = append(view.Providers, enums.PaymentProviderRazorpay)
	}
	if cfg.CashfreeEnabled && cashfreeReady {
		view.Providers = append(view.Providers, enums.PaymentProviderCashfree)
	}
	view.OnlineEnabled = len(view.Providers) > 0
	return view
}
