package merchantd

import "fmt"

// PayoutMode selects how approved commissions are disbursed.
type PayoutMode string

const (
	// ModeManual requires the merchant to sign each payout batch.
	ModeManual PayoutMode = "manual"
	// ModeAuto signs payout batches under the auto-sign policy.
	ModeAuto PayoutMode = "auto"
)

// Valid reports whether the mode is one the gateway recognises.
func (m PayoutMode) Valid() bool {
	return m == ModeManual || m == ModeAuto
}

// ModeOption describes one selectable payout mode for the admin UI,
// including why it is unavailable when the wallet cannot serve it.
type ModeOption struct {
	Mode           PayoutMode `json:"mode"`
	Selected       bool       `json:"selected"`
	Available      bool       `json:"available"`
	DisabledReason string     `json:"disabled_reason,omitempty"`
}

// ModeOptions returns the payout modes offered for the given wallet with the
// current selection marked. Unsupported modes are listed but disabled so the
// UI can explain the restriction instead of hiding it.
func ModeOptions(wallet WalletType, current PayoutMode) []ModeOption {
	options := []ModeOption{
		{Mode: ModeManual, Available: true},
		{Mode: ModeAuto, Available: wallet.SupportsAutoSign()},
	}
	for i := range options {
		options[i].Selected = options[i].Mode == current
		if !options[i].Available {
			options[i].DisabledReason = fmt.Sprintf("not supported by %s wallet", walletLabel(wallet))
		}
	}
	return options
}

// ValidateModeChange checks that the wallet can serve the requested mode.
func ValidateModeChange(wallet WalletType, requested PayoutMode) error {
	if !requested.Valid() {
		return fmt.Errorf("%w: unknown payout mode %q", ErrOutOfRange, requested)
	}
	if requested == ModeAuto && !wallet.SupportsAutoSign() {
		return fmt.Errorf("%w: %s", ErrModeUnsupported, walletLabel(wallet))
	}
	return nil
}

func walletLabel(w WalletType) string {
	switch w {
	case WalletXaman:
		return "Xaman"
	case WalletCrossmark:
		return "Crossmark"
	case WalletWeb3Auth:
		return "Web3Auth"
	default:
		return "unconnected"
	}
}
