package merchantd

// WalletType identifies which XRPL wallet a store connected with.
type WalletType string

const (
	WalletNone      WalletType = ""
	WalletXaman     WalletType = "xaman"
	WalletCrossmark WalletType = "crossmark"
	WalletWeb3Auth  WalletType = "web3auth"
)

// SupportsAutoSign reports whether the wallet can pre-authorise transactions.
// Xaman signs every transaction interactively, so only manual payouts apply.
func (w WalletType) SupportsAutoSign() bool {
	return w == WalletCrossmark || w == WalletWeb3Auth
}

// Valid reports whether the wallet type is one the gateway recognises.
func (w WalletType) Valid() bool {
	switch w {
	case WalletXaman, WalletCrossmark, WalletWeb3Auth:
		return true
	}
	return false
}

// WalletStatus is the funded and trustline state reported by the commerce
// platform for the connected payout wallet.
type WalletStatus struct {
	Funded        bool    `json:"funded"`
	RLUSDTrust    bool    `json:"rlusd_trustline"`
	XRPBalance    float64 `json:"xrp_balance"`
	RLUSDBalance  float64 `json:"rlusd_balance"`
	WalletAddress string  `json:"wallet_address,omitempty"`
}

// OnboardingStep names the next action a merchant must take before payouts
// can run.
type OnboardingStep string

const (
	StepFundWallet  OnboardingStep = "fund_wallet"
	StepEnableRLUSD OnboardingStep = "enable_rlusd"
	StepReady       OnboardingStep = "ready"
)

// Step resolves the next onboarding action. Funding outranks the trustline:
// an unfunded account cannot hold a trustline, so funding is always surfaced
// first regardless of the trustline flag.
func (s WalletStatus) Step() OnboardingStep {
	if !s.Funded {
		return StepFundWallet
	}
	if !s.RLUSDTrust {
		return StepEnableRLUSD
	}
	return StepReady
}

// Ready reports whether the wallet can receive RLUSD payouts.
func (s WalletStatus) Ready() bool {
	return s.Step() == StepReady
}
