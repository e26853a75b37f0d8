package domain

// AppSettings is the single global configuration record.
type AppSettings struct {
	AppName      string `json:"app_name"`
	WhatsappLink string `json:"whatsapp_link,omitempty"`
	Theme        string `json:"theme,omitempty"`

	CoinsPerVideo        int64 `json:"coins_per_video"`
	CoinsPerAnotherVideo int64 `json:"coins_per_another_video"`
	DailyBonusCoins      int64 `json:"daily_bonus_coins"`
	SpecialRewardCoins   int64 `json:"special_reward_coins"`
	WelcomeBonusCoins    int64 `json:"welcome_bonus_coins"`

	DailyVideoLimit   int `json:"daily_video_limit"`
	VideosPerCooldown int `json:"videos_per_cooldown"`
	CooldownMinutes   int `json:"cooldown_minutes"`

	DailyAnotherVideoLimit   int `json:"daily_another_video_limit"`
	AnotherVideosPerCooldown int `json:"another_videos_per_cooldown"`
	AnotherCooldownMinutes   int `json:"another_cooldown_minutes"`

	// Withdrawal amounts are in PKR.
	CoinsPerPKR                 int64 `json:"coins_per_pkr"`
	WithdrawalsEnabled          bool  `json:"withdrawals_enabled"`
	JazzcashEnabled             bool  `json:"jazzcash_enabled"`
	EasypaisaEnabled            bool  `json:"easypaisa_enabled"`
	MinWithdrawalNewUser        int64 `json:"min_withdrawal_new_user"`
	MinWithdrawalNewUserEnabled bool  `json:"min_withdrawal_new_user_enabled"`
	MinWithdrawalOldUsers       int64 `json:"min_withdrawal_old_users"`
	MinWithdrawalOldEnabled     bool  `json:"min_withdrawal_old_users_enabled"`
	MaxWithdrawal               int64 `json:"max_withdrawal"`
	MaxWithdrawalEnabled        bool  `json:"max_withdrawal_enabled"`

	ReferralProgramEnabled bool  `json:"referral_program_enabled"`
	ReferrerBonusCoins     int64 `json:"referrer_bonus_coins"`
	RefereeBonusCoins      int64 `json:"referee_bonus_coins"`

	AdsEnabled            bool `json:"ads_enabled"`
	RotatingAdsEnabled    bool `json:"rotating_ads_enabled"`
	InterstitialFrequency int  `json:"interstitial_frequency"`

	OTPBotEnabled      bool   `json:"otp_bot_enabled"`
	OTPMessageTemplate string `json:"otp_message_template,omitempty"`

	AboutText string `json:"about_text,omitempty"`
	RulesText string `json:"rules_text,omitempty"`

	MaintenanceMode    bool   `json:"maintenance_mode"`
	ForceUpdateEnabled bool   `json:"force_update_enabled"`
	ForceUpdateVersion string `json:"force_update_version,omitempty"`
	ForceUpdateURL     string `json:"force_update_url,omitempty"`
}

// DefaultSettings is what a fresh deployment is seeded with.
func DefaultSettings() AppSettings {
	return AppSettings{
		AppName:                     "CryptoDragon",
		Theme:                       "dark",
		CoinsPerVideo:               25,
		CoinsPerAnotherVideo:        15,
		DailyBonusCoins:             100,
		SpecialRewardCoins:          500,
		WelcomeBonusCoins:           200,
		DailyVideoLimit:             400,
		VideosPerCooldown:           20,
		CooldownMinutes:             20,
		DailyAnotherVideoLimit:      400,
		AnotherVideosPerCooldown:    20,
		AnotherCooldownMinutes:      20,
		CoinsPerPKR:                 100,
		WithdrawalsEnabled:          true,
		JazzcashEnabled:             true,
		EasypaisaEnabled:            true,
		MinWithdrawalNewUser:        500,
		MinWithdrawalNewUserEnabled: true,
		MinWithdrawalOldUsers:       1000,
		MinWithdrawalOldEnabled:     true,
		MaxWithdrawal:               5000,
		MaxWithdrawalEnabled:        true,
		ReferralProgramEnabled:      true,
		ReferrerBonusCoins:          250,
		RefereeBonusCoins:           150,
		AdsEnabled:                  true,
		RotatingAdsEnabled:          true,
		InterstitialFrequency:       3,
		OTPBotEnabled:               true,
		OTPMessageTemplate:          "Your CryptoDragon password reset code is: {{OTP}}. It is valid for 3 minutes.",
	}
}

// PublicSettings is the subset anonymous screens may read.
type PublicSettings struct {
	AppName            string `json:"app_name"`
	WhatsappLink       string `json:"whatsapp_link,omitempty"`
	Theme              string `json:"theme,omitempty"`
	AboutText          string `json:"about_text,omitempty"`
	RulesText          string `json:"rules_text,omitempty"`
	MaintenanceMode    bool   `json:"maintenance_mode"`
	ForceUpdateEnabled bool   `json:"force_update_enabled"`
	ForceUpdateVersion string `json:"force_update_version,omitempty"`
	ForceUpdateURL     string `json:"force_update_url,omitempty"`
	CoinsPerPKR        int64  `json:"coins_per_pkr"`
}

func (s AppSettings) Public() PublicSettings {
	return PublicSettings{
		AppName:            s.AppName,
		WhatsappLink:       s.WhatsappLink,
		Theme:              s.Theme,
		AboutText:          s.AboutText,
		RulesText:          s.RulesText,
		MaintenanceMode:    s.MaintenanceMode,
		ForceUpdateEnabled: s.ForceUpdateEnabled,
		ForceUpdateVersion: s.ForceUpdateVersion,
		ForceUpdateURL:     s.ForceUpdateURL,
		CoinsPerPKR:        s.CoinsPerPKR,
	}
}
