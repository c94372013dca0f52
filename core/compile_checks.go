package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ ServiceErrorer  = (*AuthenticationError)(nil)
	_ ServiceErrorer  = (*ConfigNotFoundError)(nil)
	_ ServiceErrorer  = (*MisconfiguredProductError)(nil)
	_ ServiceErrorer  = (*UnsupportedProductError)(nil)
	_ ServiceErrorer  = (*IdentityResolutionError)(nil)
	_ ServiceErrorer  = (*LedgerWriteError)(nil)
	_ RawConfigLoader = StaticRawConfigLoader{}
	_ RawConfigLoader = (*FileConfigLoader)(nil)
	_ ConfigProvider  = (*CfgxConfigProvider)(nil)
	_ OptionsResolver = GoOptionsResolver{}
	_ ProductGrant    = TokensGrant{}
	_ ProductGrant    = SubscriptionGrant{}
	_ MetricsRecorder = NopMetricsRecorder{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
