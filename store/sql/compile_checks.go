package sqlstore

import "github.com/goliatone/go-payledger/core"

var (
	_ core.ProfileStore  = (*ProfileStore)(nil)
	_ core.ProfileStore  = (*CachedProfileStore)(nil)
	_ core.TimelineStore = (*TimelineStore)(nil)
	_ core.LedgerStore   = (*LedgerStore)(nil)
	_ core.FailureStore  = (*FailureStore)(nil)
	_ core.StoreProvider = (*RepositoryFactory)(nil)
)
