package redisx

import "time"

const (
	// Delivery dedup for the notifier worker: dedup:notify:{event_id}
	KeyNotifyDedup = "dedup:notify:%s"

	// Cached guild rating config: guild_rating_cfg:{guild_id}
	KeyGuildRatingConfig = "guild_rating_cfg:%s"

	// Cached marketplace view per zone/side: bazaar_view:{guild_id}:{zone}:{side}
	KeyBazaarView = "bazaar_view:%s:%s:%s"
)

var (
	TTLNotifyDedup = 48 * time.Hour
	TTLGuildConfig = 5 * time.Minute
	TTLBazaarView  = 2 * time.Minute
)
