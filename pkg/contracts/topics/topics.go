package topics

const (
	// Bets (criação, aceite e liquidação)
	BetEvents = "wager_bet_events"

	// Contas (depósitos)
	AccountEvents = "wager_account_events"

	// Redis Pub/Sub consumido pelo feed-service/ws
	BetUpdatesBroadcast = "bet_updates_broadcast"
)

// Chaves Redis dos snapshots atuais (escritas pelo feed-processor, lidas pelo feed-service)
func BetSnapshotKey(betID string) string { return "bet:current:" + betID }

func AccountSnapshotKey(agentID string) string { return "account:current:" + agentID }
