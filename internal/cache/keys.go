package cache

import "fmt"

// Key layout keeps the owner id in every trend key so owner-wide
// invalidation stays a single pattern match.

// TopicKey addresses one topic's cached trend result.
func TopicKey(ownerID, topicID string) string {
	return fmt.Sprintf("trend:owner:%s:topic:%s", ownerID, topicID)
}

// RankingKey addresses one owner's cached importance ranking.
func RankingKey(ownerID string) string {
	return fmt.Sprintf("ranking:owner:%s", ownerID)
}

// OwnerTrendPattern matches every trend key belonging to an owner.
func OwnerTrendPattern(ownerID string) string {
	return fmt.Sprintf("trend:owner:%s:topic:*", ownerID)
}

// LeaseKey names the advisory per-topic analysis lease.
func LeaseKey(topicID string) string {
	return fmt.Sprintf("analysis:topic:%s", topicID)
}
