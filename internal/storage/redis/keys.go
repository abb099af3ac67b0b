package redis

import (
	"fmt"

	"github.com/mcoot/fairway/internal/model"
)

// Key prefix for all engine data
const keyPrefix = "fairway"

// Key generation functions for each entity type

// userKey returns the Redis key for a User
func userKey(id model.UserID) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, id)
}

// matchKey returns the Redis key for a Match document (without scores)
func matchKey(id model.MatchID) string {
	return fmt.Sprintf("%s:match:%s", keyPrefix, id)
}

// matchScoresKey returns the Redis key for the HASH of score cells of a match.
// Fields are "<hole>:<userID>".
func matchScoresKey(id model.MatchID) string {
	return fmt.Sprintf("%s:match:%s:scores", keyPrefix, id)
}

// matchScoresUpdatedKey returns the Redis key holding the last score write time
func matchScoresUpdatedKey(id model.MatchID) string {
	return fmt.Sprintf("%s:match:%s:scores_updated_at", keyPrefix, id)
}

// matchesIndexKey returns the Redis key for the ZSET of all matches by creation time
func matchesIndexKey() string {
	return fmt.Sprintf("%s:idx:matches", keyPrefix)
}

// matchesByParticipantIndexKey returns the Redis key for the ZSET of a participant's matches
func matchesByParticipantIndexKey(user model.UserID) string {
	return fmt.Sprintf("%s:idx:matches_by_participant:%s", keyPrefix, user)
}

// matchesByHostIndexKey returns the Redis key for the ZSET of a host's matches
func matchesByHostIndexKey(user model.UserID) string {
	return fmt.Sprintf("%s:idx:matches_by_host:%s", keyPrefix, user)
}

// resultKey returns the Redis key for a MatchResult
func resultKey(id model.ResultID) string {
	return fmt.Sprintf("%s:result:%s", keyPrefix, id)
}

// resultByMatchKey returns the Redis key for the match -> result uniqueness index
func resultByMatchKey(matchID model.MatchID) string {
	return fmt.Sprintf("%s:idx:result_by_match:%s", keyPrefix, matchID)
}

// unawardedResultsKey returns the Redis key for the ZSET of results awaiting points
func unawardedResultsKey() string {
	return fmt.Sprintf("%s:idx:unawarded_results", keyPrefix)
}

// ledgerEntryKey returns the Redis key for a PointsLedgerEntry
func ledgerEntryKey(id model.LedgerEntryID) string {
	return fmt.Sprintf("%s:ledger:%s", keyPrefix, id)
}

// ledgerByUserMatchKey returns the Redis key for the (user, match) ledger uniqueness index
func ledgerByUserMatchKey(user model.UserID, matchID model.MatchID) string {
	return fmt.Sprintf("%s:idx:ledger_by_user_match:%s:%s", keyPrefix, user, matchID)
}

// userLedgerIndexKey returns the Redis key for the ZSET of a user's ledger entries
func userLedgerIndexKey(user model.UserID) string {
	return fmt.Sprintf("%s:idx:ledger_by_user:%s", keyPrefix, user)
}

// resultStreamKey returns the Redis key for the result-created stream
func resultStreamKey() string {
	return fmt.Sprintf("%s:stream:match_results", keyPrefix)
}
