package feed

import "huddle/models"

// Ranked pairs a feed item with its insertion sequence number, the tie
// breaker that keeps equal-score items from jittering around.
type Ranked struct {
	Item models.FeedItem
	Seq  int
}

// Ranking decides the feed order. The store re-applies it after every
// mutation so reads never sort.
type Ranking interface {
	Less(a, b Ranked) bool
}

// ByVotes orders items by vote count, highest first, with insertion
// order breaking ties.
type ByVotes struct{}

func (ByVotes) Less(a, b Ranked) bool {
	if a.Item.VoteCount != b.Item.VoteCount {
		return a.Item.VoteCount > b.Item.VoteCount
	}
	return a.Seq < b.Seq
}

var _ Ranking = (*ByVotes)(nil)
