package feed

import (
	"sort"
	"sync"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"huddle/models"
)

// Store holds the ranked in-memory feed for one session. The server
// owns the data; the store only mirrors it, which is why there is no
// delete and vote counts never go down. One store belongs to exactly
// one session view and is thrown away with it.
type Store struct {
	mu      sync.RWMutex
	entries []Ranked
	index   map[string]int // id -> position in entries
	nextSeq int
	ranking Ranking
}

// NewStore creates an empty store ranked by votes.
func NewStore() *Store {
	return NewStoreWithRanking(ByVotes{})
}

// NewStoreWithRanking creates an empty store with a custom ranking.
func NewStoreWithRanking(ranking Ranking) *Store {
	return &Store{
		index:   make(map[string]int),
		ranking: ranking,
	}
}

// ReplaceAll swaps the full contents for a snapshot, then sorts.
// Insertion sequence restarts at snapshot order.
func (s *Store) ReplaceAll(items []models.FeedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make([]Ranked, 0, len(items))
	s.index = make(map[string]int, len(items))
	s.nextSeq = 0

	for _, item := range items {
		if _, ok := s.index[item.ID]; ok {
			continue
		}
		s.index[item.ID] = len(s.entries)
		s.entries = append(s.entries, Ranked{Item: item, Seq: s.nextSeq})
		s.nextSeq++
	}

	s.resort()
}

// Insert appends one new item and re-sorts. A duplicate id is a no-op,
// not an update; the same created event delivered twice must not
// produce two rows.
func (s *Store) Insert(item models.FeedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[item.ID]; ok {
		log.WithFields(log.Fields{
			"id": item.ID,
		}).Debug("Ignoring duplicate feed item")
		return
	}

	s.index[item.ID] = len(s.entries)
	s.entries = append(s.entries, Ranked{Item: item, Seq: s.nextSeq})
	s.nextSeq++

	s.resort()
}

// Patch merges the given fields into the item with the matching id.
// Unknown ids are dropped, not queued; an event for an item this
// client never observed is a normal consequence of the wire protocol.
func (s *Store) Patch(id string, patch models.ItemPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		log.WithFields(log.Fields{
			"id": id,
		}).Debug("Dropping patch for unknown feed item")
		return
	}

	item := &s.entries[pos].Item
	if patch.Text != nil {
		item.Text = *patch.Text
	}
	if patch.Annotations != nil {
		if item.Annotations == nil {
			item.Annotations = make(map[string]string, len(patch.Annotations))
		}
		for key, value := range patch.Annotations {
			item.Annotations[key] = value
		}
	}

	s.resort()
}

// IncrementVote adds one vote from the given identity. Idempotent per
// voter: redelivered vote events change nothing.
func (s *Store) IncrementVote(id string, voter string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		log.WithFields(log.Fields{
			"id": id,
		}).Debug("Dropping vote for unknown feed item")
		return
	}

	item := &s.entries[pos].Item
	if lo.Contains(item.Voters, voter) {
		return
	}

	item.Voters = append(item.Voters, voter)
	item.VoteCount++

	s.resort()
}

// HasVoted reports whether the identity already voted on the item.
// Used to render vote-button state and to suppress duplicate outbound
// votes; the server remains authoritative.
func (s *Store) HasVoted(id string, voter string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[id]
	if !ok {
		return false
	}
	return lo.Contains(s.entries[pos].Item.Voters, voter)
}

// All returns the items in current rank order. Items are deep copies;
// later mutations never reach a snapshot already handed out, and a
// reader marshalling one cannot race the dispatch goroutine. Sorting
// already happened on the mutation path.
func (s *Store) All() []models.FeedItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Map(s.entries, func(entry Ranked, _ int) models.FeedItem {
		return cloneItem(entry.Item)
	})
}

func cloneItem(item models.FeedItem) models.FeedItem {
	item.Voters = append([]string(nil), item.Voters...)
	if item.Annotations != nil {
		copied := make(map[string]string, len(item.Annotations))
		for key, value := range item.Annotations {
			copied[key] = value
		}
		item.Annotations = copied
	}
	return item
}

// Len returns the number of items in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// resort re-applies the ranking and rebuilds the id index. Callers
// must hold the write lock.
func (s *Store) resort() {
	sort.Slice(s.entries, func(i, j int) bool {
		return s.ranking.Less(s.entries[i], s.entries[j])
	})
	for pos, entry := range s.entries {
		s.index[entry.Item.ID] = pos
	}
}
