package service

import lru "github.com/hashicorp/golang-lru/v2"

const defaultRecentMessages = 4096

// messageRef is the routing metadata of a message.
type messageRef struct {
	SenderID string
	ChatID   string
}

// recentMessages remembers the routing metadata of the messages most recently
// sent or looked up through this process, so read/edit/delete/reaction frames
// that race the asynchronous insert still find their recipients.
type recentMessages struct {
	cache *lru.Cache[string, messageRef]
}

func newRecentMessages(capacity int) *recentMessages {
	if capacity <= 0 {
		capacity = defaultRecentMessages
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, messageRef](capacity)
	return &recentMessages{cache: cache}
}

func (r *recentMessages) put(id string, ref messageRef) {
	r.cache.Add(id, ref)
}

func (r *recentMessages) get(id string) (messageRef, bool) {
	return r.cache.Get(id)
}
