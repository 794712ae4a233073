package notify

import "github.com/puzpuzpuz/xsync/v4"

// Registry maps a user id to at most one live channel. It is mutated by
// connection lifecycles and read by Notify calls, so all access goes through
// a concurrent map.
type Registry struct {
	channels *xsync.Map[string, Channel]
}

// NewRegistry creates an empty channel registry.
func NewRegistry() *Registry {
	return &Registry{channels: xsync.NewMap[string, Channel]()}
}

// Register binds the channel to the user. A later registration for the same
// user replaces the former, which models a reconnect arriving on a fresh
// connection.
func (r *Registry) Register(userID string, ch Channel) {
	if userID == "" || ch == nil {
		return
	}
	r.channels.Store(userID, ch)
}

// Unregister removes the entry pointing at exactly this channel. If the user
// already re-registered with a newer channel, the stale unregister is a
// no-op rather than an error.
func (r *Registry) Unregister(ch Channel) {
	if ch == nil {
		return
	}
	r.channels.Range(func(userID string, cur Channel) bool {
		if cur.ID() != ch.ID() {
			return true
		}
		// Re-check under the map's per-key lock: a reconnect may have
		// replaced the entry between Range observing it and now.
		r.channels.Compute(userID, func(old Channel, loaded bool) (Channel, xsync.ComputeOp) {
			if loaded && old.ID() == ch.ID() {
				return nil, xsync.DeleteOp
			}
			return old, xsync.CancelOp
		})
		return false
	})
}

// Lookup returns the live channel for the user, if any.
func (r *Registry) Lookup(userID string) (Channel, bool) {
	return r.channels.Load(userID)
}

// Size reports how many users currently have a live channel.
func (r *Registry) Size() int {
	return r.channels.Size()
}
