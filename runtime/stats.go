package runtime

import (
	"sort"

	"github.com/Project-NEURIA/OpenNeuro/channel"
)

// ChannelStats samples every channel of the current session (or, after a
// stop, the last session) grouped by producing node. Each sample is a
// brief counter read under the channel's own lock; node tasks are never
// blocked beyond that.
func (rt *Runtime) ChannelStats() map[string][]channel.Stats {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	out := make(map[string][]channel.Stats)
	for name, ch := range rt.channels {
		owner := rt.owners[name]
		out[owner] = append(out[owner], ch.Stats())
	}
	for _, stats := range out {
		sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	}
	return out
}
