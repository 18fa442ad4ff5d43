package bot

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// runGuildExpCheck fetches the guild roster and, when the feed advanced
// since the last check, queues a poke summarizing the experience gains for
// every registered subscriber whose threshold the largest gain clears.
func (b *TS3Bot) runGuildExpCheck() {
	if b.guild == nil || b.regs == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	guild, err := b.guild.FetchGuild(ctx)
	cancel()
	if err != nil {
		log.Printf("[expcheck] fetch: %v", err)
		return
	}
	if !b.guild.HasNewData(guild) {
		return
	}

	type gain struct {
		name  string
		delta int64
	}
	var gains []gain
	var maxGain int64
	for _, m := range guild.Members {
		if m.DeltaExperience > 0 {
			gains = append(gains, gain{name: m.Name, delta: m.DeltaExperience})
			if m.DeltaExperience > maxGain {
				maxGain = m.DeltaExperience
			}
		}
	}
	if len(gains) == 0 {
		return
	}
	sort.Slice(gains, func(i, j int) bool { return gains[i].delta > gains[j].delta })

	parts := make([]string, 0, len(gains))
	for _, g := range gains {
		parts = append(parts, fmt.Sprintf("%s +%d", g.name, g.delta))
	}
	message := "Guild exp gains: " + strings.Join(parts, ", ")

	targets := b.regs.Subscribers(maxGain)
	if len(targets) == 0 {
		return
	}
	b.pokes.Enqueue(message, targets)
	log.Printf("[expcheck] queued poke for %d subscribers (%d gainers)", len(targets), len(gains))
}
