package bot

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/HEchternacht/rollabot/internal/activitylog"
)

// runScheduler is the combined recurring-task producer: a 1s polling loop
// comparing wall-clock deltas per task kind. Fire times can drift by up to
// the tick granularity; that is accepted. Enqueueing never blocks on the
// worker's I/O.
func (b *TS3Bot) runScheduler() {
	t := time.NewTicker(supervisorTick)
	defer t.Stop()

	var lastReference, lastExpCheck, lastChannelMove time.Time

	for {
		select {
		case <-b.stopCh:
			return
		case <-t.C:
		}

		now := time.Now()
		if now.Sub(lastReference) >= referenceInterval {
			lastReference = now
			b.queue.Push(Task{Kind: TaskReferenceUpdate})
		}
		if now.Sub(lastExpCheck) >= guildExpInterval {
			lastExpCheck = now
			b.queue.Push(Task{Kind: TaskGuildExpCheck})
			// pending pokes get a delivery attempt on the same cadence
			b.queue.Push(Task{Kind: TaskSendPokes})
		}
		if now.Sub(lastChannelMove) >= channelMoveInterval {
			lastChannelMove = now
			b.queue.Push(Task{Kind: TaskMoveToChannel})
		}
	}
}

// runStatsFetcher polls the war statistics API directly. It has no
// session dependency, so it bypasses the queue. Each success upserts
// today's row of the daily aggregate log.
func (b *TS3Bot) runStatsFetcher() {
	if b.guild == nil {
		return
	}

	t := time.NewTicker(supervisorTick)
	defer t.Stop()

	var lastFetch time.Time

	for {
		select {
		case <-b.stopCh:
			return
		case <-t.C:
		}

		if time.Since(lastFetch) < warStatsInterval {
			continue
		}
		lastFetch = time.Now()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		stats, err := b.guild.FetchWarStats(ctx)
		cancel()
		if err != nil {
			// stale cache is retained; next cycle tries again
			log.Printf("[warstats] fetch: %v", err)
			continue
		}

		if b.settings.WarStatsLogPath == "" {
			continue
		}
		row := activitylog.DailyWarStatsRow{
			Date:   time.Now().Format("2006-01-02"),
			Kills:  strconv.Itoa(stats.Kills),
			Deaths: strconv.Itoa(stats.Deaths),
			Score:  strconv.Itoa(stats.Score),
		}
		if err := activitylog.UpsertDailyWarStats(b.settings.WarStatsLogPath, row); err != nil {
			log.Printf("[warstats] daily log: %v", err)
		}
	}
}
