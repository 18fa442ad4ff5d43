package bot

import (
	"log"
	"strconv"
	"time"

	"github.com/HEchternacht/rollabot/internal/activitylog"
	"github.com/HEchternacht/rollabot/internal/clientquery"
)

// runWorker is the queue's sole consumer. Every task is handled inside its
// own error boundary; nothing thrown by a handler kills the loop.
func (b *TS3Bot) runWorker() {
	for {
		task, ok := b.queue.Pop()
		if !ok {
			return
		}
		if !b.running.Load() {
			return
		}
		b.handleTask(task)
	}
}

func (b *TS3Bot) handleTask(task Task) {
	switch task.Kind {
	case TaskGuildExpCheck:
		// no session dependency, always runs
		b.runGuildExpCheck()
		return
	case TaskReferenceUpdate:
		ref := b.pool.Get(clientquery.RoleReference)
		if ref == nil || !ref.IsAlive() {
			// skipped, not requeued: the scheduler re-fires it shortly
			log.Println("[worker] reference session unavailable, skipping refresh")
			return
		}
		b.runReferenceUpdate(ref)
		return
	}

	w := b.pool.Get(clientquery.RoleWorker)
	if w == nil || !w.IsAlive() {
		// keep the task: tail requeue, then back off
		b.queue.Push(task)
		b.sleepInterruptible(time.Second)
		return
	}

	switch task.Kind {
	case TaskChatCommand:
		b.runChatCommand(w, task)
	case TaskSendPokes:
		b.runSendPokes(w)
	case TaskMoveToChannel:
		b.runChannelSweep(w)
	default:
		log.Printf("[worker] unknown task kind %v dropped", task.Kind)
	}
}

// runChatCommand executes the command and sends the response back to the
// sender. A connection failure on the send only kills the session; the
// response is not retried, the clid may not survive a reconnect.
func (b *TS3Bot) runChatCommand(w querySession, task Task) {
	response, err := b.processCommand(w, task)
	if err != nil {
		log.Printf("[worker] command %q from %s: %v", task.Msg, task.Nickname, err)
		if clientquery.IsConnectionError(err) {
			b.pool.Drop(clientquery.RoleWorker)
			return
		}
		response = "Something broke, try again later."
	}
	if response == "" {
		return
	}
	if err := w.SendTextMessage(clientquery.TargetClient, task.Clid, response); err != nil {
		log.Printf("[worker] response to clid=%d dropped: %v", task.Clid, err)
		if clientquery.IsConnectionError(err) {
			b.pool.Drop(clientquery.RoleWorker)
		}
	}
}

func (b *TS3Bot) runSendPokes(w querySession) {
	if b.pokes.Len() == 0 {
		return
	}
	online := b.clients.OnlineUIDToClid()
	err := b.pokes.Flush(online, func(clid int, msg string) error {
		return w.ClientPoke(clid, msg)
	})
	if err != nil {
		log.Printf("[worker] poke flush aborted: %v", err)
		b.pool.Drop(clientquery.RoleWorker)
	}
}

// runReferenceUpdate refreshes the client and channel snapshots through
// the reference session and appends the client snapshot CSV.
func (b *TS3Bot) runReferenceUpdate(ref querySession) {
	entries, err := ref.ClientList(clientquery.ClientListOpts{UID: true, IP: true})
	if err != nil {
		log.Printf("[worker] reference clientlist: %v", err)
		if clientquery.IsConnectionError(err) {
			b.pool.Drop(clientquery.RoleReference)
		}
		return
	}

	snapshot := make([]ClientRecord, 0, len(entries))
	rows := make([]activitylog.ClientRow, 0, len(entries))
	for _, e := range entries {
		rec := ClientRecord{
			Clid:     atoi(e["clid"]),
			Nickname: e["client_nickname"],
			UID:      e["client_unique_identifier"],
			IP:       e["connection_client_ip"],
			Cid:      atoi(e["cid"]),
		}
		snapshot = append(snapshot, rec)
		rows = append(rows, activitylog.ClientRow{
			Clid:     strconv.Itoa(rec.Clid),
			Nickname: rec.Nickname,
			UID:      rec.UID,
			IP:       rec.IP,
		})
	}
	b.clients.ReplaceOnline(snapshot)

	channels, err := ref.ChannelList()
	if err != nil {
		log.Printf("[worker] reference channellist: %v", err)
		if clientquery.IsConnectionError(err) {
			b.pool.Drop(clientquery.RoleReference)
		}
		return
	}
	names := make(map[int]string, len(channels))
	for _, c := range channels {
		names[atoi(c["cid"])] = c["channel_name"]
	}
	b.channels.ReplaceAll(names)

	if b.settings.ClientsLogPath != "" {
		if err := activitylog.AppendClientSnapshot(b.settings.ClientsLogPath, rows); err != nil {
			log.Printf("[worker] client snapshot log: %v", err)
		}
	}
}

// runChannelSweep moves clients out of locked channels into the default
// channel.
func (b *TS3Bot) runChannelSweep(w querySession) {
	locked := b.locks.List()
	if len(locked) == 0 || b.settings.DefaultChannelID == 0 {
		return
	}
	lockedSet := make(map[int]bool, len(locked))
	for _, cid := range locked {
		lockedSet[cid] = true
	}

	for _, rec := range b.clients.Online() {
		if !lockedSet[rec.Cid] {
			continue
		}
		if err := w.ClientMove(b.settings.DefaultChannelID, rec.Clid); err != nil {
			log.Printf("[worker] sweep clid=%d: %v", rec.Clid, err)
			if clientquery.IsConnectionError(err) {
				b.pool.Drop(clientquery.RoleWorker)
				return
			}
			continue
		}
		b.clients.Upsert(ClientRecord{Clid: rec.Clid, Cid: b.settings.DefaultChannelID})
	}
}
