package bot

import (
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/HEchternacht/rollabot/internal/activitylog"
	"github.com/HEchternacht/rollabot/internal/clientquery"
)

// notificationKind is the decoded event type. String-prefix routing is
// confined to decode(); everything after it switches on the enum.
type notificationKind int

const (
	kindUnknown notificationKind = iota
	kindTextMessage
	kindClientEntered
	kindClientLeft
	kindClientMoved
	kindClientUpdated
	kindChannelEdited
)

func decodeKind(typ string) notificationKind {
	switch typ {
	case "notifytextmessage":
		return kindTextMessage
	case "notifycliententerview":
		return kindClientEntered
	case "notifyclientleftview":
		return kindClientLeft
	case "notifyclientmoved":
		return kindClientMoved
	case "notifyclientupdated":
		return kindClientUpdated
	case "notifychanneledited":
		return kindChannelEdited
	default:
		return kindUnknown
	}
}

// runDispatcher blocks on the event session's notification stream and
// routes every payload. Waits are bounded by EventTimeout so the running
// flag is rechecked on a quiet stream; it never terminates on its own
// errors.
func (b *TS3Bot) runDispatcher() {
	wait := b.settings.EventTimeout
	if wait <= 0 {
		wait = 3 * time.Second
	}
	backoff := b.settings.ReconnectDelay
	if backoff <= 0 {
		backoff = time.Second
	}

	for b.running.Load() {
		s := b.pool.Get(clientquery.RoleEvent)
		if s == nil || !s.IsAlive() {
			b.sleepInterruptible(backoff)
			continue
		}

		raw, err := s.WaitEvent(wait)
		if err != nil {
			if !b.running.Load() {
				return
			}
			if errors.Is(err, clientquery.ErrTimeout) {
				continue // quiet stream, re-check and wait again
			}
			if clientquery.IsConnectionError(err) {
				log.Printf("[dispatch] event session lost: %v", err)
				b.pool.Drop(clientquery.RoleEvent)
			} else {
				log.Printf("[dispatch] event wait: %v", err)
			}
			b.sleepInterruptible(backoff)
			continue
		}

		b.handleEventPayload(raw)
	}
}

// handleEventPayload splits a possibly concatenated batch and processes
// each notification independently: one malformed item never aborts the
// rest of the batch.
func (b *TS3Bot) handleEventPayload(raw string) {
	for _, item := range clientquery.SplitBatch(raw) {
		if err := b.handleNotification(item); err != nil {
			log.Printf("[dispatch] notification %q: %v", firstToken(item), err)
		}
	}
}

func (b *TS3Bot) handleNotification(raw string) error {
	typ := clientquery.NotificationType(raw)
	if typ == "" {
		log.Printf("[dispatch] non-notification payload dropped: %.60s", raw)
		return nil
	}

	// duplicate delivery guard, applied before any routing
	if b.dedup.Drop(raw) {
		return nil
	}

	fields := firstEntry(raw, typ)

	switch decodeKind(typ) {
	case kindTextMessage:
		b.handleTextMessage(fields)
	case kindClientEntered:
		b.handleClientEntered(fields)
	case kindClientLeft:
		b.handleClientLeft(fields)
	case kindClientMoved:
		b.handleClientMoved(fields)
	case kindClientUpdated:
		b.handleClientUpdated(fields)
	default:
		// channel edits and anything unrecognized: no log row, no task
	}
	return nil
}

// handleTextMessage enqueues a chat command unless the sender is ignored.
// Fire-and-forget: the dispatcher never waits on the command's result.
func (b *TS3Bot) handleTextMessage(fields map[string]string) {
	msg := strings.TrimSpace(fields["msg"])
	nickname := fields["invokername"]
	clid := atoi(fields["invokerid"])
	if msg == "" {
		return
	}
	if b.ignoreSender(nickname) {
		return
	}
	if b.settings.Debug {
		log.Printf("[dispatch] [%s] %s", nickname, msg)
	}
	b.queue.Push(Task{Kind: TaskChatCommand, Msg: msg, Clid: clid, Nickname: nickname})
}

// ignoreSender filters the helper bot and our own echo.
func (b *TS3Bot) ignoreSender(nickname string) bool {
	if nickname == "" {
		return false
	}
	if b.settings.IgnoreNickname != "" && strings.Contains(nickname, b.settings.IgnoreNickname) {
		return true
	}
	return nickname == b.settings.Nickname
}

func (b *TS3Bot) handleClientEntered(fields map[string]string) {
	clid := atoi(fields["clid"])
	rec := ClientRecord{
		Clid:     clid,
		Nickname: fields["client_nickname"],
		UID:      fields["client_unique_identifier"],
		Cid:      atoi(fields["ctid"]),
	}
	b.clients.Upsert(rec)
	b.clients.SetOnline(clid, true)
	b.logActivity("cliententerview", clid,
		activitylog.ClientInfo{Nickname: rec.Nickname, UID: rec.UID},
		map[string]string{"detail": "connected"})
}

func (b *TS3Bot) handleClientLeft(fields map[string]string) {
	clid := atoi(fields["clid"])
	rec, _ := b.clients.Get(clid) // record is retained for attribution
	b.clients.SetOnline(clid, false)
	b.logActivity("clientleftview", clid,
		activitylog.ClientInfo{Nickname: rec.Nickname, UID: rec.UID, IP: rec.IP},
		map[string]string{"detail": "disconnected"})
}

func (b *TS3Bot) handleClientMoved(fields map[string]string) {
	clid := atoi(fields["clid"])
	from := atoi(fields["cfid"])
	to := atoi(fields["ctid"])
	rec, _ := b.clients.Get(clid)
	b.clients.Upsert(ClientRecord{Clid: clid, Cid: to})
	detail := "moved from " + b.channels.Name(from) + " to " + b.channels.Name(to)
	b.logActivity("clientmoved", clid,
		activitylog.ClientInfo{Nickname: rec.Nickname, UID: rec.UID, IP: rec.IP},
		map[string]string{"detail": detail})
}

// handleClientUpdated acts only on nickname and mute changes. First match
// wins: nickname, input mute, input unmute, output mute, output unmute.
func (b *TS3Bot) handleClientUpdated(fields map[string]string) {
	clid := atoi(fields["clid"])
	newNick, hasNick := fields["client_nickname"]
	inMute, hasIn := fields["client_input_muted"]
	outMute, hasOut := fields["client_output_muted"]
	if !hasNick && !hasIn && !hasOut {
		return
	}

	old, _ := b.clients.Get(clid)

	var detail string
	switch {
	case hasNick && newNick != "" && newNick != old.Nickname:
		detail = "nickname changed from " + old.Nickname + " to " + newNick
		b.clients.Upsert(ClientRecord{Clid: clid, Nickname: newNick})
	case hasIn && inMute == "1":
		detail = "muted input"
	case hasIn && inMute == "0":
		detail = "unmuted input"
	case hasOut && outMute == "1":
		detail = "muted output"
	case hasOut && outMute == "0":
		detail = "unmuted output"
	default:
		return
	}

	rec, _ := b.clients.Get(clid)
	b.logActivity("clientupdated", clid,
		activitylog.ClientInfo{Nickname: rec.Nickname, UID: rec.UID, IP: rec.IP},
		map[string]string{"detail": detail})
}

// firstEntry parses the payload after the type token and returns its first
// field map.
func firstEntry(raw, typ string) map[string]string {
	rest := strings.TrimSpace(strings.TrimPrefix(raw, typ))
	entries := clientquery.ParseLine(rest)
	if len(entries) == 0 {
		return map[string]string{}
	}
	return entries[0]
}

func firstToken(s string) string {
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	return s
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
