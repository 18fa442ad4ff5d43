package bot

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/HEchternacht/rollabot/internal/clientquery"
)

// processCommand turns an incoming chat message into a response. The
// session is the worker's: every protocol call a command makes runs on
// it. Business errors come back as user-facing text; a returned error
// means the command itself failed and the caller decides whether the
// session is still usable.
func (b *TS3Bot) processCommand(s querySession, task Task) (string, error) {
	msg := strings.TrimSpace(task.Msg)

	switch {
	case strings.HasPrefix(msg, "!mp"):
		body := strings.TrimSpace(strings.TrimPrefix(msg, "!mp"))
		if err := b.masspoke(s, fmt.Sprintf("%s te cutucou: %s", task.Nickname, body)); err != nil {
			return "", err
		}
		return "Poking all clients...", nil

	case strings.HasPrefix(msg, "!hunted add"):
		target := strings.TrimSpace(strings.TrimPrefix(msg, "!hunted add"))
		if target == "" {
			return "Usage: !hunted add <name>", nil
		}
		return b.addHunted(s, target)

	case strings.HasPrefix(msg, "!snapshot"):
		return b.snapshot(s)

	case strings.HasPrefix(msg, "!warstats"):
		if b.guild == nil {
			return "War stats not configured.", nil
		}
		return b.guild.FormatStats(), nil

	case strings.HasPrefix(msg, "!online"):
		return fmt.Sprintf("%d clients online.", b.clients.OnlineCount()), nil

	case strings.HasPrefix(msg, "!exp"):
		return b.expCommand(task)

	case strings.HasPrefix(msg, "!lock"):
		return b.lockCommand(msg, false)

	case strings.HasPrefix(msg, "!unlock"):
		return b.lockCommand(msg, true)

	case strings.HasPrefix(msg, "!help"):
		return "Commands: !mp <msg>, !hunted add <name>, !snapshot, !warstats, " +
			"!online, !exp on [min], !exp off, !lock <cid>, !unlock <cid>", nil

	case strings.HasPrefix(msg, "!"):
		return "Unknown command: " + msg, nil
	}

	// plain chat, not addressed to the bot
	return "", nil
}

// masspoke pokes every currently online client.
func (b *TS3Bot) masspoke(s querySession, msg string) error {
	entries, err := s.ClientList(clientquery.ClientListOpts{})
	if err != nil {
		return err
	}
	for _, e := range entries {
		clid := atoi(e["clid"])
		if clid == 0 {
			continue
		}
		if err := s.ClientPoke(clid, msg); err != nil {
			if clientquery.IsConnectionError(err) {
				return err
			}
			log.Printf("[commands] masspoke clid=%d: %v", clid, err)
		}
	}
	return nil
}

// addHunted relays the request to the helper bot and drains its replies
// into the log.
func (b *TS3Bot) addHunted(s querySession, target string) (string, error) {
	entries, err := s.ClientList(clientquery.ClientListOpts{})
	if err != nil {
		return "", err
	}
	xbotClid := 0
	for _, e := range entries {
		if strings.Contains(e["client_nickname"], b.settings.IgnoreNickname) {
			xbotClid = atoi(e["clid"])
			break
		}
	}
	if xbotClid == 0 {
		return b.settings.IgnoreNickname + " not found", nil
	}

	if err := s.SendTextMessage(clientquery.TargetClient, xbotClid, "!hunted add "+target); err != nil {
		return "", err
	}

	for i := 0; i < b.settings.ResponseWaitLines; i++ {
		raw, werr := s.WaitEvent(b.settings.ResponseWaitTimeout)
		if werr != nil {
			break
		}
		log.Printf("[commands] hunted response: %s", raw)
	}

	return fmt.Sprintf("Added %s to hunted list.", target), nil
}

// snapshot renders the full clientlist with every optional column.
func (b *TS3Bot) snapshot(s querySession) (string, error) {
	entries, err := s.ClientList(clientquery.SnapshotOpts())
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s %s uid=%s ip=%s",
			e["clid"], e["client_nickname"],
			e["client_unique_identifier"], e["connection_client_ip"]))
	}
	if len(lines) == 0 {
		return "No clients connected.", nil
	}
	return strings.Join(lines, " | "), nil
}

// expCommand manages the sender's exp-notification registration, keyed by
// the durable uid so it survives reconnects and renames.
func (b *TS3Bot) expCommand(task Task) (string, error) {
	rec, ok := b.clients.Get(task.Clid)
	if !ok || rec.UID == "" {
		return "Can't resolve your identity yet, try again in a minute.", nil
	}

	fields := strings.Fields(task.Msg)
	if len(fields) < 2 {
		return "Usage: !exp on [min_gain] | !exp off", nil
	}

	switch fields[1] {
	case "on":
		var min int64
		if len(fields) >= 3 {
			v, err := strconv.ParseInt(fields[2], 10, 64)
			if err != nil || v < 0 {
				return "Minimum gain must be a non-negative number.", nil
			}
			min = v
		}
		if err := b.regs.Add(rec.UID, min); err != nil {
			return "", err
		}
		if min > 0 {
			return fmt.Sprintf("Exp notifications on (min gain %d).", min), nil
		}
		return "Exp notifications on.", nil
	case "off":
		if err := b.regs.Remove(rec.UID); err != nil {
			return "", err
		}
		return "Exp notifications off.", nil
	default:
		return "Usage: !exp on [min_gain] | !exp off", nil
	}
}

// lockCommand toggles the lockdown flag on a channel. Locked channels are
// emptied into the default channel by the scheduled sweep.
func (b *TS3Bot) lockCommand(msg string, unlock bool) (string, error) {
	fields := strings.Fields(msg)
	if len(fields) < 2 {
		return "Usage: " + fields[0] + " <cid>", nil
	}
	cid, err := strconv.Atoi(fields[1])
	if err != nil || cid <= 0 {
		return "Channel id must be a positive number.", nil
	}

	if unlock {
		b.locks.Unlock(cid)
		return fmt.Sprintf("Unlocked %s.", b.channels.Name(cid)), nil
	}
	if b.settings.DefaultChannelID == 0 {
		return "Lockdown needs TS3_DEFAULT_CHANNEL configured.", nil
	}
	b.locks.Lock(cid)
	return fmt.Sprintf("Locked %s, clients will be moved out.", b.channels.Name(cid)), nil
}
