package bot

import (
	"log"
	"time"

	"github.com/HEchternacht/rollabot/internal/clientquery"
)

// runSupervisor is the main watchdog loop: once per tick it checks every
// session slot and repairs dead ones, and every couple of minutes runs the
// lighter keepalive/reattach sweep. Repeated failures are logged and
// retried forever; the process never aborts over a broken session.
func (b *TS3Bot) runSupervisor() {
	t := time.NewTicker(supervisorTick)
	defer t.Stop()

	lastAttempt := map[clientquery.Role]time.Time{}
	var lastSweep time.Time

	for {
		select {
		case <-b.stopCh:
			return
		case <-t.C:
		}

		for _, role := range clientquery.Roles {
			if !b.running.Load() {
				return
			}
			b.ensureSession(role, lastAttempt)
		}

		if time.Since(lastSweep) >= healthSweepInterval {
			lastSweep = time.Now()
			b.healthSweep()
		}
	}
}

// ensureSession repairs one role slot. Reconnect attempts per role are
// gated to at least reconnectGate apart. Only the general role escalates
// to a client process restart, and only on refused-class failures.
func (b *TS3Bot) ensureSession(role clientquery.Role, lastAttempt map[clientquery.Role]time.Time) {
	if s := b.pool.Get(role); s != nil && s.IsAlive() {
		return
	}
	if time.Since(lastAttempt[role]) < reconnectGate {
		return
	}
	lastAttempt[role] = time.Now()

	s, err := b.connect(role)
	if err == nil {
		b.installSession(role, s)
		return
	}
	log.Printf("[supervisor] %s connect failed: %v", role, err)

	if role != clientquery.RoleGeneral || b.proc == nil || !clientquery.IsRefusedError(err) {
		return
	}

	// The port refused us. If the client process is demonstrably alive,
	// give direct reconnects a few more chances before bouncing it.
	if b.proc.IsRunning() {
		for i := 0; i < 3 && b.running.Load(); i++ {
			b.sleepInterruptible(2 * time.Second)
			if s, err = b.connect(role); err == nil {
				b.installSession(role, s)
				return
			}
		}
		log.Printf("[supervisor] client alive but query port dead after retries: %v", err)
	}

	if b.proc.Restart() {
		log.Println("[supervisor] client restarted, waiting for it to come up")
		b.sleepInterruptible(60 * time.Second)
	} else {
		b.sleepInterruptible(5 * time.Second)
	}
	if !b.running.Load() {
		return
	}
	if s, err = b.connect(role); err == nil {
		b.installSession(role, s)
	} else {
		log.Printf("[supervisor] %s reconnect after restart failed: %v", role, err)
	}
}

func (b *TS3Bot) installSession(role clientquery.Role, s querySession) {
	b.pool.Replace(role, s)
	log.Printf("[supervisor] %s session connected", role)

	if role == clientquery.RoleGeneral && !b.initialized.Swap(true) {
		b.firstGeneralInit(s)
	}
}

// firstGeneralInit runs once on the very first successful general
// connection: activity log retention cleanup plus an initial
// client/channel snapshot so state exists before the first scheduled
// reference cycle.
func (b *TS3Bot) firstGeneralInit(s querySession) {
	if b.activity != nil {
		if err := b.activity.CleanupOldEntries(activityRetention); err != nil {
			log.Printf("[supervisor] activity cleanup: %v", err)
		}
	}
	b.runReferenceUpdate(s)
	log.Println("[supervisor] initial snapshot loaded")
}

// healthSweep is the cheap periodic check: keepalive on every live
// session, and a voice-server reattach for sessions that answer but sit
// detached. The event and worker sessions only get the keepalive, which
// is write-side: the dispatcher owns the event session's reads and the
// worker thread owns the worker session's (it drains helper-bot replies
// there). A whoami probe from this thread would contend for the same
// reader.
func (b *TS3Bot) healthSweep() {
	for _, role := range clientquery.Roles {
		s := b.pool.Get(role)
		if s == nil || !s.IsAlive() {
			continue
		}

		if err := s.SendKeepalive(); err != nil {
			log.Printf("[supervisor] keepalive %s: %v", role, err)
			if clientquery.IsConnectionError(err) {
				b.pool.Drop(role)
			}
			continue
		}

		if role == clientquery.RoleEvent || role == clientquery.RoleWorker {
			continue
		}

		attached, err := s.Attached()
		if err != nil {
			if clientquery.IsConnectionError(err) {
				log.Printf("[supervisor] %s health probe: %v", role, err)
				b.pool.Drop(role)
			}
			continue
		}
		if !attached && b.settings.ServerAddress != "" {
			log.Printf("[supervisor] %s detached from voice server, reattaching", role)
			if err := s.ConnectServer(); err != nil {
				log.Printf("[supervisor] %s reattach: %v", role, err)
			}
		}
	}
}
