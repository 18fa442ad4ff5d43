package bot

import (
	"errors"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HEchternacht/rollabot/internal/activitylog"
	"github.com/HEchternacht/rollabot/internal/clientquery"
	"github.com/HEchternacht/rollabot/internal/guildapi"
	"github.com/HEchternacht/rollabot/internal/registry"
)

// Fixed cadences of the recurring tasks and the supervisor.
const (
	referenceInterval   = 5 * time.Minute
	guildExpInterval    = 90 * time.Second
	channelMoveInterval = 2 * time.Minute
	warStatsInterval    = 3 * time.Minute
	healthSweepInterval = 2 * time.Minute
	supervisorTick      = time.Second
	reconnectGate       = 10 * time.Second
	dedupWindow         = time.Second
	activityRetention   = 30 * 24 * time.Hour
	shutdownJoinWait    = 5 * time.Second
)

// processManager is the external client binary's control surface.
type processManager interface {
	IsRunning() bool
	Restart() bool
}

// ActivityEvent is pushed to the panel hook for every logged activity.
type ActivityEvent struct {
	Type     string `json:"type"`
	Clid     int    `json:"clid"`
	Nickname string `json:"nickname"`
	Detail   string `json:"detail"`
}

// TS3Bot is the long-running service. Create with New, wire collaborators
// with the Set methods, then Start/Stop.
type TS3Bot struct {
	settings *Settings

	pool     *sessionPool
	queue    *taskQueue
	pokes    *pokeQueue
	clients  *clientStore
	channels *channelStore
	locks    *lockSet
	dedup    *dedupFilter

	activity *activitylog.Logger
	guild    *guildapi.Client
	regs     *registry.Registry
	proc     processManager
	connect  connectFunc

	onActivity func(ActivityEvent)

	running     atomic.Bool
	initialized atomic.Bool // one-time general-session init done
	stopCh      chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex // guards Start/Stop transitions
	startedAt   time.Time
}

// New builds an unstarted bot around its settings.
func New(settings *Settings) *TS3Bot {
	b := &TS3Bot{
		settings: settings,
		pool:     newSessionPool(),
		queue:    newTaskQueue(),
		pokes:    newPokeQueue(),
		clients:  newClientStore(),
		channels: newChannelStore(),
		locks:    newLockSet(),
		dedup:    newDedupFilter(dedupWindow),
	}
	b.connect = b.dialSession
	return b
}

// SetProcessManager wires the external client process control. Optional:
// without it, refused connections are retried but never escalate.
func (b *TS3Bot) SetProcessManager(pm processManager) { b.proc = pm }

// SetGuildClient wires the external statistics collaborator.
func (b *TS3Bot) SetGuildClient(c *guildapi.Client) { b.guild = c }

// SetActivityHook registers a callback receiving every logged activity
// event (the panel's live feed). Must be set before Start.
func (b *TS3Bot) SetActivityHook(fn func(ActivityEvent)) { b.onActivity = fn }

func (b *TS3Bot) dialSession(role clientquery.Role) (querySession, error) {
	return clientquery.Connect(clientquery.Config{
		Addr:          b.settings.ClientQueryAddr,
		APIKey:        b.settings.APIKey,
		ServerAddress: b.settings.ServerAddress,
		Nickname:      b.settings.Nickname,
	}, role)
}

// Start opens the activity log, loads the registration file and spawns
// the loops: dispatcher, worker, scheduler, stats fetcher, supervisor.
func (b *TS3Bot) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.settings == nil {
		return errors.New("bot: settings not set")
	}
	if b.running.Load() {
		return errors.New("bot: already running")
	}

	al, err := activitylog.Open(b.settings.ActivityLogPath)
	if err != nil {
		return err
	}
	b.activity = al

	regs, err := registry.Load(b.settings.RegistrationsPath)
	if err != nil {
		al.Close()
		return err
	}
	b.regs = regs

	b.stopCh = make(chan struct{})
	b.queue = newTaskQueue()
	b.running.Store(true)
	b.startedAt = time.Now()

	for name, loop := range map[string]func(){
		"dispatcher": b.runDispatcher,
		"worker":     b.runWorker,
		"scheduler":  b.runScheduler,
		"warstats":   b.runStatsFetcher,
		"supervisor": b.runSupervisor,
	} {
		b.wg.Add(1)
		go func(name string, loop func()) {
			defer b.wg.Done()
			loop()
			log.Printf("[bot] %s loop stopped", name)
		}(name, loop)
	}

	log.Printf("[bot] started, clientquery at %s", b.settings.ClientQueryAddr)
	return nil
}

// Stop signals every loop, tears the sessions down and joins with a
// timeout. In-flight queue items are lost by design.
func (b *TS3Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running.Swap(false) {
		return
	}
	close(b.stopCh)
	b.queue.Close()
	b.pool.CloseAll() // unblocks the dispatcher's event wait

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownJoinWait):
		log.Println("[bot] shutdown join timed out; loops are daemonic, proceeding")
	}

	if b.activity != nil {
		b.activity.Close()
	}
	log.Println("[bot] stopped")
}

// Running reports whether the loops are live.
func (b *TS3Bot) Running() bool { return b.running.Load() }

// sleepInterruptible waits d or until shutdown, whichever is first.
func (b *TS3Bot) sleepInterruptible(d time.Duration) {
	select {
	case <-b.stopCh:
	case <-time.After(d):
	}
}

// logActivity writes one activity row and feeds the panel hook.
func (b *TS3Bot) logActivity(eventType string, clid int, info activitylog.ClientInfo, details map[string]string) {
	if b.activity != nil {
		b.activity.LogEvent(eventType, strconv.Itoa(clid), info, details)
	}
	if b.onActivity != nil {
		b.onActivity(ActivityEvent{
			Type:     eventType,
			Clid:     clid,
			Nickname: info.Nickname,
			Detail:   details["detail"],
		})
	}
}

// Status is the panel's snapshot of the bot.
type Status struct {
	Running       bool            `json:"running"`
	StartedAt     time.Time       `json:"started_at"`
	Sessions      map[string]bool `json:"sessions"`
	QueueLen      int             `json:"queue_len"`
	OnlineClients int             `json:"online_clients"`
	KnownChannels int             `json:"known_channels"`
	PendingPokes  int             `json:"pending_pokes"`
	Registered    int             `json:"registered_uids"`
}

// Status builds the current snapshot. Safe to call from any goroutine.
func (b *TS3Bot) Status() Status {
	st := Status{
		Running:       b.running.Load(),
		StartedAt:     b.startedAt,
		Sessions:      b.pool.Alive(),
		QueueLen:      b.queue.Len(),
		OnlineClients: b.clients.OnlineCount(),
		KnownChannels: b.channels.Len(),
		PendingPokes:  b.pokes.Len(),
	}
	if b.regs != nil {
		st.Registered = b.regs.Len()
	}
	return st
}
