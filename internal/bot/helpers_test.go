package bot

import (
	"strconv"
	"sync"
	"time"

	"github.com/HEchternacht/rollabot/internal/clientquery"
)

// fakeSession is a scriptable querySession for loop tests.
type fakeSession struct {
	mu   sync.Mutex
	role clientquery.Role

	alive    bool
	attached bool

	clients  []map[string]string
	channels []map[string]string
	events   chan string

	pokes          []string // "clid:msg"
	messages       []string // "clid:msg"
	moves          []string // "cid:clid"
	keepalives     int
	attachedProbes int
	reattaches     int

	pokeErr error
	listErr error
	sendErr error
	moveErr error
}

func newFakeSession(role clientquery.Role) *fakeSession {
	return &fakeSession{
		role:     role,
		alive:    true,
		attached: true,
		events:   make(chan string, 16),
	}
}

func (f *fakeSession) Role() clientquery.Role { return f.role }

func (f *fakeSession) IsAlive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeSession) Close() {
	f.mu.Lock()
	f.alive = false
	f.mu.Unlock()
}

func (f *fakeSession) SendKeepalive() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keepalives++
	return nil
}

func (f *fakeSession) WaitEvent(timeout time.Duration) (string, error) {
	if timeout <= 0 {
		return <-f.events, nil
	}
	select {
	case ev := <-f.events:
		return ev, nil
	case <-time.After(timeout):
		return "", clientquery.ErrTimeout
	}
}

func (f *fakeSession) ClientList(opts clientquery.ClientListOpts) ([]map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.clients, nil
}

func (f *fakeSession) ChannelList() ([]map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels, nil
}

func (f *fakeSession) ClientPoke(clid int, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pokeErr != nil {
		return f.pokeErr
	}
	f.pokes = append(f.pokes, strconv.Itoa(clid)+":"+msg)
	return nil
}

func (f *fakeSession) SendTextMessage(targetmode, target int, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.messages = append(f.messages, strconv.Itoa(target)+":"+msg)
	return nil
}

func (f *fakeSession) ClientMove(cid, clid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.moveErr != nil {
		return f.moveErr
	}
	f.moves = append(f.moves, strconv.Itoa(cid)+":"+strconv.Itoa(clid))
	return nil
}

func (f *fakeSession) Attached() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachedProbes++
	return f.attached, nil
}

func (f *fakeSession) ConnectServer() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reattaches++
	return nil
}

// fakeProc counts restart requests.
type fakeProc struct {
	mu       sync.Mutex
	running  bool
	restarts int
}

func (p *fakeProc) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *fakeProc) Restart() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restarts++
	return true
}

func (p *fakeProc) restartCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.restarts
}

// newTestBot builds an unstarted bot with a closed stop channel so the
// interruptible sleeps return immediately.
func newTestBot(settings *Settings) *TS3Bot {
	if settings == nil {
		settings = &Settings{
			Nickname:            "Rollabot",
			IgnoreNickname:      "x3tBot Auroria",
			ResponseWaitLines:   2,
			ResponseWaitTimeout: 10 * time.Millisecond,
		}
	}
	b := New(settings)
	b.stopCh = make(chan struct{})
	close(b.stopCh)
	b.running.Store(true)
	return b
}
