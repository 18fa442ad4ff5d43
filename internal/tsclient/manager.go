// Package tsclient supervises the external TeamSpeak client process. The
// bot never talks to the binary directly; it only needs start/stop/restart
// and a pid-file based liveness probe so the reconnect supervisor can tell
// "client crashed" from "client up but query port wedged".
package tsclient

import (
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// RestartCooldown is the floor between two effective restarts. Restart
// requests inside the window are skipped and report false.
const RestartCooldown = 60 * time.Second

// Manager controls one client process through a pid file.
type Manager struct {
	command []string
	workdir string
	pidFile string

	mu          sync.Mutex
	lastRestart time.Time
}

// New builds a manager. An empty command disables starting; Stop and
// IsRunning still work against the pid file.
func New(command []string, workdir, pidFile string) *Manager {
	return &Manager{command: command, workdir: workdir, pidFile: pidFile}
}

func (m *Manager) readPID() int {
	raw, err := os.ReadFile(m.pidFile)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0
	}
	return pid
}

func (m *Manager) writePID(pid int) error {
	return os.WriteFile(m.pidFile, []byte(strconv.Itoa(pid)), 0644)
}

func (m *Manager) clearPID() {
	if err := os.Remove(m.pidFile); err != nil && !os.IsNotExist(err) {
		log.Printf("[tsclient] remove pid file: %v", err)
	}
}

func pidExists(pid int) bool {
	// signal 0 probes existence without delivering anything
	return unix.Kill(pid, 0) == nil
}

// IsRunning reports whether the pid in the pid file is alive.
func (m *Manager) IsRunning() bool {
	pid := m.readPID()
	return pid > 0 && pidExists(pid)
}

// Start launches the client unless it is already running. Reports whether
// a process is running afterwards.
func (m *Manager) Start() bool {
	if len(m.command) == 0 {
		log.Println("[tsclient] client command not configured; skipping start")
		return false
	}
	if m.IsRunning() {
		log.Println("[tsclient] client already running")
		return true
	}

	log.Printf("[tsclient] starting client: %s", strings.Join(m.command, " "))
	cmd := exec.Command(m.command[0], m.command[1:]...)
	cmd.Dir = m.workdir
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		log.Printf("[tsclient] start failed: %v", err)
		return false
	}
	if err := m.writePID(cmd.Process.Pid); err != nil {
		log.Printf("[tsclient] write pid file: %v", err)
	}
	// reap to avoid a zombie once the client exits
	go func() { _ = cmd.Wait() }()
	return true
}

// Stop terminates the client: SIGTERM, then SIGKILL once the timeout runs
// out. Clears the pid file in every path.
func (m *Manager) Stop(timeout time.Duration) {
	pid := m.readPID()
	if pid == 0 {
		return
	}
	if !pidExists(pid) {
		m.clearPID()
		return
	}

	log.Printf("[tsclient] stopping client pid %d", pid)
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		m.clearPID()
		return
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !pidExists(pid) {
			m.clearPID()
			return
		}
		time.Sleep(200 * time.Millisecond)
	}

	_ = unix.Kill(pid, unix.SIGKILL)
	m.clearPID()
}

// Restart stop-starts the client and reports whether a restart actually
// happened. Calls within the cooldown window are skipped so a flapping
// query port cannot bounce the client in a loop.
func (m *Manager) Restart() bool {
	m.mu.Lock()
	if time.Since(m.lastRestart) < RestartCooldown {
		m.mu.Unlock()
		log.Println("[tsclient] restart skipped: cooldown active")
		return false
	}
	m.lastRestart = time.Now()
	m.mu.Unlock()

	m.Stop(5 * time.Second)
	return m.Start()
}
