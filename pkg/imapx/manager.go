package imapx

import (
	"context"
	"log"
	"sync"
	"time"
)

// ConfigLoader resolves the IMAP settings for a user, typically by
// loading and decrypting stored credentials.
type ConfigLoader func(ctx context.Context, userID string) (Config, error)

// Manager owns at most one IdleConnection per user
type Manager struct {
	dial           Dialer
	processor      MailboxProcessor
	loadConfig     ConfigLoader
	idleTimeout    time.Duration
	reconnectDelay time.Duration

	mu    sync.Mutex
	conns map[string]*IdleConnection
}

func NewManager(dial Dialer, processor MailboxProcessor, loadConfig ConfigLoader, idleTimeout, reconnectDelay time.Duration) *Manager {
	return &Manager{
		dial:           dial,
		processor:      processor,
		loadConfig:     loadConfig,
		idleTimeout:    idleTimeout,
		reconnectDelay: reconnectDelay,
		conns:          make(map[string]*IdleConnection),
	}
}

// StartIdle starts (or restarts) the IDLE connection for a user
func (m *Manager) StartIdle(ctx context.Context, userID string) error {
	cfg, err := m.loadConfig(ctx, userID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked(userID)

	conn := NewIdleConnection(userID, cfg, m.dial, m.processor, m.idleTimeout, m.reconnectDelay)
	m.conns[userID] = conn
	go conn.Run(ctx)

	log.Printf("[IMAP] Started IDLE connection for user %s", userID)
	return nil
}

// StopIdle stops the user's IDLE connection if one exists
func (m *Manager) StopIdle(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(userID)
}

// Active reports whether the user currently has a managed connection
func (m *Manager) Active(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conns[userID]
	return ok
}

// StopAll stops every connection, used during shutdown
func (m *Manager) StopAll() {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]*IdleConnection)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for userID, conn := range conns {
		wg.Add(1)
		go func(userID string, conn *IdleConnection) {
			defer wg.Done()
			conn.Stop()
		}(userID, conn)
	}
	wg.Wait()

	if len(conns) > 0 {
		log.Printf("[IMAP] Stopped %d IDLE connection(s)", len(conns))
	}
}

func (m *Manager) stopLocked(userID string) {
	if conn, ok := m.conns[userID]; ok {
		delete(m.conns, userID)
		conn.Stop()
	}
}
