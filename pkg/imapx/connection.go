package imapx

import (
	"context"
	"log"
	"sync"
	"time"
)

// MailboxProcessor handles the mailbox contents after a wakeup. The
// processor owns change detection and analysis; the connection only
// owns the IDLE lifecycle.
type MailboxProcessor interface {
	ProcessMailbox(ctx context.Context, userID string, sess Session) error
}

// IdleConnection maintains one long-lived IMAP connection for a user,
// cycling IDLE within the RFC 2177 ceiling and reconnecting with a
// fixed delay after failures.
type IdleConnection struct {
	userID         string
	cfg            Config
	dial           Dialer
	processor      MailboxProcessor
	idleTimeout    time.Duration
	reconnectDelay time.Duration

	mu   sync.Mutex
	sess Session

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewIdleConnection(userID string, cfg Config, dial Dialer, processor MailboxProcessor, idleTimeout, reconnectDelay time.Duration) *IdleConnection {
	return &IdleConnection{
		userID:         userID,
		cfg:            cfg,
		dial:           dial,
		processor:      processor,
		idleTimeout:    idleTimeout,
		reconnectDelay: reconnectDelay,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Run drives the connection until Stop is called. It dials, checks the
// mailbox once to catch up, then cycles IDLE. Each failure closes the
// connection and retries after the reconnect delay.
func (c *IdleConnection) Run(ctx context.Context) {
	defer close(c.done)

	for {
		if c.stopped() {
			return
		}

		sess, err := c.dial(c.cfg)
		if err != nil {
			log.Printf("[IMAP] Connect failed for user %s: %v", c.userID, err)
			if !c.sleep(c.reconnectDelay) {
				return
			}
			continue
		}

		c.setSession(sess)

		if !sess.SupportsIdle() {
			// Poller covers this account; a held connection buys nothing
			log.Printf("[IMAP] Server for user %s does not support IDLE, closing connection", c.userID)
			c.closeSession()
			return
		}

		// Catch up on anything that arrived while disconnected
		if err := c.processor.ProcessMailbox(ctx, c.userID, sess); err != nil {
			log.Printf("[IMAP] Initial mailbox check failed for user %s: %v", c.userID, err)
		}

		if err := c.idleLoop(ctx, sess); err != nil {
			log.Printf("[IMAP] Connection lost for user %s: %v", c.userID, err)
		}

		c.closeSession()

		if c.stopped() {
			return
		}
		if !c.sleep(c.reconnectDelay) {
			return
		}
	}
}

// idleLoop cycles IDLE on one session. A timeout re-issues IDLE on the
// same connection; only an error forces a reconnect.
func (c *IdleConnection) idleLoop(ctx context.Context, sess Session) error {
	for {
		if c.stopped() {
			return nil
		}

		if err := sess.StartIdle(); err != nil {
			return err
		}

		notified, err := sess.WaitForNotification(c.idleTimeout)
		if err != nil {
			if c.stopped() {
				return nil
			}
			return err
		}

		if stopErr := sess.StopIdle(); stopErr != nil {
			if c.stopped() {
				return nil
			}
			return stopErr
		}

		if !notified {
			continue
		}

		if c.stopped() {
			return nil
		}

		if err := c.processor.ProcessMailbox(ctx, c.userID, sess); err != nil {
			log.Printf("[IMAP] Mailbox check failed for user %s: %v", c.userID, err)
		}
	}
}

// Stop signals the loop and force-closes the current session so any
// blocked wait returns. It waits briefly for the loop to exit.
func (c *IdleConnection) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	c.closeSession()

	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		log.Printf("[IMAP] Timed out waiting for connection of user %s to stop", c.userID)
	}
}

func (c *IdleConnection) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

// sleep waits for d unless Stop is called first
func (c *IdleConnection) sleep(d time.Duration) bool {
	select {
	case <-c.stop:
		return false
	case <-time.After(d):
		return true
	}
}

func (c *IdleConnection) setSession(sess Session) {
	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()
}

func (c *IdleConnection) closeSession() {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	c.mu.Unlock()
	if sess != nil {
		_ = sess.Close()
	}
}
