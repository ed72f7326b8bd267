package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const defaultFlushTimeout = 5 * time.Second

type natsPublisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSDispatcher publishes invitations on <prefix>.<endpoint> for a device
// gateway subscribed on the other side.
type NATSDispatcher struct {
	conn   natsPublisher
	prefix string
}

// ConnectNATS dials the broker with reconnect handling that logs state changes.
func ConnectNATS(url, name string, log *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(c *nats.Conn) {
			log.Info("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: connect nats: %w", err)
	}
	return nc, nil
}

func NewNATSDispatcher(conn natsPublisher, subjectPrefix string) *NATSDispatcher {
	return &NATSDispatcher{conn: conn, prefix: strings.TrimSuffix(subjectPrefix, ".")}
}

func (d *NATSDispatcher) Dispatch(ctx context.Context, endpoint string, inv Invite) error {
	if endpoint == "" || strings.ContainsAny(endpoint, ".*> \t\r\n") {
		return ErrInvalidEndpoint
	}
	body, err := json.Marshal(inv.Data())
	if err != nil {
		return fmt.Errorf("notify: encode invite: %w", err)
	}
	if err := d.conn.Publish(d.prefix+"."+endpoint, body); err != nil {
		return fmt.Errorf("notify: nats publish: %w", err)
	}
	// FlushWithContext rejects contexts without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultFlushTimeout)
		defer cancel()
	}
	if err := d.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("notify: nats flush: %w", err)
	}
	return nil
}
