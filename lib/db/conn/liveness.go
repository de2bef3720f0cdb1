package conn

import (
	"context"
	sqldriver "database/sql/driver"
	"time"

	"github.com/ValentinKolb/dbKV/lib/db"
)

// ProbeTimeout bounds a native liveness ping.
const ProbeTimeout = 10 * time.Second

// Liveness checks whether a held connection is still usable.
type Liveness interface {
	// Name identifies the strategy in logs and DatabaseInfo.
	Name() string
	// Alive returns nil if the connection can serve statements.
	Alive(c *Connection) error
}

// nativeLiveness uses the driver's own ping.
type nativeLiveness struct{}

func (nativeLiveness) Name() string { return "ping" }

func (nativeLiveness) Alive(c *Connection) error {
	ctx, cancel := context.WithTimeout(c.ctx, ProbeTimeout)
	defer cancel()
	return c.conn.PingContext(ctx)
}

// queryLiveness runs a point lookup of the heartbeat key. A missing row still
// counts as alive; only a failing statement does not.
type queryLiveness struct {
	key string
}

func (queryLiveness) Name() string { return "query" }

func (l queryLiveness) Alive(c *Connection) error {
	_, _, err := c.Lookup(db.TablePwmMeta, l.key)
	return err
}

// selectLiveness picks the native ping if the raw driver connection supports
// it and falls back to the heartbeat lookup otherwise.
func selectLiveness(c *Connection, heartbeatKey string) Liveness {
	native := false
	_ = c.conn.Raw(func(driverConn any) error {
		_, native = driverConn.(sqldriver.Pinger)
		return nil
	})
	if native {
		return nativeLiveness{}
	}
	return queryLiveness{key: heartbeatKey}
}
