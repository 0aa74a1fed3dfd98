package livefeed

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"github.com/NotCoffee418/energy_bridge/pkg/measurement"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 60 * time.Second
)

// FeedURL is the websocket address of a bridge live feed at host:port.
func FeedURL(host string) string {
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	return u.String()
}

// Listen subscribes to the feed at host and calls fn for every measurement.
// Lost connections are re-established with exponential backoff until ctx
// is done, at which point Listen returns nil.
func Listen(ctx context.Context, host string, log *logrus.Entry, fn func(measurement.Measurement)) error {
	feed := FeedURL(host)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseRetryDelay
	b.MaxInterval = maxRetryDelay
	b.MaxElapsedTime = 0

	op := func() error {
		log.WithField("url", feed).Info("connecting to live feed")

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		c, _, err := dialer.DialContext(ctx, feed, nil)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}

		log.Info("connected, accepting measurements")
		b.Reset()

		err = receive(ctx, c, log, fn)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		log.WithError(err).Warnf("live feed lost, retrying in %v", wait)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// receive reads measurements from c until the connection breaks or ctx is done.
func receive(ctx context.Context, c *websocket.Conn, log *logrus.Entry, fn func(measurement.Measurement)) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
					log.WithError(err).Debug("failed to send ping")
				}
			case <-ctx.Done():
				c.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				c.Close()
				return
			case <-done:
				c.Close()
				return
			}
		}
	}()

	c.SetReadDeadline(time.Now().Add(readTimeout))
	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			return err
		}
		c.SetReadDeadline(time.Now().Add(readTimeout))

		if messageType != websocket.TextMessage {
			continue
		}
		var m measurement.Measurement
		if err := json.Unmarshal(message, &m); err != nil {
			log.WithError(err).Warn("failed to parse measurement")
			continue
		}
		fn(m)
	}
}
