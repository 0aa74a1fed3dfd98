// Package influxsink writes measurements to an InfluxDB v2 bucket.
package influxsink

import (
	"context"
	"strings"

	"github.com/NotCoffee418/energy_bridge/pkg/config"
	"github.com/NotCoffee418/energy_bridge/pkg/measurement"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"
)

type Sink struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
	log    *logrus.Entry
}

// New creates a sink for the configured org and bucket.
// No request is made until the first Submit.
func New(cfg config.InfluxConfig, log *logrus.Entry) *Sink {
	client := influxdb2.NewClient(ServerURL(cfg.Host), cfg.Token)
	return &Sink{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:    log,
	}
}

// Submit writes m as a single point.
func (s *Sink) Submit(ctx context.Context, m measurement.Measurement) error {
	p := influxdb2.NewPoint(m.Name, nil, m.Fields, m.Time)
	if err := s.writer.WritePoint(ctx, p); err != nil {
		return err
	}
	s.log.WithField("fields", len(m.Fields)).Debug("successfully wrote to influxdb")
	return nil
}

func (s *Sink) Close() {
	s.client.Close()
}

// ServerURL accepts bare host:port as well as a full URL.
func ServerURL(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "http://" + host
}
