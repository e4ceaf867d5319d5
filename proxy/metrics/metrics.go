/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package metrics exposes the live connection registry as Prometheus
// metrics: a scrape-time collector rather than counters updated inline on
// every buffer operation, since the registry a Reactor already walks for
// print_connections is the same data a scrape needs, and rebuilding it from
// scratch on every /metrics request keeps the hot I/O path free of metrics
// bookkeeping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nabbar/sniproxy/proxy/connection"
)

// Registry is the subset of *reactor.Registry the collector needs: read-only
// iteration over live connections. Defined here, not imported from reactor,
// so this package never depends on the reactor package.
type Registry interface {
	Walk(fn func(*connection.Connection))
}

var (
	descConnState = prometheus.NewDesc(
		"sniproxy_connections",
		"Number of live connections currently in each state.",
		[]string{"state"}, nil,
	)
	descBytes = prometheus.NewDesc(
		"sniproxy_half_bytes",
		"Cumulative bytes received or sent by currently-live connections' halves.",
		[]string{"side", "direction"}, nil,
	)
	descBuffered = prometheus.NewDesc(
		"sniproxy_half_buffered_bytes",
		"Bytes currently buffered and not yet flushed, by half.",
		[]string{"side"}, nil,
	)
)

// Collector implements prometheus.Collector by walking a Registry at scrape
// time. It holds no state between scrapes.
type Collector struct {
	reg Registry
}

// NewCollector returns a Collector scraping reg on every Collect call.
func NewCollector(reg Registry) *Collector {
	return &Collector{reg: reg}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descConnState
	ch <- descBytes
	ch <- descBuffered
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	byState := map[string]float64{}
	var clientRecv, clientSent, clientBuf float64
	var serverRecv, serverSent, serverBuf float64

	c.reg.Walk(func(conn *connection.Connection) {
		byState[conn.State().String()]++

		cr, cs, cb := conn.Stats(connection.SideClient)
		clientRecv += float64(cr)
		clientSent += float64(cs)
		clientBuf += float64(cb)

		sr, ss, sb := conn.Stats(connection.SideServer)
		serverRecv += float64(sr)
		serverSent += float64(ss)
		serverBuf += float64(sb)
	})

	for state, n := range byState {
		ch <- prometheus.MustNewConstMetric(descConnState, prometheus.GaugeValue, n, state)
	}

	ch <- prometheus.MustNewConstMetric(descBytes, prometheus.GaugeValue, clientRecv, "client", "recv")
	ch <- prometheus.MustNewConstMetric(descBytes, prometheus.GaugeValue, clientSent, "client", "sent")
	ch <- prometheus.MustNewConstMetric(descBytes, prometheus.GaugeValue, serverRecv, "server", "recv")
	ch <- prometheus.MustNewConstMetric(descBytes, prometheus.GaugeValue, serverSent, "server", "sent")
	ch <- prometheus.MustNewConstMetric(descBuffered, prometheus.GaugeValue, clientBuf, "client")
	ch <- prometheus.MustNewConstMetric(descBuffered, prometheus.GaugeValue, serverBuf, "server")
}
