package consoleauth

import "net/http"

// Client bundles the wired session subsystem. Obtain one through the
// Builder; the zero value is not usable.
type Client struct {
	config    Config
	store     *Store
	transport *Transport
	api       API
	http      *http.Client
	guard     *Guard
	monitor   *InactivityMonitor
}

// Store returns the session state machine.
func (c *Client) Store() *Store { return c.store }

// HTTP returns the client whose transport attaches bearer tokens and
// coordinates renewal. Use it for every console API call.
func (c *Client) HTTP() *http.Client { return c.http }

// API returns the session gateway.
func (c *Client) API() API { return c.api }

// Guard returns the route guard.
func (c *Client) Guard() *Guard { return c.guard }

// Monitor returns the inactivity monitor. Call its Init to start the
// background tick.
func (c *Client) Monitor() *InactivityMonitor { return c.monitor }

// Config returns a copy of the effective configuration.
func (c *Client) Config() Config { return cloneConfig(c.config) }

// Close stops the inactivity monitor. Safe to call more than once.
func (c *Client) Close() {
	c.monitor.Close()
}
