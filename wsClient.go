package main

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second    // Time allowed to read the next pong message from the peer
	pingPeriod = (pongWait * 9) / 10 // Ping period must be less than pongWait
)

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	once sync.Once
	quit chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		quit: make(chan struct{}),
	}
}

func (c *Client) writeJSON(message interface{}) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(message)
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.quit)
		c.conn.Close()
	})
}

func (c *Client) unregister() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	case <-c.quit:
	}
}

// readPump discards client messages, it's needed for the pong handler to run
func (c *Client) readPump() {
	defer c.unregister()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) pingClient() {
	defer c.unregister()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return // Connection is broken, close it
			}
		case <-c.quit:
			return
		}
	}
}
