package main

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/tendermint/tendermint/libs/log"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"
)

const (
	sendTimeout = 10 * time.Second
	// the rpc server closes the connection in the absence of pings
	pingPeriod = (30 * 9 / 10) * time.Second

	appendMethod = "append"
)

// appender sends `append` requests to one node over N websocket connections
// at a fixed rate per connection.
type appender struct {
	Target      string
	Rate        int
	Connections int

	conns       []*websocket.Conn
	connsBroken []bool
	startingWg  sync.WaitGroup
	endingWg    sync.WaitGroup
	stopped     int32

	nextEntry int64
	sent      int64
	accepted  int64
	rejected  int64

	logger log.Logger
}

func newAppender(target string, connections, rate int) *appender {
	return &appender{
		Target:      target,
		Rate:        rate,
		Connections: connections,
		conns:       make([]*websocket.Conn, connections),
		connsBroken: make([]bool, connections),
		logger:      log.NewNopLogger(),
	}
}

// SetLogger lets you set your own logger
func (a *appender) SetLogger(l log.Logger) {
	a.logger = l
}

// Start opens N = `a.Connections` connections to the target and creates read
// and write goroutines for each connection.
func (a *appender) Start() error {
	atomic.StoreInt32(&a.stopped, 0)

	for i := 0; i < a.Connections; i++ {
		c, _, err := connect(a.Target)
		if err != nil {
			return err
		}
		a.conns[i] = c
	}

	a.startingWg.Add(a.Connections)
	a.endingWg.Add(2 * a.Connections)
	for i := 0; i < a.Connections; i++ {
		go a.sendLoop(i)
		go a.receiveLoop(i)
	}

	a.startingWg.Wait()

	return nil
}

// Stop closes the connections.
func (a *appender) Stop() {
	atomic.StoreInt32(&a.stopped, 1)
	a.endingWg.Wait()
	for _, c := range a.conns {
		c.Close()
	}
}

func (a *appender) isStopped() bool {
	return atomic.LoadInt32(&a.stopped) == 1
}

// Stats are the request and response counters so far.
func (a *appender) Stats() (sent, accepted, rejected int64) {
	return atomic.LoadInt64(&a.sent), atomic.LoadInt64(&a.accepted), atomic.LoadInt64(&a.rejected)
}

// receiveLoop reads responses and counts accepted and rejected appends.
func (a *appender) receiveLoop(connIndex int) {
	c := a.conns[connIndex]
	defer a.endingWg.Done()
	for {
		_, bz, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				a.logger.Error(
					fmt.Sprintf("failed to read response on conn %d", connIndex),
					"err",
					err,
				)
			}
			return
		}
		a.countResponse(bz)
		if a.isStopped() || a.connsBroken[connIndex] {
			return
		}
	}
}

func (a *appender) countResponse(bz []byte) {
	var res rpctypes.RPCResponse
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(bz, &res); err != nil {
		a.logger.Error("malformed response", "err", err)
		return
	}
	if res.Error != nil {
		atomic.AddInt64(&a.rejected, 1)
		a.logger.Debug("append rejected", "err", res.Error)
		return
	}
	atomic.AddInt64(&a.accepted, 1)
}

// sendLoop generates append requests at a given rate.
func (a *appender) sendLoop(connIndex int) {
	started := false
	// Close the starting waitgroup, in the event that this fails to start
	defer func() {
		if !started {
			a.startingWg.Done()
		}
	}()
	c := a.conns[connIndex]

	c.SetPingHandler(func(message string) error {
		err := c.WriteControl(websocket.PongMessage, []byte(message), time.Now().Add(sendTimeout))
		if err == websocket.ErrCloseSent {
			return nil
		} else if e, ok := err.(net.Error); ok && e.Temporary() {
			return nil
		}
		return err
	})

	logger := a.logger.With("addr", c.RemoteAddr())

	pingsTicker := time.NewTicker(pingPeriod)
	sendTicker := time.NewTicker(1 * time.Second)
	defer func() {
		pingsTicker.Stop()
		sendTicker.Stop()
		a.endingWg.Done()
	}()

	for {
		select {
		case <-sendTicker.C:
			startTime := time.Now()
			endTime := startTime.Add(time.Second)
			numSent := a.Rate
			if !started {
				a.startingWg.Done()
				started = true
			}

			now := time.Now()
			for i := 0; i < a.Rate; i++ {
				req, err := newAppendRequest(connIndex, atomic.AddInt64(&a.nextEntry, 1))
				if err != nil {
					logger.Error("failed to encode request", "err", err)
					return
				}

				c.SetWriteDeadline(now.Add(sendTimeout))
				if err := c.WriteJSON(req); err != nil {
					err = errors.Wrap(err,
						fmt.Sprintf("append send failed on connection #%d", connIndex))
					a.connsBroken[connIndex] = true
					logger.Error(err.Error())
					return
				}
				atomic.AddInt64(&a.sent, 1)

				// cache the time.Now() reads to save time.
				if i%5 == 0 {
					now = time.Now()
					if now.After(endTime) {
						// Plus one accounts for sending this request
						numSent = i + 1
						break
					}
				}
			}

			timeToSend := time.Since(startTime)
			logger.Info(fmt.Sprintf("sent %d appends", numSent), "took", timeToSend)
			if timeToSend < 1*time.Second {
				sleepTime := time.Second - timeToSend
				logger.Debug(fmt.Sprintf("connection #%d is sleeping for %f seconds", connIndex, sleepTime.Seconds()))
				time.Sleep(sleepTime)
			}

		case <-pingsTicker.C:
			c.SetWriteDeadline(time.Now().Add(sendTimeout))
			if err := c.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				err = errors.Wrap(err,
					fmt.Sprintf("failed to write ping message on conn #%d", connIndex))
				logger.Error(err.Error())
				a.connsBroken[connIndex] = true
			}
		}

		if a.isStopped() {
			// To cleanly close a connection, a client should send a close
			// frame and wait for the server to close the connection.
			c.SetWriteDeadline(time.Now().Add(sendTimeout))
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				err = errors.Wrap(err,
					fmt.Sprintf("failed to write close message on conn #%d", connIndex))
				logger.Error(err.Error())
				a.connsBroken[connIndex] = true
			}

			return
		}
	}
}

// newAppendRequest encodes the params with tmjson, so entry travels as a
// string like every int64 on the rpc.
func newAppendRequest(connIndex int, entry int64) (rpctypes.RPCRequest, error) {
	id := rpctypes.JSONRPCStringID(fmt.Sprintf("append-bench-%d-%d", connIndex, entry))
	return rpctypes.MapToRequest(id, appendMethod, map[string]interface{}{"entry": entry})
}

func connect(host string) (*websocket.Conn, *http.Response, error) {
	u := url.URL{Scheme: "ws", Host: host, Path: "/websocket"}
	return websocket.DefaultDialer.Dial(u.String(), nil)
}
