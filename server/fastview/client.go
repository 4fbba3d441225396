package fastview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second
	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// The rate at which ele-updates will be sent to the client, so as not to overburden.
	pubResolution  = time.Millisecond * 100
	pingResolution = time.Millisecond * 200
	// The number of pings to tolerate losing before concluding the peer is gone.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// Client publishes updates unidirectionally to a web client via websocket.
// Messages read from the client are discarded; reading is required to process
// control frames such as pongs and close.
type Client[T any] struct {
	updates <-chan T
	ws      *websock
	rootCtx context.Context
	logger  *log.Entry
}

// NewClient upgrades the request to a websocket and returns a publisher for sending
// ui updates over it. Items in the updates chan should represent idempotent update
// objects, such that intervening updates can be discarded when they are received
// too quickly (> pub-rate), and only sending the latest update is sufficient to
// specify the new client state.
func NewClient[T any](
	updates <-chan T,
	w http.ResponseWriter,
	r *http.Request,
) (*Client[T], error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied to the client.
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}
	ws.SetReadLimit(maxMessageSize)

	return &Client[T]{
		updates: updates,
		ws:      NewWebSocket(ws),
		rootCtx: r.Context(),
		logger:  log.WithField("remote", r.RemoteAddr),
	}, nil
}

// Sync starts routines to publish incoming updates to the client. Updates are
// published at a fixed rate; updates received faster than that rate are coalesced
// so that only the latest is sent. Sync closes the websocket before returning, and
// returns nil upon client disconnect or an error if an unexpected error occurred.
func (cli *Client[T]) Sync() error {
	cli.logger.Info("client connected")
	group, groupCtx := errgroup.WithContext(cli.rootCtx)

	group.Go(func() error {
		return cli.readMessages(groupCtx)
	})
	group.Go(func() error {
		return cli.pingPong(groupCtx)
	})
	group.Go(func() error {
		return cli.publish(groupCtx)
	})
	// Unblock the pending read once any routine has finished.
	go func() {
		<-groupCtx.Done()
		_ = cli.ws.Conn().SetReadDeadline(time.Now())
	}()

	err := group.Wait()
	cli.ws.Close()
	if errors.Is(err, errClientGone) {
		err = nil
	}
	if err != nil {
		cli.logger.WithError(err).Warn("client sync failed")
	} else {
		cli.logger.Info("client disconnected")
	}
	return err
}

var ErrPongDeadlineExceeded error = errors.New("client disconnect, pong deadline exceeded")

// errClientGone ends the sync group when the peer closes the socket normally.
var errClientGone = errors.New("client closed the connection")

// Runs the ping-pong for the client liveness check.
// NOTE: This function requires that readMessages is running to ensure the pong handler is called.
func (cli *Client[T]) pingPong(ctx context.Context) error {
	var lastPong atomic.Int64
	lastPong.Store(time.Now().UnixNano())
	cli.ws.Conn().SetPongHandler(func(_ string) error {
		lastPong.Store(time.Now().UnixNano())
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-pinger:
			if !ok {
				return nil
			}
			if time.Since(time.Unix(0, lastPong.Load())) > pongWait {
				return ErrPongDeadlineExceeded
			}
			if err := cli.ping(ctx); err != nil {
				return err
			}
		}
	}
}

func (cli *Client[T]) ping(ctx context.Context) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (err error) {
			if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				err = fmt.Errorf("ping failed: %w", err)
			}
			return
		})
}

// readMessages monitors for messages from the client.
// Errors returned by websocket Read methods are permanent, hence any error
// must trigger full teardown.
func (cli *Client[T]) readMessages(ctx context.Context) error {
	for {
		err := cli.ws.Read(
			ctx,
			func(ws *websocket.Conn) (readErr error) {
				_, _, readErr = ws.ReadMessage()
				return
			})
		switch {
		case isClosure(err):
			return errClientGone
		case err != nil:
			return err
		case ctx.Err() != nil:
			return nil
		}
	}
}

// publish sends updates to the client no faster than pubResolution. An update arriving
// early is held as pending and sent on the next flush tick, replacing any older pending one.
func (cli *Client[T]) publish(ctx context.Context) error {
	var (
		pending    T
		hasPending bool
		lastSync   time.Time
	)

	send := func(updates T) error {
		lastSync = time.Now()
		hasPending = false
		return cli.ws.Write(
			ctx,
			func(ws *websocket.Conn) (writeErr error) {
				if writeErr = ws.SetWriteDeadline(time.Now().Add(writeWait)); writeErr != nil {
					return fmt.Errorf("failed to set deadline: %w", writeErr)
				}
				if writeErr = ws.WriteJSON(updates); writeErr != nil {
					writeErr = fmt.Errorf("publish failed: %w", writeErr)
				}
				return
			})
	}

	flusher := channerics.NewTicker(ctx.Done(), pubResolution)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-flusher:
			if !ok {
				return nil
			}
			if hasPending {
				if err := send(pending); err != nil {
					return err
				}
			}
		case updates, ok := <-cli.updates:
			// Graceful input channel closure
			if !ok {
				return nil
			}
			if time.Since(lastSync) < pubResolution {
				pending, hasPending = updates, true
				break
			}
			if err := send(updates); err != nil {
				return err
			}
		}
	}
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const (
	readDeadline     = time.Second
	writeDeadline    = time.Second
	closeGracePeriod = 100 * time.Millisecond
)

// websock merely serializes reads and writes to the websocket, whose requirements
// are that there may be only one concurrent reader and writer at a time.
type websock struct {
	// These are merely mutexes, but channel semantics are cleaner.
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func NewWebSocket(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Returns the underlying websocket.
// This should only be used non-concurrently for setup, e.g. adding handlers.
func (sock *websock) Conn() *websocket.Conn {
	return sock.ws
}

// Closes the websocket. This should only be called once no further read/writers exist.
func (sock *websock) Close() {
	sock.writeSem <- struct{}{}
	_ = sock.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	time.Sleep(closeGracePeriod)
	sock.ws.Close()
}

// Read serializes read operations on the internal web socket.
// The read itself blocks until a message arrives or the connection fails.
func (sock *websock) Read(
	ctx context.Context,
	readFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.readSem <- struct{}{}:
		defer func() { <-sock.readSem }()
		return readFn(sock.ws)
	case <-time.After(readDeadline):
		return ErrSockCongestion
	}
}

// Write serializes write operations to the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
