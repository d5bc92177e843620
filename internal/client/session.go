package client

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"musicjam/internal/model"
	"musicjam/internal/reporter"
	"musicjam/internal/transport/ws"
	"musicjam/internal/view"
)

// Session runs the member side of one joined jam: the self-report loop, the
// push listener, and the backstop poll. All loops die together when Leave
// cancels the session context; a reporter that outlives the session is a
// bug, not a tolerated race.
type Session struct {
	api        *API
	source     reporter.Source
	reconciler *view.Reconciler
	state      *view.SessionView

	code           string
	wsURL          string
	playbackToken  string
	reportInterval time.Duration
	pollInterval   time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type SessionConfig struct {
	API            *API
	Source         reporter.Source
	Reconciler     *view.Reconciler
	Code           string
	WSBaseURL      string // e.g. ws://localhost:8080
	PlaybackToken  string
	ReportInterval time.Duration
	PollInterval   time.Duration
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = 5 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	return &Session{
		api:            cfg.API,
		source:         cfg.Source,
		reconciler:     cfg.Reconciler,
		state:          view.NewSessionView(),
		code:           strings.ToUpper(cfg.Code),
		wsURL:          cfg.WSBaseURL,
		playbackToken:  cfg.PlaybackToken,
		reportInterval: cfg.ReportInterval,
		pollInterval:   cfg.PollInterval,
	}
}

func (s *Session) Phase() view.Phase {
	return s.state.Phase()
}

// Join joins the jam and starts the session loops. Safe to call again after
// a failure (the view state machine only permits retry from the error state).
func (s *Session) Join(ctx context.Context) (*model.Jam, error) {
	if err := s.state.BeginJoin(); err != nil {
		return nil, err
	}

	jam, _, err := s.api.Join(ctx, s.code)
	if err != nil {
		s.state.JoinFailed()
		return nil, err
	}
	if err := s.state.JoinSucceeded(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.run(runCtx, done)
	return jam, nil
}

// Leave stops every loop, waits for them, and removes this member's row.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	if err := s.state.Leave(); err != nil {
		return err
	}
	return s.api.Leave(ctx, s.code)
}

// run owns the three session goroutines. Push and poll deliveries converge
// on one snapshot channel consumed by a single reconcile loop, so duplicate
// or out-of-order deliveries are absorbed by the reconciler's change check.
func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	snapshots := make(chan []model.Participant, 4)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		rep := reporter.New(s.source, &trackSink{api: s.api, code: s.code}, s.playbackToken, s.reportInterval)
		rep.Run(ctx)
	}()

	go func() {
		defer wg.Done()
		s.listen(ctx, snapshots)
	}()

	go func() {
		defer wg.Done()
		s.poll(ctx, snapshots)
	}()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case snapshot := <-snapshots:
			s.reconciler.Apply(snapshot)
		}
	}
}

// listen consumes pushed snapshots over WebSocket, reconnecting with a
// small backoff until the session ends.
func (s *Session) listen(ctx context.Context, snapshots chan<- []model.Participant) {
	u, err := url.Parse(s.wsURL)
	if err != nil {
		log.Printf("[Session] bad ws url %q: %v", s.wsURL, err)
		return
	}
	u.Path = "/v1/ws/jams/" + s.code
	q := u.Query()
	q.Set("token", s.api.token)
	u.RawQuery = q.Encode()

	for ctx.Err() == nil {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			log.Printf("[Session] ws dial failed, backstop poll covers: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		// Drop the connection when the session context ends so the read
		// loop below unblocks.
		closeDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-closeDone:
			}
		}()

		ended := s.readLoop(ctx, conn, snapshots)
		close(closeDone)
		conn.Close()
		if ended {
			return
		}
	}
}

// readLoop consumes one connection. It reports true when the host ended the
// jam, in which case reconnecting would only find a dead code.
func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn, snapshots chan<- []model.Participant) bool {
	for {
		var msg ws.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return false
		}
		switch msg.Type {
		case ws.MsgJamEnded:
			log.Printf("[Session] jam ended by host")
			return true
		case ws.MsgParticipantsUpdate:
			var participants []model.Participant
			if err := json.Unmarshal(msg.Payload, &participants); err != nil {
				log.Printf("[Session] bad snapshot payload: %v", err)
				continue
			}
			select {
			case snapshots <- participants:
			case <-ctx.Done():
				return false
			}
		}
	}
}

// poll is the client-side correctness backstop: even with the push path
// down, the view converges within one poll interval.
func (s *Session) poll(ctx context.Context, snapshots chan<- []model.Participant) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			participants, err := s.api.Participants(ctx, s.code)
			if err != nil {
				log.Printf("[Session] backstop poll failed: %v", err)
				continue
			}
			select {
			case snapshots <- participants:
			case <-ctx.Done():
				return
			}
		}
	}
}

// trackSink adapts the API to the reporter's sink.
type trackSink struct {
	api  *API
	code string
}

func (t *trackSink) Report(ctx context.Context, state model.PlaybackState) error {
	return t.api.UpdateTrack(ctx, t.code, state)
}
