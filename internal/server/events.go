package server

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/Skryldev/voiceclip/application/state"
	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/Skryldev/voiceclip/pkg/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait   = 10 * time.Second
	sendBacklog = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: checkOrigin,
}

// checkOrigin accepts same-origin, loopback and private-network pages.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	requestHost := r.Host
	if h, _, err := net.SplitHostPort(requestHost); err == nil {
		requestHost = h
	}
	if host == requestHost {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsPrivate())
}

// Envelope is the JSON frame sent for every coordinator event.
type Envelope struct {
	Type   string           `json:"type"`
	Action string           `json:"action,omitempty"`
	ClipID string           `json:"clip_id"`
	State  string           `json:"state,omitempty"`
	Item   *model.AudioItem `json:"item,omitempty"`
	Error  string           `json:"error,omitempty"`

	PositionMS int64   `json:"position_ms"`
	DurationMS int64   `json:"duration_ms,omitempty"`
	Rate       float64 `json:"rate,omitempty"`
	SeekActive bool    `json:"seek_active,omitempty"`
	ElapsedMS  int64   `json:"elapsed_ms,omitempty"`
	Progress   float64 `json:"progress,omitempty"`

	Staged     *model.AudioItem  `json:"staged,omitempty"`
	Transcript *model.Transcript `json:"transcript,omitempty"`
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// bridge observes every category and queues envelopes for one connection.
// A full queue drops the frame so a slow client never stalls the clip.
type bridge struct {
	clipID string
	send   chan Envelope
	log    *logger.Logger
}

func (b *bridge) push(e Envelope) {
	e.ClipID = b.clipID
	select {
	case b.send <- e:
	default:
		b.log.Warn("event dropped, client too slow", zap.String("type", e.Type), zap.String("action", e.Action))
	}
}

func (b *bridge) OnPlayback(e state.PlaybackEvent) {
	b.push(Envelope{
		Type:       "playback",
		Action:     string(e.Action),
		State:      string(e.State.Kind),
		PositionMS: e.Position.Milliseconds(),
		DurationMS: e.Duration.Milliseconds(),
		Rate:       e.Rate,
		SeekActive: e.SeekActive,
	})
}

func (b *bridge) OnRecorder(e state.RecorderEvent) {
	item := e.Item
	b.push(Envelope{
		Type:      "recorder",
		Action:    string(e.Action),
		State:     string(e.State.Kind),
		Item:      &item,
		ElapsedMS: e.Elapsed.Milliseconds(),
		Error:     errString(e.Err),
	})
}

func (b *bridge) edit(typ string, e state.EditEvent) {
	item := e.Item
	b.push(Envelope{
		Type:   typ,
		Action: string(e.Action),
		State:  string(e.State.Kind),
		Item:   &item,
		Staged: e.Staged,
		Error:  errString(e.Err),
	})
}

func (b *bridge) OnCropper(e state.EditEvent)  { b.edit("cropper", e) }
func (b *bridge) OnCutter(e state.EditEvent)   { b.edit("cutter", e) }
func (b *bridge) OnInserter(e state.EditEvent) { b.edit("inserter", e) }

func (b *bridge) OnTranscriptionJob(e state.TranscriptionJobEvent) {
	b.push(Envelope{
		Type:     "transcription_job",
		Action:   string(e.Action),
		Progress: e.Progress,
		Error:    errString(e.Err),
	})
}

func (b *bridge) OnTranscript(e state.TranscriptEvent) {
	tr := e.Transcript
	b.push(Envelope{Type: "transcript", Transcript: &tr})
}

// handleEvents upgrades to a websocket and forwards the clip's events until
// the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	m, ok := s.clip(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := s.log.With(zap.String("clip_id", m.ID()))
	b := &bridge{clipID: m.ID(), send: make(chan Envelope, sendBacklog), log: log}
	sub, err := m.Subscribe(b)
	if err != nil {
		log.Error("subscribe failed", zap.Error(err))
		return
	}
	defer sub.Unsubscribe()
	log.Debug("event stream opened")

	// the reader only detects the disconnect
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// current state first
	b.push(Envelope{Type: "state", State: string(m.State().Kind)})

	for {
		select {
		case <-closed:
			log.Debug("event stream closed")
			return
		case e := <-b.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				log.Debug("event write failed", zap.Error(err))
				return
			}
		}
	}
}
