package ws

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/missionforge/server/game/loop"
	"github.com/missionforge/server/game/mission"
	"github.com/missionforge/server/game/player"
	"go.uber.org/zap"
)

// MissionHandlers bundles the dependencies needed by mission WS message handlers.
type MissionHandlers struct {
	missions *mission.PlayerManager
	loop     *loop.Loop
	logger   *zap.Logger
}

// NewMissionHandlers creates a new MissionHandlers.
func NewMissionHandlers(missions *mission.PlayerManager, gameLoop *loop.Loop, logger *zap.Logger) *MissionHandlers {
	return &MissionHandlers{missions: missions, loop: gameLoop, logger: logger}
}

// RegisterHandlers registers all mission handlers on the given Router.
func (mh *MissionHandlers) RegisterHandlers(r *Router) {
	r.On("ping", mh.HandlePing)
	r.On("event_report", mh.HandleEventReport)
	r.On("missions_get", mh.HandleMissionsGet)
}

// ------------------------------------------------------------------ ping

type pingPayload struct {
	TS int64 `json:"ts"`
}

type pongPayload struct {
	TS int64 `json:"ts"`
}

// HandlePing responds to client heartbeat pings.
func (mh *MissionHandlers) HandlePing(_ context.Context, s *player.Session, raw json.RawMessage) error {
	var p pingPayload
	_ = json.Unmarshal(raw, &p)
	payload, _ := json.Marshal(pongPayload{TS: p.TS})
	s.Send(&player.Packet{Type: "pong", Payload: payload})
	return nil
}

// ------------------------------------------------------------------ event_report

type eventReportReq struct {
	Event      string                 `json:"event"`
	Target     string                 `json:"target"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// HandleEventReport processes a gameplay event reported by the host on behalf
// of the connected player. Property values are decoded with json.Number so
// integer-valued thresholds survive the transport.
func (mh *MissionHandlers) HandleEventReport(_ context.Context, s *player.Session, raw json.RawMessage) error {
	var req eventReportReq
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return err
	}
	if req.Event == "" {
		sendError(s, "missing event type")
		return nil
	}

	props := mission.NormalizeProperties(req.Properties)
	steamID := s.SteamID
	mh.loop.Defer(func() {
		mh.missions.HandleEvent(steamID, req.Event, req.Target, props)
	})
	return nil
}

// ------------------------------------------------------------------ missions_get

// HandleMissionsGet pushes the player's current mission state back over the
// session.
func (mh *MissionHandlers) HandleMissionsGet(_ context.Context, s *player.Session, _ json.RawMessage) error {
	mh.missions.PushState(s.SteamID)
	return nil
}

// sendError sends an error packet to the session.
func sendError(s *player.Session, msg string) {
	payload, _ := json.Marshal(map[string]string{"message": msg})
	s.Send(&player.Packet{Type: "error", Payload: payload})
}
