package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/michaelbrown/codetutor/internal/executor"
	"github.com/michaelbrown/codetutor/internal/limiter"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsIncoming is a message from the client.
type wsIncoming struct {
	Type     string `json:"type"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

// wsOutgoing is a message to the client.
type wsOutgoing struct {
	Type    string           `json:"type"`
	Stream  string           `json:"stream,omitempty"`
	Content string           `json:"content,omitempty"`
	Result  *executor.Result `json:"result,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)

	lc := s.conns.Add(conn)
	defer s.conns.Remove(lc.ID)

	log := s.logger.With().Str("conn", lc.ID).Logger()

	// Read loop
	for {
		var msg wsIncoming
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("websocket read")
			}
			return
		}

		if msg.Type != "execute" || msg.Language == "" {
			lc.WriteJSON(wsOutgoing{Type: "error", Content: "invalid message"})
			continue
		}

		release, ok := s.limiter.Acquire(limiter.ClientKey(r))
		if !ok {
			lc.WriteJSON(wsOutgoing{Type: "error", Content: "too many requests"})
			continue
		}
		s.streamExecution(r, lc, msg)
		release()
	}
}

// streamExecution forwards output chunks as they are captured, then the
// final result.
func (s *Server) streamExecution(r *http.Request, lc *LiveConn, msg wsIncoming) {
	onOutput := executor.WithOutputHandler(func(stream executor.Stream, chunk []byte) {
		lc.WriteJSON(wsOutgoing{Type: "output", Stream: string(stream), Content: string(chunk)})
	})

	res := s.execute(r.Context(), msg.Code, msg.Language, "", onOutput)
	if err := lc.WriteJSON(wsOutgoing{Type: "result", Result: &res}); err != nil {
		s.logger.Debug().Err(err).Str("conn", lc.ID).Msg("websocket write")
	}
}
