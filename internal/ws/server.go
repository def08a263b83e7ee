package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lotservice/internal/services/lot"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 12 * time.Second
	pingPeriod = 3 * time.Second // must be < pongWait
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // dev-only
}

// WsServer serves the read-only live feed: one room per lot, frames are the
// bid_accepted / closed events published by the lot service.
type WsServer struct {
	hub    *Hub
	lotSvc lot.ILotService
}

func NewWsServer(h *Hub, lotSvc lot.ILotService) *WsServer {
	return &WsServer{hub: h, lotSvc: lotSvc}
}

// Handle is the Gin entry-point.
func (s *WsServer) Handle(ginCtx *gin.Context) {
	lotID := ginCtx.Query("lot_id")
	if lotID == "" {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "lot_id is required"})
		return
	}

	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}

	conn := &clientConn{rawConn: rawConn}
	s.hub.Join(lotID, conn)

	// Initial snapshot so late joiners see the current price immediately.
	if snapshot, err := s.lotSvc.GetLot(ginCtx.Request.Context(), lotID); err == nil {
		if body, err := json.Marshal(snapshot); err == nil {
			if err := conn.writeJSON(Envelope{Event: "lots/snapshot", Body: body}); err != nil {
				zap.L().Warn("ws.snapshot", zap.Error(err))
			}
		}
	}

	go s.reader(lotID, conn)
	go s.pinger(conn)
}

// reader drains inbound frames; the feed takes no commands, reading only
// detects disconnects and keeps pong handling alive.
func (s *WsServer) reader(lotID string, conn *clientConn) {
	defer s.hub.Leave(lotID, conn)

	conn.rawConn.SetReadLimit(512)
	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.rawConn.ReadMessage(); err != nil {
			return // client closed or errored
		}
	}
}

func (s *WsServer) pinger(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.ping(); err != nil {
			conn.rawConn.Close()
			return
		}
	}
}
