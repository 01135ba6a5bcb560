package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"slippers/config"
	"slippers/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	maxFrameSize = 512
)

// Origins are not checked: events are scoped by the access token, which a
// foreign page cannot read.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// UpgradeOrderEventsWS streams order and payment status changes. Browsers pass
// the access token as ?token= since they cannot set headers on upgrade; other
// clients may use the Authorization header. The token is checked before the
// upgrade so a bad one gets a plain 401.
func UpgradeOrderEventsWS(cfg *config.JWTConfig, hub *Hub, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := authenticate(cfg, c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Debug("[ws] upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		client := NewClient(claims.UserID, claims.Role)
		hub.Register(client)
		defer client.Close()
		log.Debug("[ws] order events connected", zap.Uint("user_id", claims.UserID), zap.String("role", claims.Role))

		hello, _ := json.Marshal(map[string]interface{}{"type": "hello", "user_id": claims.UserID})
		client.trySend(hello)
		go writePump(client, conn)
		readPump(conn)
	}
}

var errTokenRequired = errors.New("token required")

func authenticate(cfg *config.JWTConfig, c *gin.Context) (*auth.Claims, error) {
	token := c.Query("token")
	if token == "" {
		token, _ = auth.BearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		return nil, errTokenRequired
	}
	return auth.ParseAccessToken(cfg, token)
}

// writePump is the connection's only writer. It drains client.Send and keeps
// the peer alive with pings.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and returns when the peer goes away or
// stops answering pings.
func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
