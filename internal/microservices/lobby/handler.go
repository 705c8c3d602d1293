package lobby

import (
	"net/http"

	"lobbyserver/internal/microservices/http-api/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// HTTP upgrade handlers to WebSocket connections

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// allow all origins for development purpose; can restrict later
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// PlayerWSHandler admits a player connection: JWT identity from the auth
// middleware, ban gate, then upgrade and pump startup.
func PlayerWSHandler(l *Lobby) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, role, ok := identityFromContext(c)
		if !ok {
			return
		}
		admitConnection(c, l, l.playerBus, username, role, l.playerClosed, func(conn *Conn) {
			l.chatters.Join(conn, username)
		})
	}
}

// HostWSHandler admits a game-host connection. Only host-capable roles may
// advertise games.
func HostWSHandler(l *Lobby) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, role, ok := identityFromContext(c)
		if !ok {
			return
		}
		if role != models.RoleHost && role != models.RoleModerator && role != models.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "host role required"})
			return
		}
		admitConnection(c, l, l.hostBus, username, role, l.hostClosed, nil)
	}
}

// identityFromContext pulls the authenticated identity set by the JWT middleware
func identityFromContext(c *gin.Context) (username, role string, ok bool) {
	usernameVal, exists := c.Get("username")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return "", "", false
	}
	roleVal, _ := c.Get("role")
	username, _ = usernameVal.(string)
	role, _ = roleVal.(string)
	return username, role, true
}

// admitConnection runs the admission sequence shared by both channels:
// ban gate -> upgrade -> registry admit -> pumps. onAdmit, when set, runs
// after admission (player channel uses it to join the chatter registry).
func admitConnection(c *gin.Context, l *Lobby, bus *MessageBus, username, role string, onClose func(*Conn), onAdmit func(*Conn)) {
	remoteAddr := c.ClientIP()

	// ban gate check happens before the connection enters any registry;
	// a gate failure counts as banned (fail closed)
	if banned, err := l.gate.IsBanned(username, remoteAddr); banned {
		status := http.StatusForbidden
		if err != nil {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": "banned"})
		return
	}

	// upgrade HTTP connection to WebSocket
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upgrade to WebSocket"})
		return
	}

	conn := NewConn(ws, username, role, remoteAddr)
	bus.Registry().Admit(conn)
	if onAdmit != nil {
		onAdmit(conn)
	}

	// start goroutines for read and write pumps; the write pump owns the
	// socket teardown so queued disconnect frames reach the peer
	conn.startWritePump()
	go conn.ReadPump(bus, l.gate, bus.Registry().NewLimiter(), onClose)
}
