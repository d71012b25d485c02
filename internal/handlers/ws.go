// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vege25/duelgame/internal/events"
	"github.com/vege25/duelgame/internal/middleware"
	"github.com/vege25/duelgame/internal/session"
)

// SessionServer bundles the session core components behind the HTTP surface.
type SessionServer struct {
	Registry     *session.Registry
	Matchmaker   *session.Matchmaker
	Coordinator  *session.Coordinator
	Disconnector *session.Disconnector
	Logger       *logrus.Logger
}

// NewSessionServer wires the core components over the given store and event
// queue.
func NewSessionServer(store session.Store, emitter events.Emitter, logger *logrus.Logger) *SessionServer {
	registry := session.NewRegistry()
	return &SessionServer{
		Registry:     registry,
		Matchmaker:   session.NewMatchmaker(store, emitter, logger),
		Coordinator:  session.NewCoordinator(store, registry, emitter, logger),
		Disconnector: session.NewDisconnector(store, emitter, logger),
		Logger:       logger,
	}
}

// WSHandler upgrades the connection, matchmakes the participant into a
// session, and runs the read loop until the socket closes. The connection
// moves through an explicit lifecycle: connecting (pre-assignment) ->
// assigned (lobby known) -> active (pumps running) -> closed.
func WSHandler(srv *SessionServer) http.HandlerFunc {
	logger := srv.Logger
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error from %s: %v", remoteAddr, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		middleware.LogWebSocketConnect(logger, remoteAddr, r.URL.Path)

		// Identity arrives as a query parameter; token issuance and
		// verification live in the upstream auth service. Clients speaking
		// the older protocol send it camel-cased.
		rawID := r.URL.Query().Get("user_id")
		if rawID == "" {
			rawID = r.URL.Query().Get("userId")
		}
		userID, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil || userID <= 0 {
			logger.Warnf("connection from %s rejected: missing or invalid user_id", remoteAddr)
			c.Close(websocket.StatusPolicyViolation, "user_id is required")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		assignment, err := srv.Matchmaker.Assign(ctx, userID)
		if err != nil {
			logger.Warnf("lobby assignment failed for user %d: %v", userID, err)
			writeDirect(ctx, c, session.ErrorMessage{Error: "Failed to assign lobby. Please try again later."})
			c.Close(websocket.StatusInternalError, "lobby assignment failed")
			return
		}

		lobbyID := assignment.Lobby.LobbyID
		conn := session.NewConn(userID, lobbyID, cancel)

		// Queue the assignment notification before admitting the connection,
		// so it is the first message the write pump delivers.
		if assignment.Role == session.RoleOpponent {
			conn.Write(session.JoinedMessage{
				Status:    session.StatusJoined,
				LobbyData: assignment.Lobby,
				GameData:  assignment.Game,
			})
		} else {
			conn.Write(session.CreatedMessage{
				Status:  session.StatusCreated,
				LobbyID: lobbyID,
			})
		}

		srv.Registry.Join(lobbyID, conn)
		conn.SetState(session.StateActive)
		logger.Infof("user %d (%s) joined session %d as %s", userID, remoteAddr, lobbyID, assignment.Role)

		go writePump(ctx, c, conn, logger)
		readPump(ctx, c, conn, srv.Coordinator, logger)

		// The read pump only returns once the socket is gone. Remove the
		// membership first so no further broadcast targets this connection,
		// then run the persistent cleanup with a fresh context; the request
		// context is already dead.
		srv.Registry.Leave(lobbyID, conn)
		cancel()

		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cleanupCancel()
		if err := srv.Disconnector.HandleDisconnect(cleanupCtx, lobbyID, userID); err != nil {
			logger.Warnf("disconnect cleanup failed for user %d in session %d: %v", userID, lobbyID, err)
		}
		middleware.LogWebSocketDisconnect(logger, remoteAddr, r.URL.Path, nil)
	}
}

// readPump drains inbound messages and hands each one to the coordinator.
// Handling is sequential per connection: a message's persistence write and
// broadcast complete before the next message is read.
func readPump(ctx context.Context, c *websocket.Conn, conn *session.Conn, coord *session.Coordinator, logger *logrus.Logger) {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			switch {
			case closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway:
				logger.Infof("session %d: websocket closed normally for user %d", conn.SessionID, conn.UserID)
			case strings.Contains(err.Error(), "context canceled"):
			default:
				logger.Warnf("session %d: read error for user %d: %v", conn.SessionID, conn.UserID, err)
			}
			return
		}
		if typ != websocket.MessageText {
			logger.Warnf("session %d: ignoring non-text message from user %d", conn.SessionID, conn.UserID)
			continue
		}
		coord.HandleMessage(ctx, conn, msg)
	}
}

// writePump drains the connection's outbound queue onto the socket and sends
// periodic pings. A failed write or ping means the socket is broken; the read
// pump observes the closure and triggers cleanup.
func writePump(ctx context.Context, c *websocket.Conn, conn *session.Conn, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.Out:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("failed to marshal outgoing msg for user %d: %v", conn.UserID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("failed to write to websocket for user %d: %v", conn.UserID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("ping to user %d failed, assuming disconnect: %v", conn.UserID, err)
				return
			}
		}
	}
}

// writeDirect marshals and writes a message on the raw socket, for the
// pre-pump window before the connection joins the registry.
func writeDirect(ctx context.Context, c *websocket.Conn, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = c.Write(writeCtx, websocket.MessageText, data)
}
