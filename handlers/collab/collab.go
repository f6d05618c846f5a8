package collab

import (
	"context"
	"whiteboard-complete/core"
	"whiteboard-complete/handlers/auth"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// NewServer builds the realtime relay for live board sessions. Rooms
// are keyed by board id; joining requires view capability on the
// board, resolved from the JWT the client sends in the handshake.
// Scene updates are fan-out only, the server never interprets them;
// durable state still flows through the board HTTP API.
func NewServer(store core.BoardStore) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	ioo := socketio.NewServer(nil, opts)

	ioo.On("connection", func(clients ...any) {
		socket := clients[0].(*socketio.Socket)
		me := socket.Id()
		actorID := actorFromHandshake(socket)
		myRoom := socketio.Room(me)
		ioo.To(myRoom).Emit("init-room")

		socket.On("join-board", func(datas ...any) {
			boardID, ok := datas[0].(string)
			if !ok || boardID == "" {
				socket.Emit("join-error", "board id required")
				return
			}

			board, err := store.GetBoard(context.Background(), boardID)
			if err != nil {
				socket.Emit("join-error", "board not found")
				return
			}
			if !core.Resolve(board, actorID).Has(core.CapView) {
				logrus.WithFields(logrus.Fields{
					"board_id": boardID,
					"actor_id": actorID,
				}).Warn("Rejected board session join")
				socket.Emit("join-error", "access denied")
				return
			}

			room := socketio.Room(boardID)
			socket.Join(room)
			logrus.WithFields(logrus.Fields{
				"socket_id": me,
				"board_id":  boardID,
			}).Debug("Socket joined board session")

			ioo.In(room).FetchSockets()(func(usersInRoom []*socketio.RemoteSocket, _ error) {
				if len(usersInRoom) <= 1 {
					ioo.To(myRoom).Emit("first-in-room")
				} else {
					socket.Broadcast().To(room).Emit("new-user", me)
				}

				roomUsers := []socketio.SocketId{}
				for _, user := range usersInRoom {
					roomUsers = append(roomUsers, user.Id())
				}
				ioo.In(room).Emit("room-user-change", roomUsers)
			})
		})

		socket.On("server-broadcast", func(datas ...any) {
			boardID, ok := datas[0].(string)
			if !ok || len(datas) < 3 || !inRoom(socket, boardID) {
				return
			}
			socket.Broadcast().To(socketio.Room(boardID)).Emit("client-broadcast", datas[1], datas[2])
		})

		socket.On("server-volatile-broadcast", func(datas ...any) {
			boardID, ok := datas[0].(string)
			if !ok || len(datas) < 3 || !inRoom(socket, boardID) {
				return
			}
			socket.Volatile().Broadcast().To(socketio.Room(boardID)).Emit("client-broadcast", datas[1], datas[2])
		})

		socket.On("disconnecting", func(datas ...any) {
			for _, currentRoom := range socket.Rooms().Keys() {
				ioo.In(currentRoom).FetchSockets()(func(usersInRoom []*socketio.RemoteSocket, _ error) {
					otherClients := []socketio.SocketId{}
					for _, userInRoom := range usersInRoom {
						if userInRoom.Id() != me {
							otherClients = append(otherClients, userInRoom.Id())
						}
					}
					if len(otherClients) > 0 {
						ioo.In(currentRoom).Emit("room-user-change", otherClients)
					}
				})
			}
		})

		socket.On("disconnect", func(datas ...any) {
			socket.RemoveAllListeners("")
			socket.Disconnect(true)
		})
	})
	return ioo
}

// inRoom guards the relay: only sockets that passed the join-board
// permission check may broadcast into a board's room.
func inRoom(socket *socketio.Socket, boardID string) bool {
	for _, room := range socket.Rooms().Keys() {
		if room == socketio.Room(boardID) {
			return true
		}
	}
	return false
}

// actorFromHandshake resolves the user id from the token the client
// supplies in the socket.io auth payload at connect time. An invalid
// or absent token joins as anonymous, which still views public boards.
func actorFromHandshake(socket *socketio.Socket) string {
	handshake := socket.Handshake()
	if handshake == nil {
		return ""
	}

	tokenString := ""
	if authData, ok := handshake.Auth.(map[string]any); ok {
		if t, ok := authData["token"].(string); ok {
			tokenString = t
		}
	}
	if tokenString == "" {
		return ""
	}

	claims, err := auth.ParseJWT(tokenString)
	if err != nil {
		logrus.WithError(err).Debug("Rejected socket token")
		return ""
	}
	return claims.Subject
}
