package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"roomsync/core"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

const updateEvent = "room-update"

type ackInvoker func(err error, payload map[string]any)

// Update is the payload pushed to subscribers after a room changes.
type Update struct {
	Room    string `json:"room"`
	Version uint64 `json:"version"`
	Data    any    `json:"data"`
}

// emitter is the part of *socketio.Socket the hub pushes through.
type emitter interface {
	Emit(ev string, args ...any) error
}

// subscription is one socket's membership in one room. Updates at or below
// the last version sent are dropped, so a socket never sees a room go back.
type subscription struct {
	out emitter

	mu   sync.Mutex
	last uint64
}

func (s *subscription) send(u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Version <= s.last {
		return nil
	}
	s.last = u.Version
	return s.out.Emit(updateEvent, u)
}

// Hub pushes room changes to socket.io subscribers. Clients join a room with
// "join-room" and receive "room-update" events until they leave or disconnect.
type Hub struct {
	srv   *socketio.Server
	store core.RoomStore

	mu      sync.Mutex
	members map[string]map[socketio.SocketId]*subscription
}

func NewHub(store core.RoomStore) *Hub {
	h := &Hub{
		store:   store,
		members: make(map[string]map[socketio.SocketId]*subscription),
	}

	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	localhostOrigin := regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)
	opts.SetCors(&types.Cors{
		Origin:      []any{localhostOrigin},
		Credentials: true,
	})
	h.srv = socketio.NewServer(nil, opts)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	h.srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		h.bind(socket)
	})

	return h
}

func (h *Hub) bind(socket *socketio.Socket) {
	me := socket.Id()

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("join-room", func(datas ...any) {
		ack, roomID, err := roomArg(datas)
		if err != nil {
			respondWithAck(socket, ack, "join-room-ack", errorPayload(err), err)
			return
		}

		count, err := h.subscribe(context.Background(), roomID, me, socket)
		if err != nil {
			respondWithAck(socket, ack, "join-room-ack", errorPayload(err), err)
			return
		}
		logrus.WithFields(logrus.Fields{
			"socket_id": me,
			"room_id":   roomID,
			"count":     count,
		}).Debug("Socket joined room")

		respondWithAck(socket, ack, "join-room-ack", map[string]any{
			"status":      "ok",
			"subscribers": count,
		}, nil)
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("leave-room", func(datas ...any) {
		ack, roomID, err := roomArg(datas)
		if err != nil {
			respondWithAck(socket, ack, "leave-room-ack", errorPayload(err), err)
			return
		}

		count := h.leave(roomID, me)
		respondWithAck(socket, ack, "leave-room-ack", map[string]any{
			"status":      "ok",
			"subscribers": count,
		}, nil)
	})

	socket.On("disconnecting", func(...any) {
		left := h.leaveAll(me)
		logrus.WithFields(logrus.Fields{
			"socket_id": me,
			"rooms":     left,
		}).Debug("Socket disconnecting")
	})

	socket.On("disconnect", func(...any) {
		socket.RemoveAllListeners("")
	})
}

// subscribe registers the socket before reading the room, so a commit that
// races the join reaches the socket either in the snapshot or as a push.
func (h *Hub) subscribe(ctx context.Context, roomID string, id socketio.SocketId, out emitter) (int, error) {
	sub, count := h.join(roomID, id, out)

	room, err := h.store.Read(ctx, roomID, 0)
	if err != nil {
		h.leave(roomID, id)
		return 0, err
	}

	if err := sub.send(toUpdate(room.ID, room.Version, room.Data)); err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to send room snapshot")
	}
	return count, nil
}

// RoomChanged implements core.ChangeListener.
func (h *Hub) RoomChanged(_ context.Context, change core.Change) error {
	subs := h.subscriptions(change.Room)
	if len(subs) == 0 {
		return nil
	}

	update := toUpdate(change.Room, change.Version, change.Data)
	var errs []error
	for _, sub := range subs {
		if err := sub.send(update); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribers returns a snapshot of subscriber counts per room.
func (h *Hub) Subscribers() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int, len(h.members))
	for id, sockets := range h.members {
		counts[id] = len(sockets)
	}
	return counts
}

// Handler serves the socket.io transport.
func (h *Hub) Handler() http.Handler {
	return h.srv.ServeHandler(nil)
}

func (h *Hub) Close() {
	h.srv.Close(nil)
}

func (h *Hub) subscriptions(roomID string) []*subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := make([]*subscription, 0, len(h.members[roomID]))
	for _, sub := range h.members[roomID] {
		subs = append(subs, sub)
	}
	return subs
}

// join adds the socket to the room. Joining twice keeps the first subscription.
func (h *Hub) join(roomID string, id socketio.SocketId, out emitter) (*subscription, int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sockets, ok := h.members[roomID]
	if !ok {
		sockets = make(map[socketio.SocketId]*subscription)
		h.members[roomID] = sockets
	}
	sub, ok := sockets[id]
	if !ok {
		sub = &subscription{out: out}
		sockets[id] = sub
	}
	return sub, len(sockets)
}

func (h *Hub) leave(roomID string, id socketio.SocketId) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(roomID, id)
}

func (h *Hub) leaveLocked(roomID string, id socketio.SocketId) int {
	sockets, ok := h.members[roomID]
	if !ok {
		return 0
	}
	delete(sockets, id)
	if len(sockets) == 0 {
		delete(h.members, roomID)
	}
	return len(sockets)
}

func (h *Hub) leaveAll(id socketio.SocketId) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var left []string
	for roomID, sockets := range h.members {
		if _, ok := sockets[id]; ok {
			h.leaveLocked(roomID, id)
			left = append(left, roomID)
		}
	}
	return left
}

func toUpdate(roomID string, version uint64, data json.RawMessage) Update {
	var decoded any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &decoded); err != nil {
			logrus.WithField("room_id", roomID).WithError(err).Warn("Room data is not valid JSON")
			decoded = string(data)
		}
	}
	return Update{Room: roomID, Version: version, Data: decoded}
}

func roomArg(datas []any) (ackInvoker, string, error) {
	ack, args := extractAck(datas)
	if len(args) == 0 {
		return ack, "", errors.New("room id is required")
	}

	roomID, ok := args[0].(string)
	if !ok || roomID == "" {
		return ack, "", errors.New("invalid room id")
	}
	return ack, roomID, nil
}

func errorPayload(err error) map[string]any {
	payload := map[string]any{
		"status": "error",
		"error":  err.Error(),
	}
	if status := core.Status(err); status != "" {
		payload["reason"] = status
	}
	return payload
}

func extractAck(datas []any) (ack ackInvoker, args []any) {
	if len(datas) == 0 {
		return nil, datas
	}

	ack = wrapAck(datas[len(datas)-1])
	if ack == nil {
		return nil, datas
	}

	return ack, datas[:len(datas)-1]
}

// wrapAck adapts whatever callback the transport hands us to (err, payload).
func wrapAck(candidate any) ackInvoker {
	if candidate == nil {
		return nil
	}

	value := reflect.ValueOf(candidate)
	if value.Kind() != reflect.Func {
		return nil
	}

	typ := value.Type()
	return func(err error, payload map[string]any) {
		args := make([]reflect.Value, typ.NumIn())
		for i := range args {
			var arg any
			switch {
			case len(args) == 1 && err != nil:
				arg = err
			case len(args) == 1:
				arg = payload
			case i == 0:
				arg = err
			case i == 1:
				arg = payload
			}
			args[i] = coerceValue(arg, typ.In(i))
		}
		value.Call(args)
	}
}

func coerceValue(value any, targetType reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(targetType)
	}

	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(targetType):
		return rv
	case rv.Type().ConvertibleTo(targetType):
		return rv.Convert(targetType)
	case targetType.Kind() == reflect.Interface && targetType.NumMethod() == 0:
		return rv
	case targetType.Kind() == reflect.String:
		return reflect.ValueOf(fmt.Sprint(value)).Convert(targetType)
	}
	return reflect.Zero(targetType)
}

func respondWithAck(socket *socketio.Socket, ack ackInvoker, event string, payload map[string]any, ackErr error) {
	if ack != nil {
		ack(ackErr, payload)
	}

	if event != "" && payload != nil {
		_ = socket.Emit(event, payload)
	}
}
