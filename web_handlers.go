package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/elijahnyp/thermostat_controller/state"
	. "github.com/elijahnyp/thermostat_controller/util"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Data interface{} `json:"data"`
	Type string      `json:"type"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn *websocket.Conn
	send chan WebSocketMessage
	hub  *WSHub
}

// WSHub maintains the set of active clients and broadcasts messages
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan WebSocketMessage
	register   chan *WSClient
	unregister chan *WSClient
}

// SystemStatus is the body of /api/status
type SystemStatus struct {
	Rooms        []RoomSnapshot `json:"rooms"`
	TotalRooms   int            `json:"total_rooms"`
	HeatingRooms int            `json:"heating_rooms"`
	MinTemp      int            `json:"min_temp"`
	MaxTemp      int            `json:"max_temp"`
}

type apiError struct {
	Error string `json:"error"`
}

var wsHub *WSHub

func init() {
	wsHub = NewHub()
	go wsHub.Run()
}

func NewHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WebSocketMessage, 16),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			Logger.Info().Msg("Client connected to WebSocket")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				Logger.Info().Msg("Client disconnected from WebSocket")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// BroadcastUpdate sends an update to all connected clients
func (h *WSHub) BroadcastUpdate(messageType string, data interface{}) {
	select {
	case h.broadcast <- WebSocketMessage{Type: messageType, Data: data}:
	default:
		Logger.Debug().Msgf("websocket broadcast full, dropping %s", messageType)
	}
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *WSClient) writePump() {
	defer func() {
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for message := range c.send {
		if err := c.conn.WriteJSON(message); err != nil {
			return
		}
	}
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		Logger.Debug().Err(err).Msg("Error writing close message")
	}
}

// ServeWebSocket streams room_state updates. The first message is a
// status message carrying every room.
func ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan WebSocketMessage, 256),
		hub:  wsHub,
	}
	client.send <- WebSocketMessage{Type: "status", Data: model.Snapshots()}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Error().Err(err).Msg("Error encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg})
}

// APISystemStatus returns every room as JSON
func APISystemStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Bad Request Method")
		return
	}
	status := SystemStatus{
		Rooms:   model.Snapshots(),
		MinTemp: state.MinTemperature,
		MaxTemp: state.MaxTemperature,
	}
	status.TotalRooms = len(status.Rooms)
	for _, snap := range status.Rooms {
		if snap.Mode == state.ModeHeat {
			status.HeatingRooms++
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// APIRoomDetail returns one room's thermostat
func APIRoomDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Bad Request Method")
		return
	}
	roomName := r.URL.Query().Get("room")
	if roomName == "" {
		writeError(w, http.StatusBadRequest, "Room name required")
		return
	}
	snap, ok := model.Snapshot(roomName)
	if !ok {
		writeError(w, http.StatusNotFound, "Room not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// APIRoomCommand applies a command posted in the request body. The body
// uses the same formats accepted on the MQTT command topic.
func APIRoomCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Bad Request Method")
		return
	}
	roomName := r.URL.Query().Get("room")
	if roomName == "" {
		writeError(w, http.StatusBadRequest, "Room name required")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error reading body")
		return
	}
	cmd, err := ParseCommand(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := ExecuteCommand(Client, roomName, cmd)
	switch {
	case errors.Is(err, ErrUnknownRoom):
		writeError(w, http.StatusNotFound, "Room not found")
	case isOutOfRange(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		Logger.Info().Str("room", roomName).Str("action", cmd.Action).Msg("command applied over http")
		writeJSON(w, http.StatusOK, snap)
	}
}

func registerHandlers(monitor *MonitorServer) {
	monitor.AddHandler("/api/status", APISystemStatus)
	monitor.AddHandler("/api/room", APIRoomDetail)
	monitor.AddHandler("/api/room/command", APIRoomCommand)
	monitor.AddHandler("/ws", ServeWebSocket)
}
