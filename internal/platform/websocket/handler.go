package websocket

import (
	"net/http"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// Handler exposes the three subscription endpoints over WebSocket.
type Handler struct {
	hub *Hub
}

// NewHandler creates a handler bound to the given hub.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes mounts the WebSocket endpoints on the provided Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws/patients/:id", h.HandlePatient)
	g.GET("/ws/departments/:name", h.HandleDepartment)
	g.GET("/ws/status", h.HandleStatus)
}

// HandlePatient subscribes the connection to one patient's event channel.
func (h *Handler) HandlePatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient()
	h.hub.SubscribePatient(patientID, client)

	go h.writePump(client, ws)
	go h.readPump(ws, func() { h.hub.UnsubscribePatient(patientID, client) })
	return nil
}

// HandleDepartment subscribes the connection to a department queue channel.
func (h *Handler) HandleDepartment(c echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "department name required")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient()
	h.hub.SubscribeDepartment(name, client)

	go h.writePump(client, ws)
	go h.readPump(ws, func() { h.hub.UnsubscribeDepartment(name, client) })
	return nil
}

// HandleStatus subscribes the connection to the global status feed.
func (h *Handler) HandleStatus(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient()
	h.hub.SubscribeStatus(client)

	go h.writePump(client, ws)
	go h.readPump(ws, func() { h.hub.UnsubscribeStatus(client) })
	return nil
}

// readPump discards inbound frames until the peer disconnects, then tears
// the subscription down.
func (h *Handler) readPump(ws *gorillawebsocket.Conn, unsubscribe func()) {
	defer func() {
		unsubscribe()
		ws.Close()
	}()
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains the client's send queue to the socket. A write failure
// ends the pump; the read pump notices the closed socket and unsubscribes.
func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	defer ws.Close()
	for message := range client.Send {
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			return
		}
	}
}
