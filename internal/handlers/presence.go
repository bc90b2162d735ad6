package handlers

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/collabhub/internal/presence"
	"github.com/nfrund/collabhub/internal/view"
)

// PresenceHandler serves read-only views of the session registry and the
// room index.
type PresenceHandler struct {
	coord   *presence.Coordinator
	listURL string
}

// NewPresenceHandler creates a PresenceHandler. listURL is where the HTML
// page fetches its refreshed list from.
func NewPresenceHandler(coord *presence.Coordinator, listURL string) *PresenceHandler {
	return &PresenceHandler{coord: coord, listURL: listURL}
}

// GetJSON handles GET /api/presence.
func (h *PresenceHandler) GetJSON(c echo.Context) error {
	return c.JSON(http.StatusOK, h.snapshot())
}

// GetPage handles GET /debug/presence. A token given in the query is
// carried over to the list refreshes, which a browser cannot send headers on.
func (h *PresenceHandler) GetPage(c echo.Context) error {
	listURL := h.listURL
	if token := c.QueryParam("token"); token != "" {
		listURL += "?" + url.Values{"token": {token}}.Encode()
	}
	return c.Render(http.StatusOK, "", view.PresencePage(h.snapshot(), listURL))
}

// GetList handles the htmx refresh of the page's list.
func (h *PresenceHandler) GetList(c echo.Context) error {
	return c.Render(http.StatusOK, "", view.PresenceList(h.snapshot()))
}

func (h *PresenceHandler) snapshot() view.PresenceSnapshot {
	sessions := h.coord.Sessions().ListAll()
	rooms := h.coord.Rooms()

	snap := view.PresenceSnapshot{
		Sessions:    make([]view.SessionRow, 0, len(sessions)),
		Rooms:       []view.RoomRow{},
		Online:      len(sessions),
		GeneratedAt: presence.Now(),
	}
	for _, s := range sessions {
		snap.Sessions = append(snap.Sessions, view.SessionRow{
			UserID:      s.UserID,
			DisplayName: s.User.DisplayName,
			ChannelID:   s.ChannelID,
			ConnectedAt: s.ConnectedAt,
			Rooms:       rooms.RoomsOf(s.UserID),
		})
	}

	for projectID, members := range rooms.Snapshot() {
		row := view.RoomRow{ProjectID: projectID, Members: make([]string, 0, len(members))}
		for _, m := range members {
			row.Members = append(row.Members, m.UserID)
		}
		snap.Rooms = append(snap.Rooms, row)
	}
	slices.SortFunc(snap.Rooms, func(a, b view.RoomRow) int { return strings.Compare(a.ProjectID, b.ProjectID) })
	return snap
}
