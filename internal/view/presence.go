package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/a-h/templ"
	g "maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	. "maragu.dev/gomponents/html"
)

// SessionRow is one live session on the diagnostics page.
type SessionRow struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	ChannelID   string    `json:"channelId"`
	ConnectedAt time.Time `json:"connectedAt"`
	Rooms       []string  `json:"rooms"`
}

// RoomRow is one non-empty project room.
type RoomRow struct {
	ProjectID string   `json:"projectId"`
	Members   []string `json:"members"`
}

// PresenceSnapshot is the state rendered by the diagnostics endpoints.
type PresenceSnapshot struct {
	Sessions    []SessionRow `json:"sessions"`
	Rooms       []RoomRow    `json:"rooms"`
	Online      int          `json:"online"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// PresenceList renders the refreshable fragment.
func PresenceList(s PresenceSnapshot) templ.Component {
	return Component(presenceList(s))
}

// PresencePage renders the full page. The list refreshes itself from
// listURL every five seconds.
func PresencePage(s PresenceSnapshot, listURL string) templ.Component {
	return Component(Doctype(
		HTML(
			Lang("en"),
			Head(
				Meta(Charset("utf-8")),
				TitleEl(g.Text("Presence")),
				Script(Src("https://unpkg.com/htmx.org@2.0.4")),
			),
			Body(
				Class("font-sans p-4"),
				H1(g.Text("Realtime presence")),
				Div(
					ID("presence"),
					hx.Get(listURL),
					hx.Trigger("every 5s"),
					hx.Swap("innerHTML"),
					presenceList(s),
				),
			),
		),
	))
}

func presenceList(s PresenceSnapshot) g.Node {
	return Div(
		H2(g.Textf("Online users (%d)", s.Online)),
		g.If(len(s.Sessions) == 0, P(Class("empty"), g.Text("Nobody is connected."))),
		g.If(len(s.Sessions) > 0, Table(
			THead(Tr(Th(g.Text("User")), Th(g.Text("Connected")), Th(g.Text("Rooms")))),
			TBody(g.Map(s.Sessions, func(r SessionRow) g.Node {
				return Tr(
					Td(Title(r.ChannelID), g.Text(r.DisplayName)),
					Td(g.Text(r.ConnectedAt.UTC().Format(time.RFC3339))),
					Td(g.Text(strings.Join(r.Rooms, ", "))),
				)
			})),
		)),
		H2(g.Textf("Rooms (%d)", len(s.Rooms))),
		Ul(g.Map(s.Rooms, func(r RoomRow) g.Node {
			return Li(
				Strong(g.Text(r.ProjectID)),
				g.Text(fmt.Sprintf(": %s", strings.Join(r.Members, ", "))),
			)
		})),
		P(Class("generated"), g.Text("Updated "+s.GeneratedAt.UTC().Format(time.RFC3339))),
	)
}
