package websocket_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arcade-progress/internal/achievement"
	"github.com/arcade-progress/internal/domain"
	ws "github.com/arcade-progress/internal/websocket"
	gws "github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
)

type frame struct {
	Type  string          `json:"type"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func readFrame(conn *gws.Conn) (frame, error) {
	var f frame
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return f, err
	}
	err = json.Unmarshal(data, &f)
	return f, err
}

func TestHub(t *testing.T) {
	Convey("Given a running hub behind an HTTP server", t, func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		hub := ws.NewHub(logger)
		go hub.Run()
		defer hub.Stop()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ws.ServeWs(hub, logger, w, r)
		}))
		defer srv.Close()
		base := "ws" + strings.TrimPrefix(srv.URL, "http")

		Convey("A player connection receives its unlocks", func() {
			conn, _, err := gws.DefaultDialer.Dial(base+"?player=p1", nil)
			So(err, ShouldBeNil)
			defer conn.Close()
			So(waitFor(func() bool { return hub.GetSubscriberCount(ws.PlayerTopic("p1")) == 1 }), ShouldBeTrue)

			def, _ := achievement.Lookup("snake-100")
			hub.NotifyAchievements("p2", []achievement.Def{def})
			hub.NotifyAchievements("p1", []achievement.Def{def})

			f, err := readFrame(conn)
			So(err, ShouldBeNil)
			So(f.Type, ShouldEqual, ws.MessageTypeAchievementUnlocked)
			So(f.Topic, ShouldEqual, "player:p1")

			var payload ws.AchievementsUnlocked
			So(json.Unmarshal(f.Data, &payload), ShouldBeNil)
			So(payload.PlayerID, ShouldEqual, "p1")
			So(payload.Achievements, ShouldHaveLength, 1)
			So(payload.Achievements[0].Title, ShouldEqual, "Snake Charmer")
		})

		Convey("A client can subscribe to a game board", func() {
			conn, _, err := gws.DefaultDialer.Dial(base, nil)
			So(err, ShouldBeNil)
			defer conn.Close()

			So(conn.WriteJSON(ws.ClientMessage{Type: ws.MessageTypeSubscribe, Topic: ws.GameTopic("snake")}), ShouldBeNil)
			ack, err := readFrame(conn)
			So(err, ShouldBeNil)
			So(ack.Type, ShouldEqual, ws.MessageTypeSubscribed)
			So(waitFor(func() bool { return hub.HasSubscribers("game:snake") }), ShouldBeTrue)

			hub.NotifyLeaderboard("snake", []domain.LeaderboardEntry{{Rank: 1, PlayerID: "p1", Score: 300}})
			f, err := readFrame(conn)
			So(err, ShouldBeNil)
			So(f.Type, ShouldEqual, ws.MessageTypeLeaderboardUpdate)

			var update ws.LeaderboardUpdate
			So(json.Unmarshal(f.Data, &update), ShouldBeNil)
			So(update.Game, ShouldEqual, "snake")
			So(update.Entries[0].Score, ShouldEqual, 300)

			Convey("and leave it again", func() {
				So(conn.WriteJSON(ws.ClientMessage{Type: ws.MessageTypeUnsubscribe, Topic: "game:snake"}), ShouldBeNil)
				ack, err := readFrame(conn)
				So(err, ShouldBeNil)
				So(ack.Type, ShouldEqual, ws.MessageTypeUnsubscribed)
				So(waitFor(func() bool { return !hub.HasSubscribers("game:snake") }), ShouldBeTrue)
			})
		})

		Convey("Bad control messages get an error frame", func() {
			conn, _, err := gws.DefaultDialer.Dial(base, nil)
			So(err, ShouldBeNil)
			defer conn.Close()

			So(conn.WriteJSON(ws.ClientMessage{Type: ws.MessageTypeSubscribe, Topic: "lobby"}), ShouldBeNil)
			f, err := readFrame(conn)
			So(err, ShouldBeNil)
			So(f.Type, ShouldEqual, ws.MessageTypeError)

			So(conn.WriteMessage(gws.TextMessage, []byte("{not json")), ShouldBeNil)
			f, err = readFrame(conn)
			So(err, ShouldBeNil)
			So(f.Type, ShouldEqual, ws.MessageTypeError)
		})

		Convey("Ping is answered with pong", func() {
			conn, _, err := gws.DefaultDialer.Dial(base, nil)
			So(err, ShouldBeNil)
			defer conn.Close()

			So(conn.WriteJSON(ws.ClientMessage{Type: ws.MessageTypePing}), ShouldBeNil)
			f, err := readFrame(conn)
			So(err, ShouldBeNil)
			So(f.Type, ShouldEqual, ws.MessageTypePong)
		})

		Convey("Disconnects drop the client and its subscriptions", func() {
			conn, _, err := gws.DefaultDialer.Dial(base+"?player=p9", nil)
			So(err, ShouldBeNil)
			So(waitFor(func() bool { return hub.GetSubscriberCount("player:p9") == 1 }), ShouldBeTrue)

			conn.Close()
			So(waitFor(func() bool { return hub.GetTotalConnections() == 0 }), ShouldBeTrue)
			So(hub.GetSubscriberCount("player:p9"), ShouldEqual, 0)
		})
	})
}
