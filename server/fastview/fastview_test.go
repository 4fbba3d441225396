package fastview

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	. "github.com/smartystreets/goconvey/convey"
)

// testView emits one text update per view-model.
type testView struct {
	id      string
	updates <-chan []EleUpdate
}

func newTestView(id string) ViewBuilderFunc[string] {
	return func(done <-chan struct{}, vms <-chan string) ViewComponent {
		tv := &testView{id: id}
		tv.updates = channerics.Convert(done, vms, func(vm string) []EleUpdate {
			return []EleUpdate{{EleId: tv.id, Ops: []Op{{Key: TEXT_CONTENT, Value: vm}}}}
		})
		return tv
	}
}

func (tv *testView) Updates() <-chan []EleUpdate {
	return tv.updates
}

func (tv *testView) Parse(t *template.Template) (string, error) {
	_, err := t.Parse(`{{ define "` + tv.id + `" }}<span id="` + tv.id + `">{{ . }}</span>{{ end }}`)
	return tv.id, err
}

func TestViewBuilder(t *testing.T) {
	Convey("Given a view builder", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		input := make(chan int)

		Convey("Build fails without views", func() {
			_, err := NewViewBuilder[int, string]().
				WithModel(input, func(x int) string { return fmt.Sprint(x) }).
				Build()
			So(err, ShouldEqual, ErrNoViews)
		})

		Convey("Build fails without a model", func() {
			_, err := NewViewBuilder[int, string]().
				WithView(newTestView("a")).
				Build()
			So(err, ShouldEqual, ErrNoModel)
		})

		Convey("Every view receives every converted model", func() {
			views, err := NewViewBuilder[int, string]().
				WithContext(ctx).
				WithModel(input, func(x int) string { return fmt.Sprintf("value %d", x) }).
				WithView(newTestView("a")).
				WithView(newTestView("b")).
				Build()
			So(err, ShouldBeNil)
			So(views, ShouldHaveLength, 2)

			go func() { input <- 7 }()
			for i, id := range []string{"a", "b"} {
				select {
				case updates := <-views[i].Updates():
					So(updates, ShouldResemble, []EleUpdate{
						{EleId: id, Ops: []Op{{Key: TEXT_CONTENT, Value: "value 7"}}},
					})
				case <-time.After(time.Second):
					t.Fatal("no update for view " + id)
				}
			}
		})
	})
}

func TestClient(t *testing.T) {
	Convey("Given a websocket client serving an updates chan", t, func() {
		updates := make(chan []EleUpdate)
		syncErrs := make(chan error, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cli, err := NewClient[[]EleUpdate](updates, w, r)
			if err != nil {
				syncErrs <- err
				return
			}
			syncErrs <- cli.Sync()
		}))
		defer srv.Close()

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		So(err, ShouldBeNil)
		defer conn.Close()
		So(conn.SetReadDeadline(time.Now().Add(3*time.Second)), ShouldBeNil)

		update := func(val string) []EleUpdate {
			return []EleUpdate{{EleId: "x", Ops: []Op{{Key: TEXT_CONTENT, Value: val}}}}
		}
		read := func() string {
			var got []EleUpdate
			So(conn.ReadJSON(&got), ShouldBeNil)
			So(got, ShouldHaveLength, 1)
			return got[0].Ops[0].Value
		}

		Convey("The first update is published immediately", func() {
			updates <- update("1")
			So(read(), ShouldEqual, "1")

			Convey("Rapid updates are coalesced, and the latest is never dropped", func() {
				updates <- update("2")
				updates <- update("3")
				updates <- update("4")
				last := ""
				for last != "4" {
					last = read()
				}
				So(last, ShouldEqual, "4")
			})
		})

		Convey("Sync returns nil when the client closes normally", func() {
			So(conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")), ShouldBeNil)
			select {
			case err := <-syncErrs:
				So(err, ShouldBeNil)
			case <-time.After(3 * time.Second):
				t.Fatal("sync did not return")
			}
		})
	})
}
