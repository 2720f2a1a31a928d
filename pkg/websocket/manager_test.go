package websocket

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type stubSigner struct{}

func (stubSigner) SignHeaders(method, path string) (map[string]string, error) {
	return map[string]string{"KALSHI-ACCESS-KEY": "test"}, nil
}

func TestManager_ReceivesFill(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatal(err)
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"order_id":"o1","ticker":"X","action":"buy","side":"yes","count":5,"price":50}`))
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	url := "ws" + srv.URL[len("http"):]

	m := New(Config{
		URL:                   url,
		Signer:                stubSigner{},
		DialTimeout:           2 * time.Second,
		ReconnectInitialDelay: 50 * time.Millisecond,
		ReconnectMaxDelay:     time.Second,
		ReconnectBackoffMult:  2,
		MessageBufferSize:     10,
		Logger:                zap.NewNop(),
	})
	m.Start()
	defer m.Close()

	select {
	case fill := <-m.Fills():
		if fill.Ticker != "X" || fill.Count != 5 {
			t.Fatalf("unexpected fill: %+v", fill)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fill")
	}
}
