package wssurface

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

type viewer struct {
	conn *websocket.Conn
	send chan []byte
}

// Handler serves the viewer endpoints:
//
//	GET /ws            WebSocket; one binary JPEG message per presented frame
//	GET /snapshot.jpg  the most recent frame
func (s *Surface) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/snapshot.jpg", s.serveSnapshot)
	return mux
}

func (s *Surface) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	data := s.last
	s.mu.Unlock()
	if data == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(data)
}

func (s *Surface) serveWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	v := &viewer{conn: conn, send: make(chan []byte, viewerBuffer)}
	s.mu.Lock()
	s.viewers[v] = struct{}{}
	n := len(s.viewers)
	s.mu.Unlock()
	s.logger.Debug("Viewer %s connected (%d viewers)", r.RemoteAddr, n)

	go s.writePump(v)
	s.readPump(v)

	s.mu.Lock()
	if _, ok := s.viewers[v]; ok {
		delete(s.viewers, v)
		close(v.send)
	}
	s.mu.Unlock()
	s.logger.Debug("Viewer %s disconnected", r.RemoteAddr)
}

// readPump discards viewer messages and keeps the read deadline alive on pongs.
func (s *Surface) readPump(v *viewer) {
	defer v.conn.Close()
	v.conn.SetReadLimit(512)
	v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		v.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Debug("Viewer read error: %v", err)
			}
			return
		}
	}
}

func (s *Surface) writePump(v *viewer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		v.conn.Close()
	}()

	for {
		select {
		case data, ok := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				v.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := v.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
