package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/parleyhq/parley/internal/task"
)

// inboundFrame is a client message on the chat websocket.
type inboundFrame struct {
	// Type is "chat" for a model turn or "task" for an image-generation
	// command.
	Type string `json:"type"`

	// Content carries the user input. For tasks it is the command text,
	// e.g. "IMAGINE::a red bicycle".
	Content string `json:"content"`

	// Images carries base64 source images for DESCRIBE and BLEND.
	Images []string `json:"images,omitempty"`
}

// outboundFrame is a server message on the chat websocket.
type outboundFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
}

// wsWriter serialises concurrent writes to one websocket connection.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(ctx context.Context, frame outboundFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Write(ctx, websocket.MessageText, data)
}

// handleChatSocket upgrades to a websocket and serves chat and task
// frames until the client disconnects. Disconnecting mid-stream cancels
// the turn; the partial assistant content is kept.
func (g *Gateway) handleChatSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Warn("websocket accept failed", "error", err)
			return
		}
		defer conn.Close(websocket.StatusInternalError, "closing")

		g.metrics.wsConnections.Inc()
		defer g.metrics.wsConnections.Dec()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		writer := &wsWriter{conn: conn}
		var turns sync.WaitGroup

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				break
			}

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				_ = writer.send(ctx, outboundFrame{Type: "error", Error: "invalid frame"})
				continue
			}

			switch frame.Type {
			case "chat":
				turns.Add(1)
				go func(input string) {
					defer turns.Done()
					g.runChatTurn(ctx, writer, input)
				}(frame.Content)
			case "task":
				g.runTaskTurn(ctx, writer, frame)
			default:
				_ = writer.send(ctx, outboundFrame{Type: "error", Error: "unknown frame type " + frame.Type})
			}
		}

		cancel()
		turns.Wait()
		conn.Close(websocket.StatusNormalClosure, "")
	}
}

// runChatTurn executes one model turn, forwarding cumulative deltas.
func (g *Gateway) runChatTurn(ctx context.Context, writer *wsWriter, input string) {
	g.metrics.chatTurns.Inc()

	userID, assistantID := g.service.Send(ctx, input, func(messageID, content string) {
		_ = writer.send(ctx, outboundFrame{
			Type:      "delta",
			MessageID: messageID,
			Content:   content,
		})
	})

	_ = writer.send(ctx, outboundFrame{
		Type:      "done",
		UserID:    userID,
		MessageID: assistantID,
	})
}

// runTaskTurn parses and submits an image-generation command. The
// submission and the polling that follows render into the placeholder
// message; the client watches it through the session list.
func (g *Gateway) runTaskTurn(ctx context.Context, writer *wsWriter, frame inboundFrame) {
	if g.tasks == nil {
		_ = writer.send(ctx, outboundFrame{Type: "error", Error: "image generation is not configured"})
		return
	}

	sessionID, messageID := g.service.PrepareTaskTurn(frame.Content)

	// A parse failure still flows through Submit, which re-validates and
	// renders the error into the placeholder message.
	req, _ := task.ParseCommand(frame.Content, frame.Images)

	action := req.Action
	if action == "" {
		action = "INVALID"
	}
	g.metrics.taskSubmissions.WithLabelValues(action).Inc()
	g.tasks.Submit(context.WithoutCancel(ctx), sessionID, messageID, req)

	_ = writer.send(ctx, outboundFrame{
		Type:      "task_accepted",
		SessionID: sessionID,
		MessageID: messageID,
	})
}
