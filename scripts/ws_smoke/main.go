package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Will-23-K/chatsphere/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	httpAddr := flag.String("http", "http://localhost:8080", "HTTP base address")
	wsAddr := flag.String("ws", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "smoketester", "username to register and log in with")
	pass := flag.String("pass", "smoke-pass", "password")
	room := flag.String("room", "general", "room name to join")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	token, err := obtainToken(ctx, *httpAddr, *user, *pass)
	if err != nil {
		return err
	}
	fmt.Println("Logged in, token obtained")

	conn, _, err := websocket.Dial(ctx, *wsAddr+"?token="+token, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, v any) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := send(proto.InboundTypeJoinRoom, proto.JoinRoomData{Room: *room}); err != nil {
		return err
	}
	if err := send(proto.InboundTypeSendMessage, proto.SendMessageData{Room: *room, Text: *text}); err != nil {
		return err
	}

	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received outbound: type=%s", outbound.Type)
		if outbound.Event != "" {
			fmt.Printf(" event=%s", outbound.Event)
		}
		fmt.Println()

		if outbound.Error != nil {
			fmt.Printf("Error: %s (%s)\n", outbound.Error.Msg, outbound.Error.Code)
			return fmt.Errorf("server error: %s", outbound.Error.Code)
		}

		raw, err := json.Marshal(outbound.Data)
		if err != nil {
			return fmt.Errorf("marshal outbound data: %w", err)
		}

		switch outbound.Event {
		case proto.EventInitialData:
			var evt proto.InitialDataPayload
			if err := json.Unmarshal(raw, &evt); err == nil {
				fmt.Printf("InitialData: user=%s room=%s rooms=%d history=%d online=%v\n",
					evt.Username, evt.CurrentRoom, len(evt.Rooms), len(evt.Messages), evt.OnlineUsers)
			}
		case proto.EventRoomJoined:
			var evt proto.RoomJoinedPayload
			if err := json.Unmarshal(raw, &evt); err == nil {
				fmt.Printf("RoomJoined: room=%s history=%d online=%v\n", evt.RoomName, len(evt.Messages), evt.OnlineUsers)
			}
		case proto.EventReceiveMessage:
			var evt proto.MessagePayload
			if unmarshalErr := json.Unmarshal(raw, &evt); unmarshalErr != nil {
				fmt.Printf("Raw data: %s\n", string(raw))
				return fmt.Errorf("unmarshal message: %w", unmarshalErr)
			}
			fmt.Printf("Message: room=%s user=%s text=%q ts=%s\n", evt.Room, evt.Username, evt.Text, evt.Timestamp)
			if evt.Username == *user && evt.Text == *text {
				return nil
			}
		case proto.EventUserJoinedRoom, proto.EventUserLeftRoom:
			var evt proto.PresencePayload
			if err := json.Unmarshal(raw, &evt); err == nil {
				fmt.Printf("Presence: %s room=%s user=%s online=%v\n", outbound.Event, evt.RoomName, evt.Username, evt.OnlineUsers)
			}
		default:
			// keep looping until our own message comes back
		}
	}
}

// obtainToken registers the user (ignoring the already-exists conflict) and logs in.
func obtainToken(ctx context.Context, base, user, pass string) (string, error) {
	creds, err := json.Marshal(map[string]string{"username": user, "password": pass})
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}

	regResp, err := postJSON(ctx, base+"/api/register", creds)
	if err != nil {
		return "", err
	}
	regResp.Body.Close()
	if regResp.StatusCode != http.StatusCreated && regResp.StatusCode != http.StatusConflict {
		return "", fmt.Errorf("register: unexpected status %d", regResp.StatusCode)
	}

	loginResp, err := postJSON(ctx, base+"/api/login", creds)
	if err != nil {
		return "", err
	}
	defer loginResp.Body.Close()
	if loginResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login: unexpected status %d", loginResp.StatusCode)
	}

	var auth struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(loginResp.Body).Decode(&auth); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if auth.Token == "" {
		return "", fmt.Errorf("login: empty token")
	}
	return auth.Token, nil
}

func postJSON(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	return resp, nil
}
