package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mcdev12/gameroom/go/internal/config"
	"github.com/mcdev12/gameroom/go/internal/room/identity"
	"github.com/mcdev12/gameroom/go/internal/room/store/sqlite"
)

// Room mirrors the JSON fixture
type Room struct {
	Name         string        `json:"name"`
	Owner        string        `json:"owner"`
	Participants []Participant `json:"participants"`
}

// Participant is either a registered user or an anonymous session
type Participant struct {
	User      string `json:"user"`
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
}

func main() {
	file := flag.String("file", "go/internal/assets/rooms.json", "room fixture")
	flag.Parse()

	// 1) Load the JSON snapshot
	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var rooms []Room
	if err := json.Unmarshal(data, &rooms); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Open the development database
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	st, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	// 3) Insert rooms and print how to join them
	users := make(map[string]int64)
	for _, r := range rooms {
		roomID, err := seedRoom(ctx, st, users, r)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed room %q: %v\n", r.Name, err)
			os.Exit(1)
		}

		token, err := identity.IssueToken(users[r.Owner], []byte(cfg.Auth.JWTSecret), 24*time.Hour)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("room %d %q\n", roomID, r.Name)
		fmt.Printf("  owner:  ws://localhost:%s/ws/rooms/%d?token=%s\n", cfg.Server.Port, roomID, token)
		for _, p := range r.Participants {
			if p.SessionID != "" {
				fmt.Printf("  %-6s  ws://localhost:%s/ws/rooms/%d?session_id=%s\n", p.Name+":", cfg.Server.Port, roomID, p.SessionID)
			}
		}
	}
}

func seedRoom(ctx context.Context, st *sqlite.Store, users map[string]int64, r Room) (int64, error) {
	userID := func(name string) (int64, error) {
		if id, ok := users[name]; ok {
			return id, nil
		}
		id, err := st.CreateUser(ctx, name)
		if err != nil {
			return 0, err
		}
		users[name] = id
		return id, nil
	}

	ownerID, err := userID(r.Owner)
	if err != nil {
		return 0, err
	}
	roomID, err := st.CreateRoom(ctx, r.Name, ownerID)
	if err != nil {
		return 0, err
	}

	for _, p := range r.Participants {
		switch {
		case p.User != "":
			id, err := userID(p.User)
			if err != nil {
				return 0, err
			}
			err = st.AddUserParticipant(ctx, roomID, id, p.Name, p.Color)
			if err != nil {
				return 0, err
			}
		case p.SessionID != "":
			if err := st.AddSessionParticipant(ctx, roomID, p.SessionID, p.Name, p.Color); err != nil {
				return 0, err
			}
		default:
			return 0, fmt.Errorf("participant %q has neither user nor session_id", p.Name)
		}
	}
	return roomID, nil
}
