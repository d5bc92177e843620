// The client binary joins (or creates) a jam and mirrors it in the terminal:
// it self-reports this member's playback on a 5s cycle and renders the
// reconciled participant view as other members' tracks change.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"musicjam/internal/client"
	"musicjam/internal/config"
	"musicjam/internal/model"
	"musicjam/internal/playback"
	"musicjam/internal/service"
	"musicjam/internal/view"
)

func main() {
	var (
		serverURL = flag.String("server", "http://localhost:8080", "jam server base URL")
		code      = flag.String("code", "", "jam code to join (empty: create a new jam)")
		token     = flag.String("token", os.Getenv("MEMBER_TOKEN"), "member identity token")
		name      = flag.String("name", "", "display name when minting a dev token")
	)
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	// Without a real identity provider in front, mint a dev token locally
	// with the shared secret.
	if *token == "" {
		displayName := *name
		if displayName == "" {
			displayName = "member-" + uuid.New().String()[:8]
		}
		authSvc := service.NewAuthService(cfg.JWTSecret)
		minted, err := authSvc.MintMemberToken(&model.Identity{
			UserID:        uuid.New().String(),
			DisplayName:   displayName,
			PlaybackToken: os.Getenv("PLAYBACK_TOKEN"),
		}, 24*time.Hour)
		if err != nil {
			log.Fatal("failed to mint token:", err)
		}
		*token = minted
		log.Printf("minted dev token for %s", displayName)
	}

	api := client.NewAPI(*serverURL, *token)

	jamCode := *code
	if jamCode == "" {
		jam, err := api.CreateJam(ctx)
		if err != nil {
			log.Fatal("failed to create jam:", err)
		}
		jamCode = jam.Code
		log.Printf("created jam %s — share this code", jamCode)
	}

	playbackClient := playback.NewClient(cfg.PlaybackBaseURL)
	r := &renderer{
		tracks:        playback.NewTrackCache(playbackClient),
		playbackToken: os.Getenv("PLAYBACK_TOKEN"),
	}
	reconciler := view.NewReconciler(cfg.TransitionDelay, r.renderEvent)

	session := client.NewSession(client.SessionConfig{
		API:            api,
		Source:         playbackClient,
		Reconciler:     reconciler,
		Code:           jamCode,
		WSBaseURL:      wsBase(*serverURL),
		PlaybackToken:  os.Getenv("PLAYBACK_TOKEN"),
		ReportInterval: cfg.ReportInterval,
		PollInterval:   cfg.BackstopInterval,
	})

	jam, err := session.Join(ctx)
	if err != nil {
		log.Fatal("failed to join jam:", err)
	}
	log.Printf("joined jam %s (host %s)", jam.Code, jam.HostUserID)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("leaving jam...")
	leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := session.Leave(leaveCtx); err != nil {
		log.Printf("leave failed: %v", err)
	}
	log.Println("left jam")
}

// renderer prints view events, resolving track IDs to names through the
// metadata cache when a playback token is available.
type renderer struct {
	tracks        *playback.TrackCache
	playbackToken string
}

func (r *renderer) renderEvent(e view.Event) {
	track := "nothing"
	if e.Participant.TrackID != nil {
		track = r.trackLabel(*e.Participant.TrackID)
		if !e.Participant.IsPlaying {
			track += " (paused)"
		}
	}

	switch e.Kind {
	case view.EventApplied:
		log.Printf("%s is here, playing %s", e.Participant.DisplayName, track)
	case view.EventTransitionStart:
		log.Printf("%s is switching...", e.Participant.DisplayName)
	case view.EventTransitionEnd:
		log.Printf("%s is now playing %s", e.Participant.DisplayName, track)
	case view.EventLeft:
		log.Printf("%s left", e.Participant.DisplayName)
	}
}

func (r *renderer) trackLabel(trackID string) string {
	if r.playbackToken == "" {
		return trackID
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	t, err := r.tracks.GetTrack(ctx, r.playbackToken, trackID)
	if err != nil || t == nil {
		return trackID
	}
	if len(t.Artists) > 0 {
		return t.Name + " by " + strings.Join(t.Artists, ", ")
	}
	return t.Name
}

func wsBase(serverURL string) string {
	switch {
	case strings.HasPrefix(serverURL, "https://"):
		return "wss://" + strings.TrimPrefix(serverURL, "https://")
	case strings.HasPrefix(serverURL, "http://"):
		return "ws://" + strings.TrimPrefix(serverURL, "http://")
	default:
		return "ws://" + serverURL
	}
}
