package discord

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/koivu/rolewarden/internal/directory"
)

func restErr(status int) error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status},
		Message:  &discordgo.APIErrorMessage{Message: http.StatusText(status)},
	}
}

func TestMapErrTaxonomy(t *testing.T) {
	if err := mapErr(restErr(http.StatusForbidden)); !errors.Is(err, directory.ErrForbidden) {
		t.Fatalf("403 should map to forbidden, got %v", err)
	}
	if err := mapErr(restErr(http.StatusNotFound)); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("404 should map to not found, got %v", err)
	}

	err := mapErr(restErr(http.StatusInternalServerError))
	if errors.Is(err, directory.ErrForbidden) || errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("500 should stay a transport error, got %v", err)
	}
	if mapErr(errors.New("dial tcp: timeout")) == nil {
		t.Fatalf("plain errors must pass through")
	}
	if mapErr(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestSnapshotProjection(t *testing.T) {
	joined := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := &discordgo.Member{
		User:     &discordgo.User{ID: "1", Username: "pat123", GlobalName: "Pat", Bot: true},
		Pending:  true,
		JoinedAt: joined,
		Roles:    []string{"100", "200"},
	}

	got := snapshot(m)
	if got.ID != "1" || !got.Bot || !got.Pending {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if !got.JoinedAt.Equal(joined) || !got.Joined() {
		t.Fatalf("join time lost: %+v", got)
	}
	if !got.HasRole("200") || got.HasRole("300") {
		t.Fatalf("roles lost: %+v", got)
	}
}

func TestDisplayNamePrecedence(t *testing.T) {
	m := &discordgo.Member{User: &discordgo.User{Username: "pat123", GlobalName: "Pat"}}
	if displayName(m) != "Pat" {
		t.Fatalf("global name should beat username")
	}
	m.Nick = "Skipper"
	if displayName(m) != "Skipper" {
		t.Fatalf("nickname should win")
	}
	m.Nick = ""
	m.User.GlobalName = ""
	if displayName(m) != "pat123" {
		t.Fatalf("username is the fallback")
	}
}
