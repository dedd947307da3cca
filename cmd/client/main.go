// Command client is a headless terminal client: it joins one event over the
// realtime protocol and prints the mirrored state as broadcasts arrive.
// With -passcode it instead follows the admin event catalogue.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/splitpot/api/internal/client"
	"github.com/splitpot/api/internal/model"
	"github.com/splitpot/api/pkg/logging"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/ws", "websocket endpoint")
		code     = flag.String("code", "", "invitation code of the event to follow")
		passcode = flag.String("passcode", "", "admin passcode; follows the event catalogue instead of one event")
	)
	flag.Parse()

	logging.Setup()

	if *code == "" && *passcode == "" {
		fmt.Fprintln(os.Stderr, "usage: client -code <invitation code> | client -passcode <admin passcode>")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transport, err := client.Dial(ctx, *url, slog.Default())
	if err != nil {
		slog.Error("connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = transport.Close() }()

	session := client.NewSessionManager(transport, nil, slog.Default())
	session.OnReply = func(status *model.StatusEntity) {
		if status.Status != model.StatusOK {
			slog.Warn("command rejected",
				slog.String("status", string(status.Status)),
				slog.String("message", status.Message),
				slog.Bool("unsolvable", status.Unsolvable),
			)
		}
	}

	if *passcode != "" {
		session.Admin.OnEventsChanged = func() { printCatalogue(session) }
		if err := session.SubscribeToAdmin(*passcode); err != nil {
			slog.Error("admin subscribe failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else {
		session.Mirror.OnParticipantsChanged = func() { printEvent(session) }
		session.Mirror.OnExpensesChanged = func() { printEvent(session) }
		session.Mirror.OnEventChanged = func() { printEvent(session) }
		session.Mirror.OnEventDeleted = func() {
			fmt.Println("event was deleted on the server")
		}
		if err := session.SubscribeToEvent(*code); err != nil {
			slog.Error("subscribe failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	if err := session.Run(ctx); err != nil {
		slog.Error("session ended", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func printEvent(session *client.SessionManager) {
	ev := session.Mirror.Event()
	if ev == nil {
		return
	}
	fmt.Printf("\n== %s (%s) ==\n", ev.Title, ev.InvitationCode)

	fmt.Println("participants:")
	for _, p := range session.Mirror.Participants() {
		fmt.Printf("  %s %s\n", p.FirstName, p.LastName)
	}

	fmt.Println("expenses:")
	for _, e := range session.Mirror.Expenses() {
		fmt.Printf("  %-24s %8.2f (paid by %s, %d involved)\n", e.Title, e.Amount, e.PayerID, len(e.Involveds))
	}
}

func printCatalogue(session *client.SessionManager) {
	fmt.Println("\n== events ==")
	for _, ev := range session.Admin.Events() {
		fmt.Printf("  %s  %-32s last activity %s\n", ev.InvitationCode, ev.Title, ev.LastActivity.Format("2006-01-02 15:04:05"))
	}
}
