// Command nexus is the productivity hub CLI: bookmarks, password vault,
// calendar and the AI assistant, backed either by the device-local store or
// by a remote API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexushub/nexus/internal/assistant"
	"github.com/nexushub/nexus/internal/errs"
	"github.com/nexushub/nexus/internal/kvstore"
	"github.com/nexushub/nexus/internal/model"
	"github.com/nexushub/nexus/internal/store"
	"github.com/nexushub/nexus/internal/store/local"
	"github.com/nexushub/nexus/internal/store/rest"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// ---- config/state store ----

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "nexus")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "nexus")
}

func dbPath() string { return filepath.Join(cfgDir(), "hub.db") }

// openStore opens the device database and picks the backend. The remote
// backend shares the same medium for token, session and chat history.
func openStore(remote bool, addr string, logger *zap.Logger) (store.Store, func(), error) {
	_ = os.MkdirAll(cfgDir(), 0o700)
	kv, err := kvstore.NewSQLite(dbPath(), kvstore.DefaultQuota)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = kv.Close() }
	if remote {
		return rest.New(addr, kv, logger), closeFn, nil
	}
	return local.New(kv, logger), closeFn, nil
}

// requireUser loads the persisted session or exits.
func requireUser(ctx context.Context, s store.Store) *model.User {
	u, ok, err := s.ActiveUser(ctx)
	if err != nil {
		fail(err)
	}
	if !ok {
		fail(errors.New("not signed in (run `nexus login` first)"))
	}
	return u
}

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	switch {
	case errors.Is(err, errs.ErrStorageFull):
		fmt.Fprintln(os.Stderr, "storage is full, please delete old items")
	case errors.Is(err, errs.ErrUnauthorized):
		fmt.Fprintln(os.Stderr, "invalid credentials or expired session")
	case errors.Is(err, errs.ErrAlreadyExists):
		fmt.Fprintln(os.Stderr, "already exists")
	default:
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, `nexus CLI
Usage:
  nexus [-remote -addr URL] [-api-key KEY] <cmd> [args]

Commands:
  version
  register      -email <e> -password <p> -name <n>
  login         -email <e> -password <p>
  logout
  whoami
  links                                    (list bookmarks)
  add-link      -url <u> [-title <t>] [-category <c>] (AI fills gaps when keyed)
  rm-link       -id <id>
  passwords                                (list vault entries)
  add-password  -site <s> -username <u> -password <p> [-category <c>]
  rm-password   -id <id>
  events                                   (list calendar)
  add-event     -title <t> -date <iso> [-type <t>]
  plan          <natural language>         (AI-parsed event)
  done-event    -id <id>
  rm-event      -id <id>
  chat          <message>
  tip                                      (productivity tip)
  cleanup       [-all]                     (prune chat history)
`)
	os.Exit(2)
}

// main dispatches subcommands against the selected backend.
func main() {
	remote := flag.Bool("remote", false, "use the remote API server")
	addr := flag.String("addr", "http://localhost:8080", "remote server URL")
	apiKey := flag.String("api-key", os.Getenv("NEXUS_API_KEY"), "AI assistant API key")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	logger := zap.NewNop()
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	if cmd == "version" {
		fmt.Printf("nexus %s (%s)\n", version, buildDate)
		return
	}

	s, closeStore, err := openStore(*remote, *addr, logger)
	if err != nil {
		fail(err)
	}
	defer closeStore()

	ai := assistant.New(*apiKey, logger)

	switch cmd {

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		email := fs.String("email", "", "email")
		password := fs.String("password", "", "password")
		name := fs.String("name", "", "display name")
		_ = fs.Parse(args)
		if *email == "" || *password == "" || *name == "" {
			fmt.Fprintln(os.Stderr, "need -email, -password and -name")
			os.Exit(1)
		}
		u, err := s.Register(ctx, *email, *password, *name)
		if err != nil {
			fail(err)
		}
		fmt.Printf("welcome, %s\n", u.Name)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("email", "", "email")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)
		if *email == "" || *password == "" {
			fmt.Fprintln(os.Stderr, "need -email and -password")
			os.Exit(1)
		}
		u, err := s.Login(ctx, *email, *password)
		if err != nil {
			fail(err)
		}
		data, err := s.LoadUserData(ctx, u.ID)
		if err != nil {
			fail(err)
		}
		fmt.Printf("signed in as %s (%d links, %d passwords, %d events)\n",
			u.Name, len(data.Links), len(data.Passwords), len(data.Events))

	case "logout":
		if err := s.Logout(ctx); err != nil {
			fail(err)
		}
		fmt.Println("signed out")

	case "whoami":
		u := requireUser(ctx, s)
		printJSON(u)

	case "links":
		u := requireUser(ctx, s)
		links, err := s.GetLinks(ctx, u.ID)
		if err != nil {
			fail(err)
		}
		printJSON(links)

	case "add-link":
		fs := flag.NewFlagSet("add-link", flag.ExitOnError)
		url := fs.String("url", "", "link URL")
		title := fs.String("title", "", "title (AI-suggested when empty)")
		category := fs.String("category", "", "category (AI-suggested when empty)")
		_ = fs.Parse(args)
		if *url == "" {
			fmt.Fprintln(os.Stderr, "need -url")
			os.Exit(1)
		}
		u := requireUser(ctx, s)

		link := model.LinkItem{
			UserID:    u.ID,
			URL:       *url,
			Title:     *title,
			Category:  model.Category(*category),
			CreatedAt: time.Now().UnixMilli(),
		}
		if link.Title == "" || !model.ValidCategory(link.Category) {
			analysis := ai.AnalyzeLink(ctx, *url, *title)
			if link.Title == "" {
				link.Title = analysis.SuggestedTitle
			}
			if !model.ValidCategory(link.Category) {
				link.Category = analysis.Category
			}
			link.Tags = analysis.Tags
		}
		stored, err := s.AddLink(ctx, link)
		if err != nil {
			fail(err)
		}
		printJSON(stored)

	case "rm-link":
		id := parseID(args)
		u := requireUser(ctx, s)
		if err := s.DeleteLink(ctx, id, u.ID); err != nil {
			fail(err)
		}
		fmt.Println("deleted")

	case "passwords":
		u := requireUser(ctx, s)
		items, err := s.GetPasswords(ctx, u.ID)
		if err != nil {
			fail(err)
		}
		printJSON(items)

	case "add-password":
		fs := flag.NewFlagSet("add-password", flag.ExitOnError)
		site := fs.String("site", "", "site")
		username := fs.String("username", "", "username")
		password := fs.String("password", "", "password")
		category := fs.String("category", string(model.CategoryOther), "category")
		_ = fs.Parse(args)
		if *site == "" || *username == "" || *password == "" {
			fmt.Fprintln(os.Stderr, "need -site, -username and -password")
			os.Exit(1)
		}
		u := requireUser(ctx, s)
		stored, err := s.AddPassword(ctx, model.PasswordItem{
			UserID:      u.ID,
			Site:        *site,
			Username:    *username,
			Password:    *password,
			Category:    model.Category(*category),
			Strength:    ratePassword(*password),
			LastUpdated: time.Now().UnixMilli(),
		})
		if err != nil {
			fail(err)
		}
		printJSON(stored)

	case "rm-password":
		id := parseID(args)
		u := requireUser(ctx, s)
		if err := s.DeletePassword(ctx, id, u.ID); err != nil {
			fail(err)
		}
		fmt.Println("deleted")

	case "events":
		u := requireUser(ctx, s)
		events, err := s.GetEvents(ctx, u.ID)
		if err != nil {
			fail(err)
		}
		printJSON(events)

	case "add-event":
		fs := flag.NewFlagSet("add-event", flag.ExitOnError)
		title := fs.String("title", "", "title")
		date := fs.String("date", "", "ISO date")
		typ := fs.String("type", string(model.EventReminder), "event type")
		_ = fs.Parse(args)
		if *title == "" || *date == "" {
			fmt.Fprintln(os.Stderr, "need -title and -date")
			os.Exit(1)
		}
		u := requireUser(ctx, s)
		stored, err := s.AddEvent(ctx, model.CalendarEvent{
			UserID: u.ID, Title: *title, Date: *date, Type: model.EventType(*typ),
		})
		if err != nil {
			fail(err)
		}
		printJSON(stored)

	case "plan":
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "need a description, e.g. `nexus plan dentist next tuesday 3pm`")
			os.Exit(1)
		}
		u := requireUser(ctx, s)
		draft := ai.ParseEvent(ctx, joinArgs(args), time.Now())
		if draft == nil {
			fmt.Fprintln(os.Stderr, "could not understand that; try `add-event` with explicit fields")
			os.Exit(1)
		}
		stored, err := s.AddEvent(ctx, model.CalendarEvent{
			UserID: u.ID, Title: draft.Title, Date: draft.Date, Type: draft.Type,
		})
		if err != nil {
			fail(err)
		}
		printJSON(stored)

	case "done-event":
		id := parseID(args)
		u := requireUser(ctx, s)
		events, err := s.GetEvents(ctx, u.ID)
		if err != nil {
			fail(err)
		}
		for _, e := range events {
			if e.ID == id {
				e.Completed = true
				if err := s.UpdateEvent(ctx, e); err != nil {
					fail(err)
				}
				printJSON(e)
				return
			}
		}
		fmt.Fprintln(os.Stderr, "no such event")
		os.Exit(1)

	case "rm-event":
		id := parseID(args)
		u := requireUser(ctx, s)
		if err := s.DeleteEvent(ctx, id, u.ID); err != nil {
			fail(err)
		}
		fmt.Println("deleted")

	case "chat":
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "need a message")
			os.Exit(1)
		}
		u := requireUser(ctx, s)
		text := joinArgs(args)

		data, err := s.LoadUserData(ctx, u.ID)
		if err != nil {
			fail(err)
		}
		history, err := s.GetChats(ctx, u.ID)
		if err != nil {
			fail(err)
		}
		if _, err := s.AddChat(ctx, model.ChatMessage{
			Role: model.RoleUser, Text: text, Timestamp: time.Now().UnixMilli(),
		}, u.ID); err != nil {
			fail(err)
		}

		reply := ai.Chat(ctx, text, chatContext(u, data, history))
		if _, err := s.AddChat(ctx, model.ChatMessage{
			Role: model.RoleModel, Text: reply, Timestamp: time.Now().UnixMilli(),
		}, u.ID); err != nil {
			fail(err)
		}
		fmt.Println(reply)

	case "tip":
		fmt.Println(ai.ProductivityTip(ctx))

	case "cleanup":
		fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
		all := fs.Bool("all", false, "wipe the entire chat history")
		_ = fs.Parse(args)
		u := requireUser(ctx, s)
		removed, err := s.CleanupStorage(ctx, u.ID, *all)
		if err != nil {
			fail(err)
		}
		fmt.Printf("removed %d message(s)\n", removed)

	default:
		usage()
	}
}

// ---- helpers ----

func parseID(args []string) string {
	fs := flag.NewFlagSet("id", flag.ExitOnError)
	id := fs.String("id", "", "item id")
	_ = fs.Parse(args)
	if *id == "" {
		fmt.Fprintln(os.Stderr, "need -id")
		os.Exit(1)
	}
	return *id
}

// chatContext serializes the user's data and recent transcript for the
// assistant, the same shape the web client sends.
func chatContext(u *model.User, data *model.UserData, history []model.ChatMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", u.Name)
	fmt.Fprintf(&b, "Links: %d, Passwords: %d, Events: %d\n",
		len(data.Links), len(data.Passwords), len(data.Events))
	for _, e := range data.Events {
		if !e.Completed {
			fmt.Fprintf(&b, "Upcoming: %s on %s (%s)\n", e.Title, e.Date, e.Type)
		}
	}
	const recent = 10
	if len(history) > recent {
		history = history[len(history)-recent:]
	}
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
	}
	return b.String()
}

func joinArgs(args []string) string {
	out := args[0]
	for _, a := range args[1:] {
		out += " " + a
	}
	return out
}

// ratePassword is the same coarse client-side heuristic the web UI shows:
// length plus character variety.
func ratePassword(p string) model.PasswordStrength {
	var upper, digit, symbol bool
	for _, r := range p {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case r < 'a' || r > 'z':
			symbol = true
		}
	}
	variety := 0
	for _, ok := range []bool{upper, digit, symbol} {
		if ok {
			variety++
		}
	}
	switch {
	case len(p) >= 16, len(p) >= 12 && variety >= 2:
		return model.StrengthStrong
	case len(p) >= 8 && variety >= 1:
		return model.StrengthMedium
	default:
		return model.StrengthWeak
	}
}
