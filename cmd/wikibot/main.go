// Command wikibot runs a short bot session against a MediaWiki wiki.
//
// Usage:
//
//	go run ./cmd/wikibot -page Wikipedia -history 10 -category Physics
//
// Every operation is queued up front and the bot sends them one at a time,
// spaced by the configured rate. Credentials come from MEDIAWIKI_USERNAME and
// MEDIAWIKI_PASSWORD (or the -config file); without them the session stays
// anonymous.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/olgasafonova/mediawiki-bot/scheduler"
	"github.com/olgasafonova/mediawiki-bot/wiki"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (environment variables override it)")
	page := flag.String("page", "Wikipedia", "Page to read")
	historyCount := flag.Int("history", 10, "Number of revisions to list (0 to skip)")
	category := flag.String("category", "", "Category to list (empty to skip)")
	editTitle := flag.String("edit-title", "", "Page to append a section to (empty to skip)")
	editText := flag.String("edit-text", "Hello from wikibot. ~~~~", "Section body used with -edit-title")
	rate := flag.Duration("rate", 0, "Override the interval between requests")
	timeout := flag.Duration("timeout", 10*time.Minute, "Overall session timeout")
	verbose := flag.Bool("verbose", false, "Log every request")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(*configPath, *rate, *timeout, logger, session{
		page:         *page,
		historyCount: *historyCount,
		category:     *category,
		editTitle:    *editTitle,
		editText:     *editText,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type session struct {
	page         string
	historyCount int
	category     string
	editTitle    string
	editText     string
}

func run(configPath string, rate, timeout time.Duration, logger *slog.Logger, s session) error {
	var (
		cfg *wiki.Config
		err error
	)
	if configPath != "" {
		cfg, err = wiki.LoadConfigFile(configPath)
	} else {
		cfg, err = wiki.LoadConfig()
	}
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if rate > 0 {
		cfg.Rate = rate
	}

	bot, err := wiki.New(*cfg, wiki.WithLogger(logger))
	if err != nil {
		return err
	}
	defer bot.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fmt.Printf("Wiki: %s (one request every %v)\n\n", cfg.BaseURL, cfg.Rate)

	// Queue everything first; the bot works through it in order.
	var login *scheduler.Future[string]
	if cfg.HasCredentials() {
		login = bot.Login(cfg.Username, cfg.Password)
	}
	whoami := bot.WhoAmI()
	userinfo := bot.UserInfo()
	content := bot.Page(s.page)
	var history *scheduler.Future[wiki.History]
	if s.historyCount > 0 {
		history = bot.History(s.page, s.historyCount)
	}
	var members *scheduler.Future[wiki.CategoryMembers]
	if s.category != "" {
		members = bot.Category(s.category)
	}
	fmt.Printf("Queued %d requests\n\n", bot.Pending())

	if login != nil {
		name, err := login.Wait(ctx)
		if err != nil {
			fmt.Printf("Login Failed: %v\n", err)
		} else {
			fmt.Printf("Login Successful: %s\n", name)
		}
	}

	if name, err := whoami.Wait(ctx); err == nil {
		fmt.Printf("User: %s\n", name)
	} else {
		fmt.Printf("whoami: %v\n", err)
	}

	if info, err := userinfo.Wait(ctx); err == nil {
		fmt.Printf("User info: id=%d name=%s anonymous=%v\n", info.ID, info.Name, info.Anonymous)
	} else {
		fmt.Printf("userinfo: %v\n", err)
	}
	fmt.Println()

	if pc, err := content.Wait(ctx); err == nil {
		printPage(pc)
	} else {
		fmt.Printf("page %s: %v\n", s.page, err)
	}

	if history != nil {
		h, err := history.Wait(ctx)
		if err != nil {
			fmt.Printf("history %s: %v\n", s.page, err)
		} else {
			fmt.Printf("History of %s: %d revisions\n", h.Title, len(h.Revisions))
			for _, rev := range h.Revisions {
				fmt.Printf("  %d  %s  %-20s  %s\n", rev.RevID, rev.Timestamp, rev.User, rev.Comment)
			}
			fmt.Println()

			if len(h.Revisions) > 1 {
				if pc, err := bot.Revision(h.Revisions[1].RevID).Wait(ctx); err == nil {
					fmt.Printf("Previous revision %d:\n", h.Revisions[1].RevID)
					printPage(pc)
				} else {
					fmt.Printf("revision: %v\n", err)
				}
			}
		}
	}

	if members != nil {
		m, err := members.Wait(ctx)
		if err != nil {
			fmt.Printf("category %s: %v\n", s.category, err)
		} else {
			fmt.Printf("%s: %d pages, %d subcategories\n", m.Category, len(m.Pages), len(m.Subcategories))
			for _, sub := range m.Subcategories {
				fmt.Printf("  [sub] %s\n", sub.Title)
			}
			for _, p := range m.Pages {
				fmt.Printf("  %s\n", p.Title)
			}
			fmt.Println()
		}
	}

	if s.editTitle != "" {
		res, err := bot.Add(s.editTitle, "wikibot test", s.editText).Wait(ctx)
		if err != nil {
			fmt.Printf("edit %s: %v\n", s.editTitle, err)
		} else {
			fmt.Printf("Edited %s: revision %d -> %d\n\n", res.Title, res.OldRevID, res.NewRevID)
		}
	}

	if login != nil {
		if _, err := bot.Logout().Wait(ctx); err == nil {
			fmt.Println("Logged out")
		} else {
			fmt.Printf("logout: %v\n", err)
		}
	}
	return nil
}

func printPage(pc wiki.PageContent) {
	fmt.Println(pc.Title)
	fmt.Println(len(pc.Content))
	fmt.Println(pc.Timestamp)
	fmt.Println()
}
