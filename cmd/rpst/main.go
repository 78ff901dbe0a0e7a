// Command rpst is a dev CLI for reposter maintenance and debugging tasks.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/pkg/browser"

	"github.com/xArmad/reposter/internal/accounts"
	"github.com/xArmad/reposter/internal/app"
	"github.com/xArmad/reposter/internal/auth"
	browseropts "github.com/xArmad/reposter/internal/browser"
	"github.com/xArmad/reposter/internal/config"
	"github.com/xArmad/reposter/internal/scheduler"
	"github.com/xArmad/reposter/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "bot-test":
		runBotTest()
		os.Exit(0)
	case "login":
		if len(os.Args) < 3 {
			fmt.Println("Usage: rpst login <username>")
			os.Exit(1)
		}
		runLogin(os.Args[2])
	case "scan":
		runScan()
	case "report":
		runReport()
	case "open":
		if len(os.Args) < 3 {
			fmt.Println("Usage: rpst open <config|cache|data>")
			os.Exit(1)
		}
		runOpen(os.Args[2])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: rpst <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  bot-test       Open bot.sannysoft.com to audit browser fingerprint")
	fmt.Println("  login <user>   Re-run the interactive login for an account")
	fmt.Println("  scan           Run one auto-repost pass and exit")
	fmt.Println("  report         Build an activity report and open it")
	fmt.Println("  open config    Open config file in default editor")
	fmt.Println("  open cache     Open cache directory in file explorer")
	fmt.Println("  open data      Open data directory in file explorer")
}

func runBotTest() {
	log.Println("Opening bot.sannysoft.com with stealth browser options...")

	opts := browseropts.Options(false) // non-headless so you can see it

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	defer cancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	go func() {
		err := chromedp.Run(ctx,
			chromedp.Navigate("https://bot.sannysoft.com"),
		)
		if err != nil {
			log.Printf("Failed to navigate: %v", err)
		}
	}()

	fmt.Println("Press Enter to end program...")
	fmt.Scanln()

	log.Println("Done.")
}

func runLogin(username string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := auth.NewManager().Login(ctx, username); err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	log.Printf("Session saved for %s", username)
}

func runScan() {
	a := buildApp()
	if err := a.RunScan(); err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	log.Println("Scan complete.")
}

func runReport() {
	a := buildApp()
	path, err := a.BuildReport()
	if err != nil {
		log.Fatalf("Failed to build report: %v", err)
	}
	log.Printf("Report written: %s", path)
	if err := browser.OpenFile(path); err != nil {
		log.Fatalf("Failed to open report: %v", err)
	}
}

func runOpen(target string) {
	var path string
	var err error

	switch target {
	case "config":
		path, err = config.ConfigPath()
	case "cache":
		path, err = config.CacheDir()
	case "data":
		path, err = config.DataDir()
	default:
		fmt.Printf("Unknown target: %s\n", target)
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Failed to get path: %v", err)
	}

	if err := browser.OpenFile(path); err != nil {
		log.Fatalf("Failed to open: %v", err)
	}
}

// buildApp wires the same components as the tray entrypoint, minus the tray.
func buildApp() *app.App {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}

	accountsPath, err := accounts.DefaultPath()
	if err != nil {
		log.Fatalf("Failed to get accounts path: %v", err)
	}
	accts, err := accounts.New(accountsPath)
	if err != nil {
		log.Fatalf("Failed to load accounts: %v", err)
	}

	dbPath, err := store.DefaultPath()
	if err != nil {
		log.Fatalf("Failed to get database path: %v", err)
	}
	st, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	sched, err := scheduler.New(cfg.Auto.Timezone)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	a, err := app.New(cfg, accts, auth.NewManager(), st, sched)
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}
	return a
}
