package main

import (
	"log"
	"os"

	"github.com/getlantern/systray"

	"github.com/xArmad/reposter/internal/accounts"
	"github.com/xArmad/reposter/internal/app"
	"github.com/xArmad/reposter/internal/auth"
	"github.com/xArmad/reposter/internal/config"
	"github.com/xArmad/reposter/internal/scheduler"
	"github.com/xArmad/reposter/internal/store"
	"github.com/xArmad/reposter/internal/tray"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load or create configuration
	cfg, err := config.Load()
	if err != nil {
		if os.IsNotExist(err) {
			// First run - create default config
			cfg = config.Default()
			if err := cfg.Save(); err != nil {
				log.Printf("Warning: could not save default config: %v", err)
			} else {
				path, _ := config.ConfigPath()
				log.Printf("Created default config at: %s", path)
			}
		} else {
			log.Printf("Warning: could not load config: %v (using defaults)", err)
			cfg = config.Default()
		}
	}

	// Connected accounts
	accountsPath, err := accounts.DefaultPath()
	if err != nil {
		log.Fatalf("Failed to get accounts path: %v", err)
	}
	accts, err := accounts.New(accountsPath)
	if err != nil {
		log.Fatalf("Failed to load accounts: %v", err)
	}

	authManager := auth.NewManager()

	// Content cache and repost history
	dbPath, err := store.DefaultPath()
	if err != nil {
		log.Fatalf("Failed to get database path: %v", err)
	}
	st, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	sched, err := scheduler.New(cfg.Auto.Timezone)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	a, err := app.New(cfg, accts, authManager, st, sched)
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	if cfg.Auto.Enabled {
		if err := a.EnableAutoRepost(); err != nil {
			log.Printf("Warning: could not enable auto-repost: %v", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	log.Println("reposter starting...")

	// Run systray (blocks until Quit)
	systray.Run(tray.OnReady(a), tray.OnExit)
}
