package tray

import (
	_ "embed"
	"log"

	"github.com/getlantern/systray"
	"github.com/pkg/browser"

	"github.com/xArmad/reposter/internal/app"
	"github.com/xArmad/reposter/internal/config"
)

//go:embed icon.png
var iconBytes []byte

// OnReady returns a systray onReady callback that sets up the menu.
func OnReady(a *app.App) func() {
	return func() {
		// Set icon (template icon for macOS menu bar styling)
		systray.SetTemplateIcon(iconBytes, iconBytes)
		systray.SetTitle("")
		systray.SetTooltip("reposter - cross-post between your accounts")

		// Account status (disabled, just for display)
		mStatus := systray.AddMenuItem(statusLabel(a), "Connected accounts")
		mStatus.Disable()

		mConnect := systray.AddMenuItem("Connect Account...", "Open a browser login for a new or expired account")

		systray.AddSeparator()

		mRefresh := systray.AddMenuItem("Refresh Feed", "Re-fetch the main account's recent posts")
		mRepostLatest := systray.AddMenuItem("Repost Latest", "Repost the newest post to all other accounts")
		mCancel := systray.AddMenuItem("Cancel Repost", "Stop the repost currently running")

		systray.AddSeparator()

		// Auto-repost toggle
		var autoLabel string
		if a.AutoRepostEnabled() {
			autoLabel = "Disable Auto-Repost"
		} else {
			autoLabel = "Enable Auto-Repost"
		}
		mAuto := systray.AddMenuItem(autoLabel, "Toggle the recurring auto-repost scan")
		mScanNow := systray.AddMenuItem("Scan Now", "Run one auto-repost pass immediately")

		systray.AddSeparator()

		mViewReport := systray.AddMenuItem("View Activity Report", "Open the latest activity report")

		mEditConfig := systray.AddMenuItem("Edit Config", "Open config file in editor")
		mReloadConfig := systray.AddMenuItem("Reload Config", "Reload configuration from disk")

		systray.AddSeparator()

		mQuit := systray.AddMenuItem("Quit", "Exit reposter")

		updateUI := func() {
			mStatus.SetTitle(statusLabel(a))
			if a.AutoRepostEnabled() {
				mAuto.SetTitle("Disable Auto-Repost")
			} else {
				mAuto.SetTitle("Enable Auto-Repost")
			}
		}

		// Handle menu clicks
		go func() {
			for {
				select {
				case <-mConnect.ClickedCh:
					go func() {
						username, err := a.ConnectAccount()
						if err != nil {
							log.Printf("Connect error: %v", err)
						} else {
							log.Printf("Connected account: %s", username)
						}
						updateUI()
					}()

				case <-mRefresh.ClickedCh:
					go func() {
						main, ok := a.MainAccount()
						if !ok {
							log.Println("Refresh skipped: no main account connected")
							return
						}
						if err := a.RefreshFeed(main); err != nil {
							log.Printf("Refresh error: %v", err)
						}
					}()

				case <-mRepostLatest.ClickedCh:
					go func() {
						if err := a.RepostLatest(); err != nil {
							log.Printf("Repost latest error: %v", err)
						}
					}()

				case <-mCancel.ClickedCh:
					a.CancelRepost()

				case <-mAuto.ClickedCh:
					if a.AutoRepostEnabled() {
						a.DisableAutoRepost()
					} else if err := a.EnableAutoRepost(); err != nil {
						log.Printf("Failed to enable auto-repost: %v", err)
					}
					updateUI()

				case <-mScanNow.ClickedCh:
					go func() {
						if err := a.RunScan(); err != nil {
							log.Printf("Scan error: %v", err)
						}
					}()

				case <-mViewReport.ClickedCh:
					if err := a.ViewLastReport(); err != nil {
						log.Printf("View report error: %v", err)
					}

				case <-mEditConfig.ClickedCh:
					path, err := config.ConfigPath()
					if err != nil {
						log.Printf("Failed to get config path: %v", err)
						continue
					}
					if err := browser.OpenFile(path); err != nil {
						log.Printf("Failed to open config file: %v", err)
					}

				case <-mReloadConfig.ClickedCh:
					if err := a.ReloadConfig(); err != nil {
						log.Printf("Failed to reload config: %v", err)
					}
					updateUI()

				case <-mQuit.ClickedCh:
					systray.Quit()
				}
			}
		}()
	}
}

// OnExit is the systray onExit callback.
func OnExit() {
	log.Println("reposter shutting down...")
}

func statusLabel(a *app.App) string {
	accts := a.Accounts()
	connected := 0
	for _, acct := range accts {
		if a.IsAuthenticated(acct.Username) {
			connected++
		}
	}
	if len(accts) == 0 {
		return "○ No accounts"
	}
	if connected == len(accts) {
		return "● All accounts connected"
	}
	return "◐ Some sessions expired"
}
