package web

// Instagram DOM selectors
// These are isolated here because the platform changes their DOM frequently
// Update these when fetching or uploading breaks

const (
	// Profile feed selectors
	ProfileGrid = `main article`
	GridItem    = `main a[href*="/p/"], main a[href*="/reel/"]`

	// Logged-in indicator on the home page
	HomeIndicator = `svg[aria-label="Home"]`

	// Create-post flow selectors
	NewPostButton = `svg[aria-label="New post"]`
	FileInput     = `input[type="file"]`
	DialogButtons = `div[role="dialog"] [role="button"], div[role="dialog"] button`
	CaptionBox    = `div[role="dialog"] div[aria-label^="Write a caption"]`
	ShareDialog   = `div[role="dialog"]`

	// Upload outcome indicators
	SharedIndicator = `img[alt="Animated checkmark"]`
)

// Button labels driven by text lookup in the create flow
const (
	NextLabel  = "Next"
	ShareLabel = "Share"
)

// Error banner fragments the platform shows when throttling or blocking
const (
	RateLimitText     = "Try Again Later"
	ActionBlockedText = "Action Blocked"
)

// Common wait conditions
const (
	WaitForProfile = ProfileGrid
)
