package models

// AspectRatio is the frame ratio requested from the image model.
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectPortrait  AspectRatio = "3:4"
	AspectLandscape AspectRatio = "4:3"
	AspectMobile    AspectRatio = "9:16"
	AspectWide      AspectRatio = "16:9"
)

// AspectRatios lists every supported ratio in display order.
var AspectRatios = []AspectRatio{AspectSquare, AspectPortrait, AspectLandscape, AspectMobile, AspectWide}

func (a AspectRatio) Valid() bool {
	for _, known := range AspectRatios {
		if a == known {
			return true
		}
	}
	return false
}

// User is a directory record. Email is the storage key; ID is the identity
// provider's uid.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Credits int    `json:"credits"`
	IsAdmin bool   `json:"isAdmin,omitempty"`
}

type GeneratedImage struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	Prompt      string      `json:"prompt"`
	ImageURL    string      `json:"imageUrl"`
	AspectRatio AspectRatio `json:"aspectRatio"`
	// Timestamp is epoch milliseconds.
	Timestamp int64 `json:"timestamp"`
}

type CreditPlan struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Credits      int     `json:"credits"`
	Price        float64 `json:"price"`
	Popular      bool    `json:"popular,omitempty"`
	ExternalLink string  `json:"externalLink,omitempty"`
}

type AdminStats struct {
	TotalUsers   int `json:"totalUsers"`
	TotalCredits int `json:"totalCredits"`
	TotalImages  int `json:"totalImages"`
	ActiveToday  int `json:"activeToday"`
}
