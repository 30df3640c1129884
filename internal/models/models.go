package models

import "time"

type Profile struct {
	ID        int64     `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LibraryEntry is one saved show in a profile's library, carrying a snapshot
// of the remote catalog record it resolved to. MediaID is the upstream
// catalog id; a nil MediaID means the title never resolved.
type LibraryEntry struct {
	ID            int64      `json:"id"`
	ProfileID     int64      `json:"profileId"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	Rating        *float64   `json:"rating,omitempty"`
	MediaID       *int       `json:"mediaId,omitempty"`
	DisplayTitle  *string    `json:"displayTitle,omitempty"`
	NativeTitle   *string    `json:"nativeTitle,omitempty"`
	RomajiTitle   *string    `json:"romajiTitle,omitempty"`
	EnglishTitle  *string    `json:"englishTitle,omitempty"`
	CoverImageURL *string    `json:"coverImageUrl,omitempty"`
	BannerImage   *string    `json:"bannerImage,omitempty"`
	Season        *string    `json:"season,omitempty"`
	SeasonYear    *int       `json:"seasonYear,omitempty"`
	AiringStatus  *string    `json:"airingStatus,omitempty"`
	Episodes      *int       `json:"episodes,omitempty"`
	AverageScore  *int       `json:"averageScore,omitempty"`
	Format        *string    `json:"format,omitempty"`
	Description   *string    `json:"description,omitempty"`
	WatchedAt     *time.Time `json:"watchedAt,omitempty"`
	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}
