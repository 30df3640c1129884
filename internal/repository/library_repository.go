package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel/anime-watchlist/backend/internal/catalog"
	"github.com/gabriel/anime-watchlist/backend/internal/models"
)

type LibraryListOptions struct {
	ProfileID int64
	Statuses  []string
	Seasons   []string
	Year      int
	SortBy    string
	Order     string
	Query     string
	Limit     int
	Offset    int
}

type LibraryRepository struct {
	db *sql.DB
}

// AiringEntry is the slim projection the airing refresh loop works with.
type AiringEntry struct {
	ID            int64
	ProfileID     int64
	Title         string
	MediaID       int
	Episodes      *int
	AiringStatus  *string
	LastCheckedAt *time.Time
}

func NewLibraryRepository(db *sql.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

const libraryEntryColumns = `
	id, profile_id, title, status, rating,
	media_id, display_title, native_title, romaji_title, english_title,
	cover_image_url, banner_image, season, season_year, airing_status,
	episodes, average_score, format, description,
	watched_at, last_checked_at, created_at, updated_at
`

func (r *LibraryRepository) Create(entry *models.LibraryEntry) (*models.LibraryEntry, error) {
	result, err := r.db.Exec(`
		INSERT INTO library_entries (
			profile_id, title, status, rating,
			media_id, display_title, native_title, romaji_title, english_title,
			cover_image_url, banner_image, season, season_year, airing_status,
			episodes, average_score, format, description,
			watched_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CASE WHEN ? = 'watched' THEN CURRENT_TIMESTAMP ELSE NULL END)
	`,
		entry.ProfileID, entry.Title, entry.Status, entry.Rating,
		entry.MediaID, entry.DisplayTitle, entry.NativeTitle, entry.RomajiTitle, entry.EnglishTitle,
		entry.CoverImageURL, entry.BannerImage, entry.Season, entry.SeasonYear, entry.AiringStatus,
		entry.Episodes, entry.AverageScore, entry.Format, entry.Description,
		entry.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("insert library entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get library entry last insert id: %w", err)
	}

	return r.GetByID(entry.ProfileID, id)
}

func (r *LibraryRepository) GetByID(profileID int64, id int64) (*models.LibraryEntry, error) {
	row := r.db.QueryRow(`
		SELECT `+libraryEntryColumns+`
		FROM library_entries
		WHERE id = ? AND profile_id = ?
	`, id, profileID)

	entry, err := scanLibraryEntry(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get library entry by id: %w", err)
	}

	return entry, nil
}

func (r *LibraryRepository) GetByMediaID(profileID int64, mediaID int) (*models.LibraryEntry, error) {
	row := r.db.QueryRow(`
		SELECT `+libraryEntryColumns+`
		FROM library_entries
		WHERE media_id = ? AND profile_id = ?
	`, mediaID, profileID)

	entry, err := scanLibraryEntry(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get library entry by media id: %w", err)
	}

	return entry, nil
}

func (r *LibraryRepository) List(options LibraryListOptions) ([]models.LibraryEntry, error) {
	validSortFields := map[string]string{
		"title":         "COALESCE(display_title, title)",
		"created_at":    "created_at",
		"updated_at":    "updated_at",
		"watched_at":    "watched_at",
		"rating":        "rating",
		"season":        "CASE WHEN season_year IS NULL THEN NULL ELSE season_year * 10 + CASE season WHEN 'WINTER' THEN 1 WHEN 'SPRING' THEN 2 WHEN 'SUMMER' THEN 3 WHEN 'FALL' THEN 4 ELSE 0 END END",
		"average_score": "average_score",
	}
	sortField, ok := validSortFields[options.SortBy]
	if !ok {
		sortField = validSortFields["updated_at"]
	}

	order := strings.ToUpper(options.Order)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	query := `
		SELECT ` + libraryEntryColumns + `
		FROM library_entries
	`

	whereClauses, args := buildLibraryListFilters(options)
	if len(whereClauses) > 0 {
		query += ` WHERE ` + strings.Join(whereClauses, " AND ")
	}

	query += ` ORDER BY ` + sortField + ` ` + order + `, id DESC`

	if options.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, options.Limit)
		if options.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, options.Offset)
		}
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list library entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.LibraryEntry, 0)
	for rows.Next() {
		entry, err := scanLibraryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan library entry row: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate library entry rows: %w", err)
	}

	return entries, nil
}

func (r *LibraryRepository) Count(options LibraryListOptions) (int, error) {
	query := `SELECT COUNT(1) FROM library_entries`
	whereClauses, args := buildLibraryListFilters(options)
	if len(whereClauses) > 0 {
		query += ` WHERE ` + strings.Join(whereClauses, " AND ")
	}

	var total int
	if err := r.db.QueryRow(query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count library entries: %w", err)
	}

	return total, nil
}

func buildLibraryListFilters(options LibraryListOptions) ([]string, []any) {
	args := make([]any, 0, 1)
	whereClauses := make([]string, 0, 1)

	whereClauses = append(whereClauses, `profile_id = ?`)
	args = append(args, options.ProfileID)

	if strings.TrimSpace(options.Query) != "" {
		whereClauses = append(whereClauses, `(LOWER(title) LIKE ? OR LOWER(COALESCE(display_title, '')) LIKE ? OR LOWER(COALESCE(english_title, '')) LIKE ?)`)
		queryLike := "%" + strings.ToLower(strings.TrimSpace(options.Query)) + "%"
		args = append(args, queryLike, queryLike, queryLike)
	}

	if len(options.Statuses) > 0 {
		whereClauses = append(whereClauses, `status IN (`+sqlPlaceholders(len(options.Statuses))+`)`)
		for _, status := range options.Statuses {
			args = append(args, status)
		}
	}

	if len(options.Seasons) > 0 {
		whereClauses = append(whereClauses, `season IN (`+sqlPlaceholders(len(options.Seasons))+`)`)
		for _, season := range options.Seasons {
			args = append(args, strings.ToUpper(strings.TrimSpace(season)))
		}
	}

	if options.Year > 0 {
		whereClauses = append(whereClauses, `season_year = ?`)
		args = append(args, options.Year)
	}

	return whereClauses, args
}

func (r *LibraryRepository) Update(profileID int64, id int64, entry *models.LibraryEntry) (*models.LibraryEntry, error) {
	result, err := r.db.Exec(`
		UPDATE library_entries
		SET
			title = ?,
			status = ?,
			rating = ?,
			watched_at = CASE WHEN ? = 'watched' AND status <> 'watched' THEN CURRENT_TIMESTAMP ELSE watched_at END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		  AND profile_id = ?
	`,
		entry.Title,
		entry.Status,
		entry.Rating,
		entry.Status,
		id,
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("update library entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("library entry update rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(profileID, id)
}

func (r *LibraryRepository) SetStatus(profileID int64, id int64, status string) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE library_entries
		SET
			status = ?,
			watched_at = CASE WHEN ? = 'watched' AND status <> 'watched' THEN CURRENT_TIMESTAMP ELSE watched_at END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND profile_id = ? AND status <> ?
	`, status, status, id, profileID, status)
	if err != nil {
		return false, fmt.Errorf("set library entry status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("library entry status rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *LibraryRepository) SetRating(profileID int64, id int64, rating *float64) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE library_entries
		SET rating = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND profile_id = ? AND rating IS NOT ?
	`, rating, id, profileID, rating)
	if err != nil {
		return false, fmt.Errorf("set library entry rating: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("library entry rating rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *LibraryRepository) Delete(profileID int64, id int64) (bool, error) {
	result, err := r.db.Exec(`DELETE FROM library_entries WHERE id = ? AND profile_id = ?`, id, profileID)
	if err != nil {
		return false, fmt.Errorf("delete library entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("library entry delete rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListAiring returns resolved entries whose snapshot status is on the given
// list; these are the ones worth refreshing. An empty list falls back to the
// releasing and unaired statuses.
func (r *LibraryRepository) ListAiring(statuses []string) ([]AiringEntry, error) {
	if len(statuses) == 0 {
		statuses = []string{catalog.StatusReleasing, catalog.StatusNotYetReleased}
	}

	args := make([]any, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, strings.ToUpper(strings.TrimSpace(status)))
	}

	rows, err := r.db.Query(`
		SELECT id, profile_id, title, media_id, episodes, airing_status, last_checked_at
		FROM library_entries
		WHERE media_id IS NOT NULL
		  AND airing_status IN (`+sqlPlaceholders(len(statuses))+`)
		ORDER BY id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list airing entries: %w", err)
	}
	defer rows.Close()

	items := make([]AiringEntry, 0)
	for rows.Next() {
		var item AiringEntry
		var episodes sql.NullInt64
		var airingStatus sql.NullString
		var lastCheckedAt sql.NullTime
		if err := rows.Scan(&item.ID, &item.ProfileID, &item.Title, &item.MediaID, &episodes, &airingStatus, &lastCheckedAt); err != nil {
			return nil, fmt.Errorf("scan airing entry: %w", err)
		}
		if episodes.Valid {
			value := int(episodes.Int64)
			item.Episodes = &value
		}
		if airingStatus.Valid {
			item.AiringStatus = &airingStatus.String
		}
		if lastCheckedAt.Valid {
			item.LastCheckedAt = &lastCheckedAt.Time
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate airing entries: %w", err)
	}

	return items, nil
}

func (r *LibraryRepository) UpdateAiringState(id int64, episodes *int, airingStatus *string, averageScore *int, checkedAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE library_entries
		SET
			episodes = COALESCE(?, episodes),
			airing_status = COALESCE(?, airing_status),
			average_score = COALESCE(?, average_score),
			last_checked_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, episodes, airingStatus, averageScore, checkedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("update airing state: %w", err)
	}
	return nil
}

// ApplySnapshot copies the resolved catalog record onto the entry's snapshot
// columns. The user-owned fields (title, status, rating) are untouched.
func ApplySnapshot(entry *models.LibraryEntry, record *catalog.Record) {
	if record == nil {
		return
	}

	mediaID := record.ID
	entry.MediaID = &mediaID

	display := record.DisplayTitle()
	if display != "" {
		entry.DisplayTitle = &display
	}
	entry.NativeTitle = record.Title.Native
	entry.RomajiTitle = record.Title.Romaji
	entry.EnglishTitle = record.Title.English

	switch {
	case record.CoverImage.ExtraLarge != nil:
		entry.CoverImageURL = record.CoverImage.ExtraLarge
	case record.CoverImage.Large != nil:
		entry.CoverImageURL = record.CoverImage.Large
	default:
		entry.CoverImageURL = record.CoverImage.Medium
	}

	entry.BannerImage = record.BannerImage
	entry.Season = record.Season
	entry.SeasonYear = record.SeasonYear
	entry.AiringStatus = record.Status
	entry.Episodes = record.Episodes
	entry.AverageScore = record.AverageScore
	entry.Format = record.Format
	entry.Description = record.Description
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLibraryEntry(scanner rowScanner) (*models.LibraryEntry, error) {
	var entry models.LibraryEntry
	var rating sql.NullFloat64
	var mediaID sql.NullInt64
	var displayTitle, nativeTitle, romajiTitle, englishTitle sql.NullString
	var coverImageURL, bannerImage, season, airingStatus, format, description sql.NullString
	var seasonYear, episodes, averageScore sql.NullInt64
	var watchedAt, lastCheckedAt sql.NullTime

	err := scanner.Scan(
		&entry.ID,
		&entry.ProfileID,
		&entry.Title,
		&entry.Status,
		&rating,
		&mediaID,
		&displayTitle,
		&nativeTitle,
		&romajiTitle,
		&englishTitle,
		&coverImageURL,
		&bannerImage,
		&season,
		&seasonYear,
		&airingStatus,
		&episodes,
		&averageScore,
		&format,
		&description,
		&watchedAt,
		&lastCheckedAt,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rating.Valid {
		entry.Rating = &rating.Float64
	}
	if mediaID.Valid {
		value := int(mediaID.Int64)
		entry.MediaID = &value
	}
	entry.DisplayTitle = nullableString(displayTitle)
	entry.NativeTitle = nullableString(nativeTitle)
	entry.RomajiTitle = nullableString(romajiTitle)
	entry.EnglishTitle = nullableString(englishTitle)
	entry.CoverImageURL = nullableString(coverImageURL)
	entry.BannerImage = nullableString(bannerImage)
	entry.Season = nullableString(season)
	entry.AiringStatus = nullableString(airingStatus)
	entry.Format = nullableString(format)
	entry.Description = nullableString(description)
	if seasonYear.Valid {
		value := int(seasonYear.Int64)
		entry.SeasonYear = &value
	}
	if episodes.Valid {
		value := int(episodes.Int64)
		entry.Episodes = &value
	}
	if averageScore.Valid {
		value := int(averageScore.Int64)
		entry.AverageScore = &value
	}
	if watchedAt.Valid {
		entry.WatchedAt = &watchedAt.Time
	}
	if lastCheckedAt.Valid {
		entry.LastCheckedAt = &lastCheckedAt.Time
	}

	return &entry, nil
}

func nullableString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
