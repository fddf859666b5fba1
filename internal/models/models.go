package models

import (
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ──────────────────── Enums ────────────────────

type MediaType string

const (
	MediaTypeImage     MediaType = "image"
	MediaTypeAnimation MediaType = "animation"
	MediaTypeVideo     MediaType = "video"
)

type TagSource string

const (
	TagSourceManual     TagSource = "Manual"
	TagSourceAutoTagger TagSource = "AutoTagger"
	TagSourceFolderRule TagSource = "FolderRule"
)

type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

type JobMode string

const (
	JobModeMissing JobMode = "missing"
	JobModeAll     JobMode = "all"
)

type DuplicateType string

const (
	DuplicateTypeExact      DuplicateType = "exact"
	DuplicateTypePerceptual DuplicateType = "perceptual"
)

// ──────────────────── Supported media ────────────────────

// contentTypes maps a lowercase extension (no dot) to its MIME type.
// This set is the whole import surface: anything else is invisible to scans.
var contentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tga":  "image/x-tga",
	"webp": "image/webp",
	"jxl":  "image/jxl",
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mkv":  "video/x-matroska",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
}

// ContentTypeForPath returns the MIME type for a file name, or "" when the
// extension is not a supported media type.
func ContentTypeForPath(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	return contentTypes[ext]
}

// IsSupportedMedia reports whether the file name has a supported extension.
func IsSupportedMedia(name string) bool {
	return ContentTypeForPath(name) != ""
}

// MediaTypeFromContentType classifies a MIME type. Gifs count as animation,
// every other image/* as image, video/* as video.
func MediaTypeFromContentType(contentType string) MediaType {
	switch {
	case contentType == "image/gif":
		return MediaTypeAnimation
	case strings.HasPrefix(contentType, "video/"):
		return MediaTypeVideo
	default:
		return MediaTypeImage
	}
}

// ──────────────────── Library ────────────────────

type Library struct {
	ID                  int64     `json:"id" db:"id"`
	Name                string    `json:"name" db:"name"`
	Path                string    `json:"path" db:"path"`
	ScanIntervalMinutes int       `json:"scan_interval_minutes" db:"scan_interval_minutes"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

type LibraryIgnoredPath struct {
	ID         int64  `json:"id" db:"id"`
	LibraryID  int64  `json:"library_id" db:"library_id"`
	PathPrefix string `json:"path_prefix" db:"path_prefix"`
}

// ──────────────────── Post ────────────────────

// FileIdentity is the OS-stable identity of a file: device + inode on unix,
// volume serial + file index on windows. Hard links share one identity, so
// it is deliberately not unique.
type FileIdentity struct {
	Device uint64 `json:"device"`
	Value  uint64 `json:"value"`
}

type Post struct {
	ID               int64         `json:"id" db:"id"`
	LibraryID        int64         `json:"library_id" db:"library_id"`
	RelativePath     string        `json:"relative_path" db:"relative_path"`
	ContentHash      string        `json:"content_hash" db:"content_hash"`
	FileIdentity     *FileIdentity `json:"file_identity,omitempty" db:"-"`
	PerceptualHashD  *uint64       `json:"perceptual_hash_d,omitempty" db:"perceptual_hash_d"`
	PerceptualHashP  *uint64       `json:"perceptual_hash_p,omitempty" db:"perceptual_hash_p"`
	SizeBytes        int64         `json:"size_bytes" db:"size_bytes"`
	Width            int           `json:"width" db:"width"`
	Height           int           `json:"height" db:"height"`
	ContentType      string        `json:"content_type" db:"content_type"`
	ImportDate       time.Time     `json:"import_date" db:"import_date"`
	FileModifiedDate time.Time     `json:"file_modified_date" db:"file_modified_date"`
	IsFavorite       bool          `json:"is_favorite" db:"is_favorite"`
	TagCount         int           `json:"tag_count" db:"-"`
}

// MediaType classifies the post from its content type.
func (p *Post) MediaType() MediaType {
	return MediaTypeFromContentType(p.ContentType)
}

// Folder returns the forward-slash parent folder of the post's relative
// path, "" for posts at the library root.
func (p *Post) Folder() string {
	dir := path.Dir(p.RelativePath)
	if dir == "." {
		return ""
	}
	return dir
}

type PostSource struct {
	PostID    int64  `json:"post_id" db:"post_id"`
	SortOrder int    `json:"sort_order" db:"sort_order"`
	URL       string `json:"url" db:"url"`
}

// ──────────────────── Tags ────────────────────

var tagSeparators = regexp.MustCompile(`[\s:]+`)

// SanitizeTagName canonicalizes a tag name: lowercase, runs of whitespace
// and colons become a single underscore, underscores are trimmed from the
// ends. Idempotent; may return "" for names with no usable characters.
func SanitizeTagName(name string) string {
	n := strings.ToLower(name)
	n = tagSeparators.ReplaceAllString(n, "_")
	return strings.Trim(n, "_")
}

type Tag struct {
	ID         int64  `json:"id" db:"id"`
	Name       string `json:"name" db:"name"`
	CategoryID *int64 `json:"category_id,omitempty" db:"category_id"`
	PostCount  int    `json:"post_count" db:"-"`
}

type TagCategory struct {
	ID        int64  `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Color     string `json:"color" db:"color"`
	SortOrder int    `json:"sort_order" db:"sort_order"`
}

type PostTag struct {
	PostID int64     `json:"post_id" db:"post_id"`
	TagID  int64     `json:"tag_id" db:"tag_id"`
	Source TagSource `json:"source" db:"source"`
}

// ──────────────────── Duplicates ────────────────────

type DuplicateGroup struct {
	ID                int64         `json:"id" db:"id"`
	GroupType         DuplicateType `json:"group_type" db:"group_type"`
	SimilarityPercent *int          `json:"similarity_percent,omitempty" db:"similarity_percent"`
	IsResolved        bool          `json:"is_resolved" db:"is_resolved"`
	DetectedDate      time.Time     `json:"detected_date" db:"detected_date"`
}

type DuplicateGroupEntry struct {
	ID      int64 `json:"id" db:"id"`
	GroupID int64 `json:"group_id" db:"group_id"`
	PostID  int64 `json:"post_id" db:"post_id"`
}

// DuplicateGroupDetail is a group hydrated with its surviving posts.
type DuplicateGroupDetail struct {
	DuplicateGroup
	Posts []Post `json:"posts"`
}

// SameFolderGroup is a per-folder projection of a duplicate group: entries
// of one group that live in the same library folder.
type SameFolderGroup struct {
	LibraryID         int64   `json:"library_id"`
	Folder            string  `json:"folder"`
	PostIDs           []int64 `json:"post_ids"`
	RecommendedKeepID int64   `json:"recommended_keep_id"`
}

type ExcludedFile struct {
	ID           int64     `json:"id" db:"id"`
	LibraryID    int64     `json:"library_id" db:"library_id"`
	RelativePath string    `json:"relative_path" db:"relative_path"`
	ContentHash  string    `json:"content_hash" db:"content_hash"`
	Reason       string    `json:"reason" db:"reason"`
	ExcludedDate time.Time `json:"excluded_date" db:"excluded_date"`
}

// ──────────────────── Jobs ────────────────────

type JobExecution struct {
	ID                  uuid.UUID  `json:"id" db:"id"`
	JobKey              string     `json:"job_key" db:"job_key"`
	JobName             string     `json:"job_name" db:"job_name"`
	Status              JobStatus  `json:"status" db:"status"`
	StartTime           time.Time  `json:"start_time" db:"start_time"`
	EndTime             *time.Time `json:"end_time,omitempty" db:"end_time"`
	ErrorMessage        *string    `json:"error_message,omitempty" db:"error_message"`
	ActivityText        string     `json:"activity_text" db:"activity_text"`
	FinalText           string     `json:"final_text" db:"final_text"`
	ProgressCurrent     *int64     `json:"progress_current,omitempty" db:"progress_current"`
	ProgressTotal       *int64     `json:"progress_total,omitempty" db:"progress_total"`
	ResultSchemaVersion int        `json:"result_schema_version" db:"result_schema_version"`
	ResultJSON          *string    `json:"result_json,omitempty" db:"result_json"`
}

type ScheduledJob struct {
	ID             int64      `json:"id" db:"id"`
	JobKey         string     `json:"job_key" db:"job_key"`
	JobName        string     `json:"job_name,omitempty" db:"-"`
	CronExpression string     `json:"cron_expression" db:"cron_expression"`
	IsEnabled      bool       `json:"is_enabled" db:"is_enabled"`
	LastRun        *time.Time `json:"last_run,omitempty" db:"last_run"`
	NextRun        *time.Time `json:"next_run,omitempty" db:"next_run"`
}

// ScanSummary is the per-library result of one sync pass.
type ScanSummary struct {
	LibraryID int64 `json:"library_id"`
	Scanned   int   `json:"scanned"`
	Added     int   `json:"added"`
	Updated   int   `json:"updated"`
	Moved     int   `json:"moved"`
	Removed   int   `json:"removed"`
}

// Merge accumulates another summary's counts (library id is left alone).
func (s *ScanSummary) Merge(o ScanSummary) {
	s.Scanned += o.Scanned
	s.Added += o.Added
	s.Updated += o.Updated
	s.Moved += o.Moved
	s.Removed += o.Removed
}

// ──────────────────── Logs ────────────────────

type AppLogEntry struct {
	ID             int64     `json:"id" db:"id"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
	Level          string    `json:"level" db:"level"`
	Category       string    `json:"category" db:"category"`
	Message        string    `json:"message" db:"message"`
	Exception      *string   `json:"exception,omitempty" db:"exception"`
	PropertiesJSON *string   `json:"properties_json,omitempty" db:"properties_json"`
}
