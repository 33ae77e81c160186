package domain

import "time"

// SyncableFile is a provider file mirrored from a linked account.
// Every file belongs to exactly one account.
type SyncableFile struct {
	ID             string     `json:"id"`
	AccountID      string     `json:"account_id"`
	ProviderFileID string     `json:"provider_file_id"`
	Name           string     `json:"name"`
	MimeType       string     `json:"mime_type,omitempty"`
	Size           int64      `json:"size"`
	Checksum       string     `json:"checksum,omitempty"`
	IsDuplicate    bool       `json:"is_duplicate"`
	ModifiedAt     *time.Time `json:"modified_at,omitempty"`
	SyncedAt       time.Time  `json:"synced_at"`
}

// FileStats are the aggregate counters over one account's files.
type FileStats struct {
	TotalFiles     int64 `json:"total_files"`
	DuplicateFiles int64 `json:"duplicate_files"`
	TotalSize      int64 `json:"total_size"`
}

// Add accumulates other into s.
func (s *FileStats) Add(other FileStats) {
	s.TotalFiles += other.TotalFiles
	s.DuplicateFiles += other.DuplicateFiles
	s.TotalSize += other.TotalSize
}

// AccountWithStats is an account summary, optionally carrying file stats.
type AccountWithStats struct {
	*AccountSummary
	Stats *FileStats `json:"stats,omitempty"`
}

// UserStats aggregates file stats across all of a user's accounts.
type UserStats struct {
	UserID     string    `json:"user_id"`
	Accounts   int       `json:"accounts"`
	Active     int       `json:"active"`
	Revoked    int       `json:"revoked"`
	QuotaUsed  int64     `json:"quota_used"`
	QuotaTotal int64     `json:"quota_total"`
	Files      FileStats `json:"files"`
}
